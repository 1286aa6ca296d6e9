package cnst

const (
	// AppName is the application name used in logs and user agents
	AppName = "girder"
	// CommandName is the CLI binary name
	CommandName = "girder"
)
