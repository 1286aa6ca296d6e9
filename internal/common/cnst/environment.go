package cnst

// Environment identifies which provider deployment a credential belongs to.
// Production and sandbox credentials never interchange.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

func (e Environment) String() string {
	return string(e)
}

// Valid reports whether the environment is one of the known deployments.
func (e Environment) Valid() bool {
	return e == EnvProduction || e == EnvSandbox
}
