package cnst

import "errors"

var (
	// ErrDuplicateProviderName is returned when a provider name is configured twice
	ErrDuplicateProviderName = errors.New("duplicate provider name")
	// ErrUnknownEnvironment is returned when an environment is neither production nor sandbox
	ErrUnknownEnvironment = errors.New("unknown environment")
	// ErrMissingMasterKey is returned when the vault master key is absent
	ErrMissingMasterKey = errors.New("missing vault master key")
)
