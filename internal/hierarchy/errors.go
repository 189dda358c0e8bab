package hierarchy

import "errors"

var (
	// ErrInvalidName is returned for an empty or blank model name.
	ErrInvalidName = errors.New("invalid model name")
	// ErrUnknownModel is returned when a name does not resolve to a declared model.
	ErrUnknownModel = errors.New("unknown model")
	// ErrDuplicateModel is returned when a name is declared twice.
	ErrDuplicateModel = errors.New("model already declared")
	// ErrCycle is returned when an inclusion would make a model its own
	// ancestor through another model.
	ErrCycle = errors.New("inclusion would create a cycle")
)
