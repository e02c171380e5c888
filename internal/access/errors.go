package access

import "errors"

// Domain-specific errors for the access package.
var (
	// ErrUserNotFound is returned when a mutation targets an identity without a record.
	ErrUserNotFound = errors.New("access: user not found")

	// ErrPersist wraps a failed flush to the repository. The in-memory change
	// has already been applied when this is returned.
	ErrPersist = errors.New("access: persisting users failed")

	// ErrInvalidCapability is returned for capability values outside the enumeration.
	ErrInvalidCapability = errors.New("access: invalid capability")

	// ErrInvalidLanguage is returned for unsupported language codes.
	ErrInvalidLanguage = errors.New("access: invalid language")
)
