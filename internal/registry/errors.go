package registry

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the registry. Callers distinguish them with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	// ErrNotFound reports an unknown path or file id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument reports malformed input such as empty text,
	// an empty id list or a disallowed file extension.
	ErrInvalidArgument = errors.New("invalid argument")
)

func pathNotFound(pathRel string) error {
	return fmt.Errorf("%w: path %s", ErrNotFound, pathRel)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}
