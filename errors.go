package edgecraft

import (
	"errors"
	"fmt"
)

// ValidationError is a deploy-time, user-visible configuration error.
//
// Validation errors abort the creation of the offending resource (and,
// transitively, its dependents). They are never produced at request time:
// the dispatcher fails open instead.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MisuseError marks a programming error in how the library is driven, such
// as mixing declarative and imperative route registration on one router.
// These are bugs in the calling application, not bad user input.
type MisuseError struct {
	Message string
}

func (e *MisuseError) Error() string {
	return e.Message
}

// CapacityError is returned when a serialized table value exceeds what the
// backing store can hold even after chunking. It is fatal at deploy time.
type CapacityError struct {
	Key   string
	Size  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("table entry %q is %d bytes, store limit is %d", e.Key, e.Size, e.Limit)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
