package errors

import (
	"fmt"
)

var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrInvalidDescriptor = fmt.Errorf("invalid entity descriptor")
var ErrUnknownEntityType = fmt.Errorf("unknown entity type")
var ErrTxDone = fmt.Errorf("transaction has already been committed or rolled back")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewBadRequestDataError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrBadRequest,
	}
}

func NewInvalidDescriptorError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrInvalidDescriptor,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

// NewUnknownEntityTypeError is returned whenever a mapping is requested for a type
// that has no registered descriptor
func NewUnknownEntityTypeError(entityType string) error {
	return &myError{
		msg:    fmt.Sprintf("no descriptor registered for entity type \"%s\"", entityType),
		target: ErrUnknownEntityType,
	}
}
