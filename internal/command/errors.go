package command

import (
	"fmt"

	"github.com/specialistvlad/propshell/internal/shellerr"
)

// BatchError reports the command that stopped a batch.
type BatchError struct {
	Line    int
	Command string
	Err     error
}

// Code returns the error kind of the underlying failure.
func (e *BatchError) Code() string {
	return shellerr.Code(e.Err)
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("line %d: %s: %s: %v", e.Line, e.Command, e.Code(), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
