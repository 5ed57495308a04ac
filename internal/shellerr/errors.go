package shellerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with fmt.Errorf("...: %w", ...) and test with
// errors.Is.
var (
	ErrUnknownKind      = errors.New("unknown kind")
	ErrDuplicateName    = errors.New("duplicate object name")
	ErrDuplicateKind    = errors.New("duplicate kind")
	ErrUnknownObject    = errors.New("unknown object")
	ErrUnknownProperty  = errors.New("unknown property")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrRange            = errors.New("value out of range")
	ErrBindingCycle     = errors.New("binding cycle")
	ErrParse            = errors.New("parse error")
	ErrNotReadable      = errors.New("property is not readable")
	ErrNotWritable      = errors.New("property is not writable")
	ErrDuplicateBinding = errors.New("duplicate binding")
	ErrUnknownBinding   = errors.New("unknown binding")
	ErrHandlerDepth     = errors.New("handler nesting too deep")
	ErrUnavailable      = errors.New("resource unavailable")
)

// codes maps each sentinel to the stable name shown to users.
var codes = []struct {
	err  error
	code string
}{
	{ErrUnknownKind, "UnknownKind"},
	{ErrDuplicateName, "DuplicateName"},
	{ErrDuplicateKind, "DuplicateKind"},
	{ErrUnknownObject, "UnknownObject"},
	{ErrUnknownProperty, "UnknownProperty"},
	{ErrUnknownMethod, "UnknownMethod"},
	{ErrTypeMismatch, "TypeMismatch"},
	{ErrRange, "RangeError"},
	{ErrBindingCycle, "BindingCycle"},
	{ErrParse, "ParseError"},
	{ErrNotReadable, "NotReadable"},
	{ErrNotWritable, "NotWritable"},
	{ErrDuplicateBinding, "DuplicateBinding"},
	{ErrUnknownBinding, "UnknownBinding"},
	{ErrHandlerDepth, "HandlerDepth"},
	{ErrUnavailable, "Unavailable"},
}

// Code returns the user-visible error kind for err, or "Internal" if err does
// not wrap any sentinel. A nil error has an empty code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// Parsef builds a ParseError with a formatted message.
func Parsef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
