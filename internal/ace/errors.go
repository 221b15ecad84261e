package ace

import (
	"errors"
	"fmt"
)

// Error codes. Compare with errors.Is.
var (
	ErrMultipleACE        = errors.New("multiple ACE markers")
	ErrUnknownOperation   = errors.New("unknown ACE operation")
	ErrOptionArgument     = errors.New("invalid option argument")
	ErrDisplayText        = errors.New("invalid display text")
	ErrParamShape         = errors.New("unhandled parameter shape")
	ErrParamDeclaredTwice = errors.New("parameter marker declared twice")
	ErrNotCompilable      = errors.New("argument not compilable")
	ErrDuplicateID        = errors.New("duplicate ACE id")
	ErrMethodName         = errors.New("unsupported ACE method name")
)

// Error is a fatal build error caused by the annotated source.
type Error struct {
	Code    error
	Subject string // offending identifier
	Pos     string // file:line:col, may be empty
	Msg     string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Pos != "" {
		return e.Pos + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Code, e.Cause}
	}
	return []error{e.Code}
}

// At returns a copy of e positioned at pos.
func (e *Error) At(pos string) *Error {
	out := *e
	out.Pos = pos
	return &out
}

func MultipleACE(id string) *Error {
	return &Error{Code: ErrMultipleACE, Subject: id,
		Msg: fmt.Sprintf("Method '%s' can only be one ACE", id)}
}

func UnknownOperation(marker, id string) *Error {
	return &Error{Code: ErrUnknownOperation, Subject: id,
		Msg: fmt.Sprintf("Unknown ACE operation '@%s' on '%s'", marker, id)}
}

func MethodName(name string) *Error {
	return &Error{Code: ErrMethodName, Subject: name,
		Msg: fmt.Sprintf("ACE method name '%s' is not supported. Use a plain identifier or a string literal", name)}
}

func OptionArgument(id string) *Error {
	return &Error{Code: ErrOptionArgument, Subject: id,
		Msg: fmt.Sprintf("You must pass an object as option argument on '%s' ACE", id)}
}

func OptionType(id, key string) *Error {
	return &Error{Code: ErrOptionArgument, Subject: id,
		Msg: fmt.Sprintf("Option '%s' of '%s' ACE must be a string", key, id)}
}

func DisplayText(id string) *Error {
	return &Error{Code: ErrDisplayText, Subject: id,
		Msg: fmt.Sprintf("Display text of '%s' ACE must be a string", id)}
}

func ParamShape(id string) *Error {
	return &Error{Code: ErrParamShape, Subject: id,
		Msg: fmt.Sprintf("Unhandled ACE parameter assignation on '%s'. Try using the '@%s' decorator or typings.", id, ParamMarker)}
}

func ParamItems(param string) *Error {
	return &Error{Code: ErrParamShape, Subject: param,
		Msg: fmt.Sprintf("Items of ACE parameter '%s' must be a list of keys or single-key objects", param)}
}

func ParamDeclaredTwice(param string) *Error {
	return &Error{Code: ErrParamDeclaredTwice, Subject: param,
		Msg: fmt.Sprintf("Decorator '@%s' must be declared once per parameter ('%s')", ParamMarker, param)}
}

func NotCompilable(key string, cause error) *Error {
	return &Error{Code: ErrNotCompilable, Subject: key, Cause: cause,
		Msg: fmt.Sprintf("ACE parameter '%s' is not compilable. Use static values.", key)}
}

func DuplicateID(kind Kind, id, first string) *Error {
	return &Error{Code: ErrDuplicateID, Subject: id,
		Msg: fmt.Sprintf("duplicate ACE id '%s' in %s (first declared in %s)", id, kind, first)}
}
