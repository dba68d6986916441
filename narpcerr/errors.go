// Package narpcerr defines the stable error-code enumeration shared by
// every layer of the runtime (NAL and RPC forwarding engine alike),
// keeping protocol-level status distinct from plain Go transport
// errors.
package narpcerr

import "fmt"

// Code is one of the stable error kinds from the wire protocol's point of
// view. Transport-level failures are still plain Go errors; Code is what
// crosses the RPC boundary and what callers are expected to compare against.
type Code int

const (
	Success Code = iota
	Fail
	Timeout
	InvalidParam
	SizeError
	NoMem
	ProtocolError
	NoMatch
	ChecksumError
	PermissionError
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case Timeout:
		return "timeout"
	case InvalidParam:
		return "invalid parameter"
	case SizeError:
		return "size error"
	case NoMem:
		return "no memory"
	case ProtocolError:
		return "protocol error"
	case NoMatch:
		return "no match"
	case ChecksumError:
		return "checksum error"
	case PermissionError:
		return "permission error"
	default:
		return fmt.Sprintf("unknown error code %d", int(c))
	}
}

// Error wraps a Code as a Go error so it can be returned and compared with
// errors.Is/errors.As at call boundaries.
type Error struct {
	Code Code
	Msg  string
}

func New(code Code) *Error { return &Error{Code: code} }

func Wrap(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// Is lets errors.Is(err, narpcerr.ErrTimeout) work against a wrapped *Error by
// comparing codes, not identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel instances for the common cases, so callers can write
// `errors.Is(err, narpcerr.ErrTimeout)` instead of constructing a Code by hand.
var (
	ErrFail           = New(Fail)
	ErrTimeout        = New(Timeout)
	ErrInvalidParam   = New(InvalidParam)
	ErrSizeError      = New(SizeError)
	ErrNoMem          = New(NoMem)
	ErrProtocolError  = New(ProtocolError)
	ErrNoMatch        = New(NoMatch)
	ErrChecksumError  = New(ChecksumError)
	ErrPermissionError = New(PermissionError)
)

// ToString is the top-level API's error_to_string(code) -> string.
func ToString(code Code) string { return code.String() }

// CodeOf extracts the Code from an error produced by this package, defaulting
// to Fail for any error that didn't originate here (e.g. a raw transport
// error from the Endpoint).
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Fail
}
