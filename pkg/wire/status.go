package wire

import "errors"

// ErrorCode is the 2-bit error code a device reports in a response header.
type ErrorCode uint8

const (
	// ErrorCodeOK indicates the request succeeded.
	ErrorCodeOK ErrorCode = 0

	// ErrorCodeInvalidParameter indicates a parameter was out of range.
	ErrorCodeInvalidParameter ErrorCode = 1

	// ErrorCodeNotSupported indicates the function is not supported.
	ErrorCodeNotSupported ErrorCode = 2

	// ErrorCodeUnknown is the remaining code value; treated as unknown error.
	ErrorCodeUnknown ErrorCode = 3
)

// Device-reported errors.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotSupported     = errors.New("function not supported")
	ErrUnknownErrorCode = errors.New("unknown error code")
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeOK:
		return "OK"
	case ErrorCodeInvalidParameter:
		return "INVALID_PARAMETER"
	case ErrorCodeNotSupported:
		return "NOT_SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Err maps the code to a sentinel error, or nil for ErrorCodeOK.
func (c ErrorCode) Err() error {
	switch c {
	case ErrorCodeOK:
		return nil
	case ErrorCodeInvalidParameter:
		return ErrInvalidParameter
	case ErrorCodeNotSupported:
		return ErrNotSupported
	default:
		return ErrUnknownErrorCode
	}
}
