// Package errors defines the tagged error type shared by every package in
// this module. Errors carry a short machine-checkable code in addition to
// a human-readable message, so callers can distinguish (for example) a
// protocol violation from a plain server-side failure without parsing
// strings.
package errors

import "fmt"

// ErrCode identifies the kind of failure independent of its message.
type ErrCode string

const (
	// AssertionError indicates a precondition the caller violated, e.g. an
	// empty command string.
	AssertionError ErrCode = "AssertionError"

	// ParseError indicates malformed input that was supposed to be
	// well-formed, e.g. a garbled device list line.
	ParseError ErrCode = "ParseError"

	// NetworkError wraps a lower-level I/O error encountered talking to
	// the adb server or a device.
	NetworkError ErrCode = "NetworkError"

	// ConnectionResetError indicates the peer reset the connection
	// mid-request.
	ConnectionResetError ErrCode = "ConnectionResetError"

	// ServerNotAvailable indicates the adb server could not be reached.
	ServerNotAvailable ErrCode = "ServerNotAvailable"

	// DeviceNotFound indicates no attached device matches a descriptor.
	DeviceNotFound ErrCode = "DeviceNotFound"

	// MultipleDevicesMatch indicates a descriptor matched more than one
	// attached device where exactly one was required.
	MultipleDevicesMatch ErrCode = "MultipleDevicesMatch"

	// InvalidArgument indicates a required field (serial, endpoint,
	// stream) was nil or empty.
	InvalidArgument ErrCode = "InvalidArgument"

	// NotSupported indicates an unsupported endpoint family or an
	// operation the socket can't perform.
	NotSupported ErrCode = "NotSupported"

	// ProtocolFault indicates malformed framing: a short read, a bad
	// status word, or a length prefix that didn't parse.
	ProtocolFault ErrCode = "ProtocolFault"

	// AdbFailure indicates the server replied FAIL, or a typed service
	// returned its own failure token (pair, install, root).
	AdbFailure ErrCode = "AdbFailure"

	// ShellCommandUnresponsive indicates a streaming shell read failed
	// with an I/O error that wasn't caused by caller-requested
	// cancellation.
	ShellCommandUnresponsive ErrCode = "ShellCommandUnresponsive"

	// PermissionDenied is pattern-matched from shell output.
	PermissionDenied ErrCode = "PermissionDenied"

	// FileNotFound is pattern-matched from shell output.
	FileNotFound ErrCode = "FileNotFound"

	// UnknownOption is pattern-matched from shell output.
	UnknownOption ErrCode = "UnknownOption"

	// CommandAborting is pattern-matched from shell output.
	CommandAborting ErrCode = "CommandAborting"

	// EndOfStream is a normal termination signal in the log and
	// framebuffer readers; only an error when raised mid-record.
	EndOfStream ErrCode = "EndOfStream"
)

// Err is the error type returned by every package in this module.
type Err struct {
	// Code categorizes the failure.
	Code ErrCode

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details holds arbitrary debugging context (e.g. the request that
	// failed), set via WithDetails.
	Details interface{}
}

var _ error = &Err{}

func (err *Err) Error() string {
	if err.Cause == nil {
		return fmt.Sprintf("%s: %s", err.Code, err.Message)
	}
	return fmt.Sprintf("%s: %s: %s", err.Code, err.Message, err.Cause.Error())
}

// Unwrap allows errors.Is/errors.As (stdlib) to see through to Cause.
func (err *Err) Unwrap() error {
	return err.Cause
}

// WithDetails returns a copy of err with Details set.
func (err *Err) WithDetails(details interface{}) *Err {
	copied := *err
	copied.Details = details
	return &copied
}

// Errorf creates a new Err with the given code and formatted message.
func Errorf(code ErrCode, format string, args ...interface{}) *Err {
	return &Err{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapErrorf wraps cause in a new Err with the given code and message.
// If cause is already an *Err, its code is preserved unless code is
// explicitly non-empty.
func WrapErrorf(cause error, code ErrCode, format string, args ...interface{}) *Err {
	if cause == nil {
		return Errorf(code, format, args...)
	}
	if code == "" {
		if existing, ok := cause.(*Err); ok {
			code = existing.Code
		}
	}
	return &Err{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WrapErrf wraps cause, reusing cause's code if it is already an *Err and
// no more specific code applies.
func WrapErrf(cause error, format string, args ...interface{}) *Err {
	code := NetworkError
	if existing, ok := cause.(*Err); ok {
		code = existing.Code
	}
	return WrapErrorf(cause, code, format, args...)
}

// AssertionErrorf creates an AssertionError-coded Err.
func AssertionErrorf(format string, args ...interface{}) *Err {
	return Errorf(AssertionError, format, args...)
}

// HasErrCode reports whether err is an *Err with the given code.
func HasErrCode(err error, code ErrCode) bool {
	if adbErr, ok := err.(*Err); ok {
		return adbErr.Code == code
	}
	return false
}
