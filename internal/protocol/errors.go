package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrChecksum is wrapped by Layout.Unmarshal when the frame checksum does not match
var ErrChecksum = errors.New("checksum mismatch")

// ErrorType represents the category of a protocol engine error
type ErrorType int

const (
	// ErrTypeConnection means the session could not be established or was
	// rejected (device unreachable, characteristic missing, PIN refused)
	ErrTypeConnection ErrorType = iota
	// ErrTypeBusy means a request was issued while another was pending
	ErrTypeBusy
	// ErrTypeTimeout means no response arrived before the deadline
	ErrTypeTimeout
	// ErrTypeDisconnected means the link went away while waiting
	ErrTypeDisconnected
	// ErrTypeEncoding means local input could not be encoded
	ErrTypeEncoding
	// ErrTypeDecoding means a device payload was malformed or truncated
	ErrTypeDecoding
	// ErrTypeUnknownCommand means the schema has no entry for a name
	ErrTypeUnknownCommand
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeBusy:
		return "Busy"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeDisconnected:
		return "Disconnected"
	case ErrTypeEncoding:
		return "Encoding Error"
	case ErrTypeDecoding:
		return "Decoding Error"
	case ErrTypeUnknownCommand:
		return "Unknown Command"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is the error returned by every layer of the protocol engine
type Error struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Err       error     // Underlying error (if any)
	Retryable bool      // Whether a caller retry may succeed
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is
var (
	ErrConnection     = &Error{Type: ErrTypeConnection, Message: "connection failed"}
	ErrBusy           = &Error{Type: ErrTypeBusy, Message: "request already pending"}
	ErrTimeout        = &Error{Type: ErrTypeTimeout, Message: "no response"}
	ErrDisconnected   = &Error{Type: ErrTypeDisconnected, Message: "link lost"}
	ErrEncoding       = &Error{Type: ErrTypeEncoding, Message: "cannot encode"}
	ErrDecoding       = &Error{Type: ErrTypeDecoding, Message: "cannot decode"}
	ErrUnknownCommand = &Error{Type: ErrTypeUnknownCommand, Message: "unknown command"}
)

// NewConnectionError creates a connection error
func NewConnectionError(message string, err error) *Error {
	return &Error{Type: ErrTypeConnection, Message: message, Err: err, Retryable: true}
}

// NewBusyError creates a busy error. Busy is a caller bug and never retryable.
func NewBusyError(message string) *Error {
	return &Error{Type: ErrTypeBusy, Message: message}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, err error) *Error {
	return &Error{Type: ErrTypeTimeout, Message: message, Err: err, Retryable: true}
}

// NewDisconnectedError creates a disconnected error
func NewDisconnectedError(message string, err error) *Error {
	return &Error{Type: ErrTypeDisconnected, Message: message, Err: err, Retryable: true}
}

// NewEncodingError creates an encoding error
func NewEncodingError(message string, err error) *Error {
	return &Error{Type: ErrTypeEncoding, Message: message, Err: err}
}

// NewDecodingError creates a decoding error
func NewDecodingError(message string, err error) *Error {
	return &Error{Type: ErrTypeDecoding, Message: message, Err: err}
}

// NewUnknownCommandError creates an unknown command error
func NewUnknownCommandError(name string) *Error {
	return &Error{Type: ErrTypeUnknownCommand, Message: fmt.Sprintf("no schema entry for %q", name)}
}

func isType(err error, t ErrorType) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Type == t
	}
	return false
}

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool { return isType(err, ErrTypeConnection) }

// IsBusy checks if an error is a busy error
func IsBusy(err error) bool { return isType(err, ErrTypeBusy) }

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool { return isType(err, ErrTypeTimeout) }

// IsDisconnected checks if an error is a disconnected error
func IsDisconnected(err error) bool { return isType(err, ErrTypeDisconnected) }

// IsRetryable checks if an error may succeed on retry or reconnect
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// Hint returns user-facing troubleshooting advice for an error
func Hint(err error) string {
	var perr *Error
	if !errors.As(err, &perr) {
		return "An unexpected error occurred. Please try again."
	}

	switch perr.Type {
	case ErrTypeConnection:
		return strings.Join([]string{
			"Could not establish a session with the mower.",
			"Troubleshooting:",
			"  • Check the Bluetooth address (mowerctl scan lists nearby devices)",
			"  • Make sure the mower is awake and within range",
			"  • Verify the PIN if the mower requires one",
			"  • Close the manufacturer's app; the mower accepts one connection",
		}, "\n")
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The mower did not answer in time.",
			"Troubleshooting:",
			"  • Move closer to the mower",
			"  • Try increasing --timeout",
			"  • Reconnect; some firmware stops answering after a rejected command",
		}, "\n")
	case ErrTypeDisconnected:
		return "The Bluetooth link dropped. Reconnect and try again."
	case ErrTypeBusy:
		return "Another command is still running on this connection. Commands must be issued one at a time."
	case ErrTypeEncoding:
		return "The command arguments are invalid. Check names and value ranges."
	case ErrTypeDecoding:
		return "The mower's answer could not be decoded. The firmware may use a different layout."
	case ErrTypeUnknownCommand:
		return "Unknown command name. Run 'mowerctl command --list' to see supported commands."
	default:
		return "An error occurred. Please check the error message for details."
	}
}
