package nvbox

import (
	"errors"
	"fmt"
)

// Code classifies a storage failure.
type Code uint8

const (
	// CodeOther is a device-specific fault not otherwise classified
	// (bus fault, uncorrectable ECC error, timeout).
	CodeOther Code = iota
	// CodeNotAligned means an offset or length is not a multiple of a
	// required granularity.
	CodeNotAligned
	// CodeOutOfBounds means the requested range exceeds the device capacity.
	CodeOutOfBounds
)

func (c Code) String() string {
	switch c {
	case CodeNotAligned:
		return "NotAligned"
	case CodeOutOfBounds:
		return "OutOfBounds"
	default:
		return "Other"
	}
}

// ErrorKind is the generic error category every driver error maps onto.
// Alignment is only meaningful for CodeNotAligned and holds the required
// granularity in bytes.
//
// ErrorKind is itself an error, so validation helpers return it directly.
type ErrorKind struct {
	Code      Code `json:"code"`
	Alignment int  `json:"alignment,omitempty"`
}

// NotAligned returns the kind for a granularity violation.
func NotAligned(alignment int) ErrorKind {
	return ErrorKind{Code: CodeNotAligned, Alignment: alignment}
}

var (
	// OutOfBounds is the kind for range violations.
	OutOfBounds = ErrorKind{Code: CodeOutOfBounds}

	// Other is the kind for device-specific faults.
	Other = ErrorKind{Code: CodeOther}
)

func (k ErrorKind) Error() string {
	switch k.Code {
	case CodeNotAligned:
		if k.Alignment > 0 {
			return fmt.Sprintf("nvbox: arguments are not properly aligned (alignment %d)", k.Alignment)
		}
		return "nvbox: arguments are not properly aligned"
	case CodeOutOfBounds:
		return "nvbox: arguments are out of bounds"
	default:
		return "nvbox: an implementation specific error occurred"
	}
}

// Kind implements [Error].
func (k ErrorKind) Kind() ErrorKind { return k }

// Is reports whether target is an ErrorKind with the same code. A target
// alignment of zero matches any alignment.
func (k ErrorKind) Is(target error) bool {
	t, ok := target.(ErrorKind)
	if !ok {
		return false
	}
	if t.Code != k.Code {
		return false
	}
	return t.Alignment == 0 || t.Alignment == k.Alignment
}

// Error is implemented by driver errors that can be classified.
type Error interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of err. Errors that do not implement [Error]
// anywhere in their chain are classified as [Other].
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return Other
}

// DeviceError reports a device fault during an operation. Its kind is
// always [Other]; the cause is available through errors.Unwrap.
type DeviceError struct {
	Op     string
	Offset uint32
	Err    error
}

// NewDeviceError wraps err as a [DeviceError]. It returns nil if err is nil.
func NewDeviceError(op string, offset uint32, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Offset: offset, Err: err}
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("nvbox: %s at 0x%08x: %v", e.Op, e.Offset, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Kind implements [Error].
func (e *DeviceError) Kind() ErrorKind { return Other }

// Common errors outside the device taxonomy.
var (
	ErrInvalidGeometry = errors.New("nvbox: invalid device geometry")
	ErrBufferTooSmall  = errors.New("nvbox: scratch buffer is smaller than the erase size")
	ErrClosed          = errors.New("nvbox: device already closed")
	ErrNotSupported    = errors.New("nvbox: feature not supported by this device")
)
