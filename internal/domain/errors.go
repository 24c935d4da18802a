package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. PositionError unwraps to one of these so callers can
// match with errors.Is regardless of the numeric code.
var (
	ErrUnsupported         = fmt.Errorf("geolocation capability unsupported")
	ErrInvalidConfig       = fmt.Errorf("invalid configuration")
	ErrPermissionDenied    = fmt.Errorf("permission denied")
	ErrPositionUnavailable = fmt.Errorf("position unavailable")
	ErrTimeout             = fmt.Errorf("operation timed out")
	ErrProviderError       = fmt.Errorf("provider error")
)

// Sentinel errors for setup paths.
var (
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrBridgeHandshake    = fmt.Errorf("bridge handshake failed")
	ErrBridgeClosed       = fmt.Errorf("bridge connection closed")
	ErrDiscoveryNoBridge  = fmt.Errorf("no positioning bridge discovered")
	ErrDiscoveryDisabled  = fmt.Errorf("bridge discovery not compiled in")
	ErrInvalidBridgeFrame = fmt.Errorf("invalid bridge frame")
)

// Position error codes. Positive codes are the provider's native codes;
// negative codes are raised by the service itself.
const (
	CodeUnsupported         = -1
	CodeInvalidConfig       = -2
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// PositionError is the payload of an error event.
type PositionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewPositionError creates a PositionError.
func NewPositionError(code int, message string) *PositionError {
	return &PositionError{Code: code, Message: message}
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

// Unwrap maps the numeric code to its category sentinel.
func (e *PositionError) Unwrap() error {
	switch e.Code {
	case CodeUnsupported:
		return ErrUnsupported
	case CodeInvalidConfig:
		return ErrInvalidConfig
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodePositionUnavailable:
		return ErrPositionUnavailable
	case CodeTimeout:
		return ErrTimeout
	default:
		return ErrProviderError
	}
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "WebSocketProvider.Dial")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and monitoring.
type ErrorCode string

const (
	CodeUnknown                ErrorCode = "UNKNOWN"
	CodeLocationUnsupported    ErrorCode = "LOCATION_UNSUPPORTED"
	CodeLocationInvalidConfig  ErrorCode = "LOCATION_INVALID_CONFIG"
	CodeLocationPermission     ErrorCode = "LOCATION_PERMISSION"
	CodeLocationUnavailable    ErrorCode = "LOCATION_UNAVAILABLE"
	CodeLocationTimeout        ErrorCode = "LOCATION_TIMEOUT"
	CodeLocationProvider       ErrorCode = "LOCATION_PROVIDER"
	CodeConfigLoadFailed       ErrorCode = "CONFIG_LOAD"
	CodeBridgeHandshake        ErrorCode = "BRIDGE_HANDSHAKE"
	CodeBridgeClosed           ErrorCode = "BRIDGE_CLOSED"
	CodeBridgeFrame            ErrorCode = "BRIDGE_FRAME"
	CodeDiscoveryNoBridge      ErrorCode = "DISCOVERY_NO_BRIDGE"
	CodeDiscoveryNotCompiledIn ErrorCode = "DISCOVERY_DISABLED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrUnsupported:         CodeLocationUnsupported,
	ErrInvalidConfig:       CodeLocationInvalidConfig,
	ErrPermissionDenied:    CodeLocationPermission,
	ErrPositionUnavailable: CodeLocationUnavailable,
	ErrTimeout:             CodeLocationTimeout,
	ErrProviderError:       CodeLocationProvider,
	ErrConfigLoad:          CodeConfigLoadFailed,
	ErrBridgeHandshake:     CodeBridgeHandshake,
	ErrBridgeClosed:        CodeBridgeClosed,
	ErrInvalidBridgeFrame:  CodeBridgeFrame,
	ErrDiscoveryNoBridge:   CodeDiscoveryNoBridge,
	ErrDiscoveryDisabled:   CodeDiscoveryNotCompiledIn,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
