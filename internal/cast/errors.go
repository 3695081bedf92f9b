package cast

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// Error types for cast channel operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (reset, unreachable, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeTLS indicates a failed TLS handshake
	ErrTypeTLS
	// ErrTypeClosed indicates the device closed the channel
	ErrTypeClosed
	// ErrTypeProtocol indicates an error response or an unexpected message
	ErrTypeProtocol
	// ErrTypeParse indicates a malformed payload
	ErrTypeParse
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
	NetworkErrorReset
)

// ErrNotConnected is returned by ReadStatus before Connect succeeded
var ErrNotConnected = errors.New("no open channel to device")

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeTLS:
		return "TLS Error"
	case ErrTypeClosed:
		return "Channel Closed"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred on a device's cast channel
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Addr           string              // Device host:port (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error and returns a more specific error type.
// A *DeviceError is returned unchanged.
func ClassifyNetworkError(err error, addr string) *DeviceError {
	if err == nil {
		return nil
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr
	}

	// Check for timeout errors
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Device did not answer in time",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Addr:           addr,
			Retryable:      true,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &DeviceError{
			Type:      ErrTypeNetwork,
			Message:   "Request canceled",
			Err:       err,
			Addr:      addr,
			Retryable: false,
		}
	}

	// Check for DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Addr:           addr,
			Retryable:      false,
		}
	}

	// Check for TLS handshake failures
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return &DeviceError{
			Type:      ErrTypeTLS,
			Message:   "Device did not speak TLS",
			Err:       err,
			Addr:      addr,
			Retryable: false,
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return &DeviceError{
			Type:      ErrTypeClosed,
			Message:   "Device closed the channel",
			Err:       err,
			Addr:      addr,
			Retryable: true,
		}
	}

	// Check for refused / unreachable / reset
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Addr:           addr,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Addr:           addr,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Addr:           addr,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ECONNRESET) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Connection reset by device",
				Err:            err,
				NetworkSubtype: NetworkErrorReset,
				Addr:           addr,
				Retryable:      true,
			}
		}
	}

	// Generic network error
	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Addr:           addr,
		Retryable:      true,
	}
}

// NewProtocolError creates an error for an unexpected or error response
func NewProtocolError(message string, addr string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeProtocol,
		Message:   message,
		Addr:      addr,
		Retryable: true,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error, addr string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeParse,
		Message:   message,
		Err:       err,
		Addr:      addr,
		Retryable: false,
	}
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS, etc.)
func IsNetworkError(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused ||
			devErr.Type == ErrTypeDNS ||
			devErr.Type == ErrTypeClosed
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device is powered on and not rebooting",
			"  • Try increasing monitor.connect_timeout or monitor.read_timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • Verify the cast port (default is 8009)",
			"  • Groups use a different port; rescan to pick it up",
		}, "\n")

	case ErrTypeDNS:
		return "Could not resolve the device hostname. Check that mDNS works on this network."

	case ErrTypeTLS:
		return "The device answered without TLS. The port is probably not a cast channel."

	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable, NetworkErrorNetworkUnreachable:
			return "The device is not reachable. Check that this machine is on the same network as the device."
		default:
			return "Network communication failed. Check your network connection."
		}

	default:
		return "An error occurred. Please check the error message for details."
	}
}
