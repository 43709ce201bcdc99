// Package zmqcore layers authenticated, curve-encrypted, multi-part
// messaging over github.com/luxfi/zmq/v4's brokered transport: multi-frame
// Messages with typed enqueue/dequeue, a role-typed Socket wrapper, an
// in-process ZAP Authenticator, and a Worker/Poller lifecycle model for
// threads that own sockets.
package zmqcore

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Error is a closed taxonomy of failure kinds returned by this package's
// operations. The zero value means success: operations that return Error
// report success as 0, which has no named constant.
type Error int

const (
	ErrUnknown Error = iota + 1
	ErrSocketState
	ErrContextTerminated
	ErrNoThread
	ErrIncompatibleProtocol
	ErrHostUnreachable
	ErrNoBufferSpace
	ErrUnsupportedOperation
	ErrUnsupportedProtocol
	ErrNetworkDown
	ErrAddressInUse
	ErrResolveFailed
	ErrAcceptFailed
	ErrInProgress
	ErrTryAgain
	ErrInvalidMessage
	ErrInterrupted
	ErrInvalidSocket
)

var errorText = map[Error]string{
	ErrUnknown:              "unknown error",
	ErrSocketState:          "socket is in the wrong state for this operation",
	ErrContextTerminated:    "context has been stopped",
	ErrNoThread:             "no thread available",
	ErrIncompatibleProtocol: "incompatible protocol",
	ErrHostUnreachable:      "host unreachable",
	ErrNoBufferSpace:        "no buffer space available",
	ErrUnsupportedOperation: "operation not supported for this socket role",
	ErrUnsupportedProtocol:  "unsupported protocol",
	ErrNetworkDown:          "network is down",
	ErrAddressInUse:         "address already in use",
	ErrResolveFailed:        "address resolution failed",
	ErrAcceptFailed:         "accept failed",
	ErrInProgress:           "operation already in progress",
	ErrTryAgain:             "resource temporarily unavailable",
	ErrInvalidMessage:       "invalid message",
	ErrInterrupted:          "interrupted",
	ErrInvalidSocket:        "invalid socket",
}

func (e Error) Error() string {
	if s, ok := errorText[e]; ok {
		return s
	}
	return "zmqcore: unrecognised error"
}

// fromTransport classifies an error returned by the underlying transport
// (github.com/luxfi/zmq/v4) or the standard library's net/context packages
// into this package's closed taxonomy.
func fromTransport(err error) Error {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrContextTerminated
	case errors.Is(err, syscall.EADDRINUSE):
		return ErrAddressInUse
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrHostUnreachable
	case errors.Is(err, syscall.EINTR):
		return ErrInterrupted
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTryAgain
		}
		return ErrHostUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrResolveFailed
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return ErrHostUnreachable
		}
		if opErr.Op == "listen" {
			return ErrAcceptFailed
		}
	}
	return ErrUnknown
}
