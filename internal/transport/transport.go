// internal/transport/transport.go

// Package transport defines the contract with the chat-network client.
// The wire protocol lives behind these interfaces; the engine only sees
// typed outcomes.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Credentials identifies one account session on the network.
type Credentials struct {
	PhoneNumber string
	SessionName string
	APIID       int
	APIHash     string
}

// Client is a connected session. Disconnect is idempotent and always safe
// to call.
type Client interface {
	Send(ctx context.Context, target, text string) error
	Disconnect()
}

// Dialer opens sessions. Connect failures use the same error taxonomy as
// Send.
type Dialer interface {
	Connect(ctx context.Context, creds Credentials) (Client, error)
}

// ErrAuthRequired means the session needs (re-)authentication; retrying
// the same send cannot succeed.
var ErrAuthRequired = errors.New("transport: authentication required")

// ErrWriteForbidden means the target or account is write-restricted.
var ErrWriteForbidden = errors.New("transport: write forbidden")

// RateControlledError carries the backoff the network demanded.
type RateControlledError struct {
	Seconds int
}

func (e *RateControlledError) Error() string {
	return fmt.Sprintf("transport: rate controlled for %ds", e.Seconds)
}

// AsRateControlled extracts the demanded backoff, if err is a rate-control
// signal.
func AsRateControlled(err error) (int, bool) {
	var rc *RateControlledError
	if errors.As(err, &rc) {
		return rc.Seconds, true
	}
	return 0, false
}

// ProtocolError is a transport/protocol-layer fault; recoverable by fixed
// backoff.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("transport: protocol error: %s", e.Detail)
}

// IsProtocolError reports whether err is a protocol-layer fault.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
