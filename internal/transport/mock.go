// internal/transport/mock.go
package transport

import (
	"context"
	"math/rand"
	"sync"
)

// MockDialer simulates the chat network for development runs. Roughly 90%
// of sends succeed; the rest split across the failure taxonomy.
type MockDialer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockDialer(seed int64) *MockDialer {
	return &MockDialer{rng: rand.New(rand.NewSource(seed))}
}

func (d *MockDialer) Connect(ctx context.Context, creds Credentials) (Client, error) {
	if creds.SessionName == "" {
		return nil, ErrAuthRequired
	}
	return &mockClient{dialer: d}, nil
}

type mockClient struct {
	dialer *MockDialer
}

func (c *mockClient) Send(ctx context.Context, target, text string) error {
	c.dialer.mu.Lock()
	roll := c.dialer.rng.Float64()
	seconds := 30 + c.dialer.rng.Intn(90)
	c.dialer.mu.Unlock()

	switch {
	case roll < 0.90:
		return nil
	case roll < 0.95:
		return &RateControlledError{Seconds: seconds}
	case roll < 0.97:
		return ErrWriteForbidden
	default:
		return &ProtocolError{Detail: "simulated rpc failure"}
	}
}

func (c *mockClient) Disconnect() {}
