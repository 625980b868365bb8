package payment

import (
	"context"
	"fmt"
	"sync"

	"guardians-shop/internal/domain"
)

// MockGateway is an in-memory gateway for local runs and tests.
type MockGateway struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
	failures int
	calls    int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{payments: make(map[string]domain.Payment)}
}

// Put registers or replaces a payment.
func (g *MockGateway) Put(p domain.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

// FailNext makes the next n calls return ErrGatewayUnavailable.
func (g *MockGateway) FailNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = n
}

func (g *MockGateway) Calls() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.calls
}

func (g *MockGateway) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	g.mu.Lock()
	g.calls++
	if g.failures > 0 {
		g.failures--
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: simulated outage", ErrGatewayUnavailable)
	}
	p, ok := g.payments[paymentID]
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", ErrGatewayUnavailable, paymentID)
	}

	out := p
	out.Metadata = make(domain.Metadata, len(p.Metadata))
	for k, v := range p.Metadata {
		out.Metadata[k] = v
	}
	return &out, nil
}
