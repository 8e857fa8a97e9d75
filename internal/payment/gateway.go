// Package payment models the external payment provider. The marketplace
// only needs an idempotent charge keyed by the caller and a refund for
// compensation; the in-process Simulated gateway provides both.
package payment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

// Supported payment methods.
const (
	MethodPayPal  = "paypal"
	MethodCard    = "card"
	MethodSwish   = "swish"
	MethodGeneric = "generic"

	DefaultMethod = MethodPayPal
)

var (
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrDeclined          = errors.New("payment declined")
	ErrUnknownCharge     = errors.New("unknown charge")
)

// NormalizeMethod lower-cases m and applies the default for an empty value.
func NormalizeMethod(m string) (string, error) {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		return DefaultMethod, nil
	}
	switch m {
	case MethodPayPal, MethodCard, MethodSwish, MethodGeneric:
		return m, nil
	}
	return "", ErrUnsupportedMethod
}

// ChargeRequest asks the provider to move Amount from the payer. Repeating
// a request with the same IdempotencyKey returns the original charge.
type ChargeRequest struct {
	IdempotencyKey string
	Amount         model.Cents
	Method         string
}

// Charge is a captured payment.
type Charge struct {
	Ref      string
	Amount   model.Cents
	Refunded bool
}

// Gateway is the payment provider capability.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
	Refund(ctx context.Context, ref string) error
}

// Simulated is an in-memory idempotent gateway. It never talks to a real
// provider and approves every charge with a supported method.
type Simulated struct {
	mu    sync.Mutex
	byKey map[string]*Charge
	byRef map[string]*Charge
}

func NewSimulated() *Simulated {
	return &Simulated{byKey: map[string]*Charge{}, byRef: map[string]*Charge{}}
}

func (g *Simulated) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if err := ctx.Err(); err != nil {
		return Charge{}, err
	}
	if _, err := NormalizeMethod(req.Method); err != nil {
		return Charge{}, err
	}
	if req.Amount < 0 {
		return Charge{}, ErrDeclined
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return *c, nil
	}
	c := &Charge{Ref: "sim_" + uuid.NewString(), Amount: req.Amount}
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = c
	}
	g.byRef[c.Ref] = c
	return *c, nil
}

// Refund reverses a charge. Refunding twice is a no-op. A refunded
// idempotency key may be charged again.
func (g *Simulated) Refund(ctx context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.byRef[ref]
	if !ok {
		return ErrUnknownCharge
	}
	c.Refunded = true
	for k, v := range g.byKey {
		if v == c {
			delete(g.byKey, k)
		}
	}
	return nil
}
