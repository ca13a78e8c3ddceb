// Package orders is the local ledger of commerce orders and their payment
// state. The commerce backend owns the order itself; the ledger only keeps
// what the payment gateway has confirmed.
package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"grene-storefront/internal/modal"
)

var ErrNotFound = errors.New("order not found")

type Order struct {
	CommerceOrder string              `json:"commerceOrder"`
	Number        string              `json:"number,omitempty"`
	Method        modal.PaymentMethod `json:"method,omitempty"`
	FlowOrder     int64               `json:"flowOrder,omitempty"`
	Token         string              `json:"token,omitempty"`
	Status        modal.PaymentStatus `json:"status"`
	Amount        float64             `json:"amount"`
	Currency      string              `json:"currency,omitempty"`
	Email         string              `json:"email,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type Ledger interface {
	Save(ctx context.Context, o Order) error
	Get(ctx context.Context, commerceOrder string) (Order, error)
	// ApplyStatus records a verified status. It reports false when the
	// transition rule kept the stored status.
	ApplyStatus(ctx context.Context, u modal.StatusUpdate) (Order, bool, error)
	List(ctx context.Context) ([]Order, error)
}

// apply merges u into o following modal.PaymentStatus.CanMoveTo.
func apply(o Order, u modal.StatusUpdate, now time.Time) (Order, bool) {
	if o.Status != "" && !o.Status.CanMoveTo(u.Status) {
		return o, false
	}
	if o.CommerceOrder == "" {
		o.CommerceOrder = u.CommerceOrder
		o.CreatedAt = now
	}
	o.Status = u.Status
	if u.FlowOrder != 0 {
		o.FlowOrder = u.FlowOrder
	}
	if u.Token != "" {
		o.Token = u.Token
	}
	if u.Amount != 0 {
		o.Amount = u.Amount
	}
	if u.Currency != "" {
		o.Currency = u.Currency
	}
	if u.Email != "" {
		o.Email = u.Email
	}
	o.UpdatedAt = now
	return o, true
}

type MemoryLedger struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{orders: map[string]Order{}, now: time.Now}
}

func (l *MemoryLedger) Save(ctx context.Context, o Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = modal.PaymentPending
	}
	l.orders[o.CommerceOrder] = o
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, commerceOrder string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[commerceOrder]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (l *MemoryLedger) ApplyStatus(ctx context.Context, u modal.StatusUpdate) (Order, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, changed := apply(l.orders[u.CommerceOrder], u, l.now().UTC())
	if changed {
		l.orders[u.CommerceOrder] = o
	}
	return o, changed, nil
}

func (l *MemoryLedger) List(ctx context.Context) ([]Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
