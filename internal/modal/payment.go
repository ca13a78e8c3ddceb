package modal

import "time"

// PaymentRef identifies one gateway payment for a commerce order.
type PaymentRef struct {
	CommerceOrder string `json:"commerceOrder"`
	Token         string `json:"token"`
}

// PaymentCase is what the reconciliation workflow knows about a payment.
type PaymentCase struct {
	CommerceOrder string        `json:"commerceOrder"`
	Token         string        `json:"token"`
	FlowOrder     int64         `json:"flowOrder,omitempty"`
	Status        PaymentStatus `json:"status"`
	AttemptCount  int           `json:"attemptCount"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// PaymentSignal is sent to the workflow when a verified confirmation arrives.
type PaymentSignal struct {
	Token      string    `json:"token"`
	FlowOrder  int64     `json:"flowOrder"`
	Code       int       `json:"code"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// StatusUpdate is an authoritative status applied to the order ledger.
type StatusUpdate struct {
	CommerceOrder string        `json:"commerceOrder"`
	FlowOrder     int64         `json:"flowOrder,omitempty"`
	Token         string        `json:"token,omitempty"`
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	Email         string        `json:"email,omitempty"`
}
