package flow

import (
	"errors"
	"net/url"
	"strconv"
)

var (
	ErrMissingSignature = errors.New("flow: missing signature")
	ErrInvalidSignature = errors.New("flow: invalid signature")
	ErrMissingFields    = errors.New("flow: missing required fields")
)

// Confirmation is a verified callback from the gateway.
type Confirmation struct {
	Token         string
	FlowOrder     int64
	CommerceOrder string
	Status        int
}

// ParseConfirmation verifies the signature over every posted field except
// "s" before reading any of them.
func (s *Signer) ParseConfirmation(form url.Values) (Confirmation, error) {
	sig := form.Get(SignatureField)
	if sig == "" {
		return Confirmation{}, ErrMissingSignature
	}

	p := make(Params, len(form))
	for k := range form {
		if k == SignatureField {
			continue
		}
		p[k] = form.Get(k)
	}
	if !s.Verify(p, sig) {
		return Confirmation{}, ErrInvalidSignature
	}

	flowOrder, _ := strconv.ParseInt(p["flowOrder"], 10, 64)
	status, _ := strconv.Atoi(p["status"])
	c := Confirmation{
		Token:         p["token"],
		FlowOrder:     flowOrder,
		CommerceOrder: p["commerceOrder"],
		Status:        status,
	}
	if c.Token == "" || c.FlowOrder == 0 || c.CommerceOrder == "" {
		return c, ErrMissingFields
	}
	return c, nil
}
