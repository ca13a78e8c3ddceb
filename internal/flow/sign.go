package flow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// SignatureField is the form field carrying the request signature.
const SignatureField = "s"

var ErrMissingSecret = errors.New("flow: missing FLOW_SECRET_KEY")

// Params is a gateway parameter set. Values are sent exactly as stored.
type Params map[string]string

func (p Params) SetInt(key string, v int64) {
	p[key] = strconv.FormatInt(v, 10)
}

// Canonical returns the string the gateway signs: every key except the
// signature field, sorted by byte order, joined as key=value with '&'.
func (p Params) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

type Signer struct {
	secret []byte
}

// NewSigner refuses an empty secret; there is no default.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, p.Canonical())).
func (s *Signer) Sign(p Params) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(p.Canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the signature of p. A signature field
// present in p is ignored.
func (s *Signer) Verify(p Params, sig string) bool {
	expected := s.Sign(p)
	if len(expected) != len(sig) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Signed returns a copy of p with the signature field set.
func (s *Signer) Signed(p Params) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		if k == SignatureField {
			continue
		}
		out[k] = v
	}
	out[SignatureField] = s.Sign(out)
	return out
}
