// Package adminauth issues and checks the back-office session token.
//
// A token is base64url(json payload) + "." + base64url(HMAC-SHA256 of the
// encoded payload). The payload carries the user name, the issue time and a
// mandatory expiry, both in Unix milliseconds.
package adminauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingSecret = errors.New("adminauth: missing session secret")
	ErrInvalidToken  = errors.New("adminauth: invalid token")
)

const DefaultTTL = 7 * 24 * time.Hour

type Claims struct {
	User     string `json:"user"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer fails closed: an empty secret is a startup error.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

func (i *Issuer) Issue(user string) (string, error) {
	if user == "" {
		return "", errors.New("adminauth: empty user")
	}
	now := i.now()
	b, err := json.Marshal(Claims{
		User:     user,
		IssuedAt: now.UnixMilli(),
		Expires:  now.Add(i.ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(b)
	return data + "." + i.mac(data), nil
}

func (i *Issuer) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, ErrInvalidToken
	}
	data, sig := parts[0], parts[1]

	expected := i.mac(data)
	if len(expected) != len(sig) || !hmac.Equal([]byte(expected), []byte(sig)) {
		return Claims{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if c.User == "" || c.Expires == 0 || i.now().UnixMilli() >= c.Expires {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

func (i *Issuer) mac(data string) string {
	m := hmac.New(sha256.New, i.secret)
	m.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
