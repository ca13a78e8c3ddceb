package adminauth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return i
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	i := newIssuer(t)
	for _, user := range []string{"Superadmin", "a", "josé.pérez", "user.with.dots"} {
		tok, err := i.Issue(user)
		require.NoError(t, err)

		c, err := i.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, user, c.User)
		assert.Greater(t, c.Expires, c.IssuedAt)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	i := newIssuer(t)
	tok, err := i.Issue("Superadmin")
	require.NoError(t, err)

	data, sig, _ := strings.Cut(tok, ".")
	b := []byte(data)
	if b[3] == 'A' {
		b[3] = 'B'
	} else {
		b[3] = 'A'
	}

	_, err = i.Verify(string(b) + "." + sig)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_ForgedPayloadWithOldSignature(t *testing.T) {
	i := newIssuer(t)
	tok, _ := i.Issue("viewer")
	_, sig, _ := strings.Cut(tok, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"user":"Superadmin","iat":1,"exp":99999999999999}`))
	_, err := i.Verify(forged + "." + sig)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	i := newIssuer(t)
	tok, _ := i.Issue("u")

	for _, bad := range []string{"", "nodot", tok + ".extra", "a.b.c", ".", tok[:len(tok)-2]} {
		_, err := i.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestVerify_NotJSON(t *testing.T) {
	i := newIssuer(t)
	data := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	_, err := i.Verify(data + "." + i.mac(data))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	i := newIssuer(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	i.now = func() time.Time { return base }
	tok, _ := i.Issue("u")

	i.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err := i.Verify(tok)
	assert.NoError(t, err)

	i.now = func() time.Time { return base.Add(time.Hour) }
	_, err = i.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_OtherSecret(t *testing.T) {
	a := newIssuer(t)
	b, _ := NewIssuer("other", time.Hour)
	tok, _ := a.Issue("u")

	_, err := b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoginAndMiddleware(t *testing.T) {
	h := NewHandler(newIssuer(t), Credentials{User: "admin", Password: "pw"}, false, nil)

	protected := h.Middleware(http.HandlerFunc(h.Me))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"admin"`)
}

func TestLogin_RateLimited(t *testing.T) {
	h := NewHandler(newIssuer(t), Credentials{User: "admin", Password: "pw"}, false, nil)

	codes := map[int]int{}
	for n := 0; n < 8; n++ {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"x"}`)))
		codes[rec.Code]++
	}
	assert.Equal(t, 5, codes[http.StatusUnauthorized])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}

func TestLogin_ForwardedHeadersDoNotResetLimit(t *testing.T) {
	h := NewHandler(newIssuer(t), Credentials{User: "admin", Password: "pw"}, false, nil)
	login := PeerAddr(middleware.RealIP(http.HandlerFunc(h.Login)))

	codes := map[int]int{}
	for n := 0; n < 20; n++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"x"}`))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.0.%d", n+1))
		rec := httptest.NewRecorder()
		login.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, 5, codes[http.StatusUnauthorized])
	assert.Equal(t, 15, codes[http.StatusTooManyRequests])
	assert.Len(t, h.limiters, 1)
}

func TestLimiter_IdleEntriesEvicted(t *testing.T) {
	h := NewHandler(newIssuer(t), Credentials{User: "admin", Password: "pw"}, false, nil)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	for n := 0; n < 100; n++ {
		h.limiter(fmt.Sprintf("192.0.2.%d", n))
	}
	assert.Len(t, h.limiters, 100)

	now = now.Add(time.Minute)
	h.limiter("198.51.100.1")
	assert.Len(t, h.limiters, 1)
}
