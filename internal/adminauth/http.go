package adminauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const CookieName = "admin_session"

type ctxKey struct{}

type peerKey struct{}

// PeerAddr records the socket address of the request before any
// forwarded-header rewriting. Mount it ahead of middleware.RealIP so login
// throttling keys on the connection, not on client-supplied headers.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)))
	})
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

type Credentials struct {
	User     string
	Password string
}

type Handler struct {
	issuer *Issuer
	creds  Credentials
	secure bool
	log    *slog.Logger

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
	limit     rate.Limit
	burst     int
	now       func() time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewHandler serves login/logout/me. secure sets the cookie Secure flag.
func NewHandler(issuer *Issuer, creds Credentials, secure bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		issuer:   issuer,
		creds:    creds,
		secure:   secure,
		log:      logger.With("component", "adminauth"),
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(6 * time.Second),
		burst:    5,
		now:      time.Now,
	}
}

// Middleware rejects requests without a valid session cookie with 401.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.Session(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

var (
	ErrRateLimited    = errors.New("too many attempts")
	ErrBadCredentials = errors.New("invalid credentials")
)

// Authenticate checks user and password for the client of r and returns a
// fresh session token.
func (h *Handler) Authenticate(r *http.Request, user, password string) (string, error) {
	if !h.limiter(clientIP(r)).Allow() {
		return "", ErrRateLimited
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.creds.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.creds.Password)) == 1
	if !userOK || !passOK {
		h.log.Warn("admin login rejected", "ip", clientIP(r))
		return "", ErrBadCredentials
	}
	h.log.Info("admin login", "user", user)
	return h.issuer.Issue(user)
}

// Session returns the claims of a valid session cookie on r.
func (h *Handler) Session(r *http.Request) (Claims, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Claims{}, false
	}
	claims, err := h.issuer.Verify(c.Value)
	return claims, err == nil
}

func (h *Handler) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		if !h.limiter(clientIP(r)).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many attempts"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing credentials"})
		return
	}

	token, err := h.Authenticate(r, req.Username, req.Password)
	switch {
	case errors.Is(err, ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many attempts"})
		return
	case errors.Is(err, ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	h.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Me must be mounted behind Middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]any{"name": c.User, "iat": c.IssuedAt, "exp": c.Expires},
	})
}

func (h *Handler) limiter(ip string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.sweep(now)
	e, ok := h.limiters[ip]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(h.limit, h.burst)}
		h.limiters[ip] = e
	}
	e.seen = now
	return e.lim
}

// sweep drops limiters idle long enough to have refilled completely; a fresh
// limiter behaves the same. Runs at most once per refill period.
func (h *Handler) sweep(now time.Time) {
	idle := time.Duration(float64(h.burst) / float64(h.limit) * float64(time.Second))
	if now.Sub(h.lastSweep) < idle {
		return
	}
	h.lastSweep = now
	for ip, e := range h.limiters {
		if now.Sub(e.seen) >= idle {
			delete(h.limiters, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if peer, ok := r.Context().Value(peerKey{}).(string); ok && peer != "" {
		addr = peer
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
