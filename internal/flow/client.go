package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gateway status codes returned by payment/getStatus.
const (
	StatusPending   = 1
	StatusPaid      = 2
	StatusRejected  = 3
	StatusCancelled = 4
)

const (
	DefaultSubject  = "Compra en Grenelectronic"
	DefaultCurrency = "CLP"
)

// ConfigError names a required setting that is absent.
type ConfigError struct {
	Var string
}

func (e *ConfigError) Error() string { return "missing env var: " + e.Var }

// GatewayCreateError is returned when payment/create answers with a non-2xx status.
type GatewayCreateError struct {
	StatusCode int
	Body       string
}

func (e *GatewayCreateError) Error() string {
	return fmt.Sprintf("flow create failed (%d): %s", e.StatusCode, e.Body)
}

// GatewayStatusError is returned when payment/getStatus answers with a non-2xx status.
type GatewayStatusError struct {
	StatusCode int
	Body       string
}

func (e *GatewayStatusError) Error() string {
	return fmt.Sprintf("flow getStatus failed (%d): %s", e.StatusCode, e.Body)
}

// GatewayProtocolError wraps a response body the client could not decode.
type GatewayProtocolError struct {
	Body string
	Err  error
}

func (e *GatewayProtocolError) Error() string {
	return fmt.Sprintf("invalid JSON from flow: %v: %s", e.Err, e.Body)
}

func (e *GatewayProtocolError) Unwrap() error { return e.Err }

type Config struct {
	APIKey     string
	SecretKey  string
	BaseURL    string // e.g. https://sandbox.flow.cl/api
	AppBaseURL string // public origin used for confirmation/return URLs
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	appBaseURL string
	signer     *Signer
	hc         *http.Client
	log        *slog.Logger
}

func New(cfg Config) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, &ConfigError{Var: "FLOW_API_KEY"}
	case cfg.SecretKey == "":
		return nil, &ConfigError{Var: "FLOW_SECRET_KEY"}
	case cfg.BaseURL == "":
		return nil, &ConfigError{Var: "FLOW_BASE_URL"}
	case cfg.AppBaseURL == "":
		return nil, &ConfigError{Var: "APP_BASE_URL"}
	}
	signer, err := NewSigner(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		appBaseURL: strings.TrimRight(cfg.AppBaseURL, "/"),
		signer:     signer,
		hc:         hc,
		log:        logger.With("component", "flow"),
	}, nil
}

func (c *Client) Signer() *Signer { return c.signer }

type PaymentRequest struct {
	CommerceOrder string
	Total         float64
	Email         string
	Subject       string
	Currency      string
}

type Payment struct {
	PaymentURL string `json:"paymentUrl"`
	Token      string `json:"token"`
	FlowOrder  int64  `json:"flowOrder,omitempty"`
}

type createResponse struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	FlowOrder int64  `json:"flowOrder"`
}

// Status is the decoded payment/getStatus record.
type Status struct {
	Status        int     `json:"status"`
	FlowOrder     int64   `json:"flowOrder"`
	CommerceOrder string  `json:"commerceOrder"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Email         string  `json:"email"`
	Subject       string  `json:"subject"`
	Date          string  `json:"date"`
}

func (s Status) Paid() bool { return s.Status == StatusPaid }

// ConfirmationURL is where the gateway posts signed payment confirmations.
func (c *Client) ConfirmationURL() string {
	return c.appBaseURL + "/api/payments/flow/confirmation"
}

// ReturnURL is where the browser lands after paying.
func (c *Client) ReturnURL() string {
	return c.appBaseURL + "/api/payments/flow/return"
}

// Create registers a payment and returns the hosted-page redirect URL.
func (c *Client) Create(ctx context.Context, req PaymentRequest) (*Payment, error) {
	if req.Subject == "" {
		req.Subject = DefaultSubject
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}

	p := Params{
		"apiKey":          c.apiKey,
		"commerceOrder":   req.CommerceOrder,
		"subject":         req.Subject,
		"currency":        req.Currency,
		"email":           req.Email,
		"urlConfirmation": c.ConfirmationURL(),
		"urlReturn":       c.ReturnURL(),
	}
	p.SetInt("amount", int64(math.Round(req.Total)))

	c.log.Info("creating payment",
		"commerceOrder", req.CommerceOrder,
		"amount", p["amount"],
		"currency", req.Currency,
		"email", req.Email,
		"urlConfirmation", p["urlConfirmation"],
		"urlReturn", p["urlReturn"],
	)

	code, body, err := c.post(ctx, "/payment/create", p)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		c.log.Error("payment/create non-ok status", "status", code, "body", body)
		return nil, &GatewayCreateError{StatusCode: code, Body: body}
	}

	var cr createResponse
	if err := json.Unmarshal([]byte(body), &cr); err != nil {
		c.log.Error("payment/create unparsable response", "body", body, "error", err)
		return nil, &GatewayProtocolError{Body: body, Err: err}
	}
	if cr.URL == "" || cr.Token == "" {
		return nil, &GatewayProtocolError{Body: body, Err: errors.New("missing url or token")}
	}

	c.log.Info("payment created", "flowOrder", cr.FlowOrder, "token", Obfuscate(cr.Token))
	return &Payment{
		PaymentURL: cr.URL + "?token=" + cr.Token,
		Token:      cr.Token,
		FlowOrder:  cr.FlowOrder,
	}, nil
}

// GetStatus queries the authoritative status of the payment identified by token.
func (c *Client) GetStatus(ctx context.Context, token string) (*Status, error) {
	p := Params{"apiKey": c.apiKey, "token": token}

	code, body, err := c.post(ctx, "/payment/getStatus", p)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		c.log.Error("payment/getStatus non-ok status", "status", code, "body", body)
		return nil, &GatewayStatusError{StatusCode: code, Body: body}
	}

	var st Status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return nil, &GatewayProtocolError{Body: body, Err: err}
	}
	return &st, nil
}

func (c *Client) post(ctx context.Context, path string, p Params) (int, string, error) {
	signed := c.signer.Signed(p)
	form := url.Values{}
	for k, v := range signed {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("flow %s: %w", path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("flow %s: read body: %w", path, err)
	}
	return resp.StatusCode, string(b), nil
}

// Obfuscate keeps the first six characters of a token or signature for logs.
func Obfuscate(s string) string {
	if len(s) <= 10 {
		return "..."
	}
	return s[:6] + "..." + s[len(s)-4:]
}
