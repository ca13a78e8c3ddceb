package flow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:     "api-key",
		SecretKey:  "secret",
		BaseURL:    srv.URL + "/",
		AppBaseURL: "https://shop.example.cl/",
	})
	require.NoError(t, err)
	return c
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k", BaseURL: "x", AppBaseURL: "y"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "FLOW_SECRET_KEY", ce.Var)
}

func TestCreate_Success(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/create", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Write([]byte(`{"url":"https://sandbox.flow.cl/app/web/pay.php","token":"tok123","flowOrder":987}`))
	})

	p, err := c.Create(context.Background(), PaymentRequest{CommerceOrder: "1001", Total: 11899.6, Email: "a@b.cl"})
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.flow.cl/app/web/pay.php?token=tok123", p.PaymentURL)
	assert.Equal(t, "tok123", p.Token)
	assert.Equal(t, int64(987), p.FlowOrder)

	assert.Equal(t, "11900", got.Get("amount"))
	assert.Equal(t, DefaultCurrency, got.Get("currency"))
	assert.Equal(t, DefaultSubject, got.Get("subject"))
	assert.Equal(t, "https://shop.example.cl/api/payments/flow/confirmation", got.Get("urlConfirmation"))
	assert.Equal(t, "https://shop.example.cl/api/payments/flow/return", got.Get("urlReturn"))

	params := Params{}
	for k := range got {
		params[k] = got.Get(k)
	}
	assert.True(t, c.Signer().Verify(params, got.Get("s")))
}

func TestCreate_NonOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":108,"message":"invalid apiKey"}`))
	})

	_, err := c.Create(context.Background(), PaymentRequest{CommerceOrder: "1", Total: 10, Email: "a@b.cl"})
	var ge *GatewayCreateError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Contains(t, ge.Body, "invalid apiKey")
}

func TestCreate_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := c.Create(context.Background(), PaymentRequest{CommerceOrder: "1", Total: 10, Email: "a@b.cl"})
	var pe *GatewayProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "<html>maintenance</html>", pe.Body)
}

func TestGetStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/getStatus", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok123", r.PostForm.Get("token"))
		assert.Equal(t, "api-key", r.PostForm.Get("apiKey"))
		assert.NotEmpty(t, r.PostForm.Get("s"))
		w.Write([]byte(`{"flowOrder":987,"commerceOrder":"1001","status":2,"amount":11900,"currency":"CLP","email":"a@b.cl","subject":"Compra","date":"2026-10-01 10:00:00"}`))
	})

	st, err := c.GetStatus(context.Background(), "tok123")
	require.NoError(t, err)
	assert.True(t, st.Paid())
	assert.Equal(t, "1001", st.CommerceOrder)
	assert.Equal(t, int64(987), st.FlowOrder)
}

func TestGetStatus_NonOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GetStatus(context.Background(), "tok")
	var se *GatewayStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}
