package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type flowCreateReq struct {
	OrderID  flexString  `json:"orderId"`
	Total    json.Number `json:"total"`
	Email    string      `json:"email"`
	Subject  string      `json:"subject"`
	Currency string      `json:"currency"`
}

func (s *server) handleFlowCreate(w http.ResponseWriter, r *http.Request) {
	var req flowCreateReq
	err := json.NewDecoder(r.Body).Decode(&req)
	total, totalErr := req.Total.Float64()
	if err != nil || req.OrderID == "" || req.Email == "" || totalErr != nil {
		s.log.Warn("flow create: invalid parameters", "orderId", req.OrderID, "email", req.Email)
		writeError(w, http.StatusBadRequest, "Parámetros inválidos")
		return
	}
	if s.gateway == nil {
		writeError(w, http.StatusInternalServerError, s.flowErr.Error())
		return
	}

	pay, err := s.gateway.Create(r.Context(), flow.PaymentRequest{
		CommerceOrder: string(req.OrderID),
		Total:         total,
		Email:         req.Email,
		Subject:       req.Subject,
		Currency:      req.Currency,
	})
	if err != nil {
		s.log.Error("flow create failed", "orderId", req.OrderID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("flow payment created", "orderId", req.OrderID, "token", flow.Obfuscate(pay.Token))
	writeJSON(w, http.StatusOK, map[string]any{"paymentUrl": pay.PaymentURL, "token": pay.Token})
}

// handleFlowReturn routes the browser by the queried status, never by the
// query string.
func (s *server) handleFlowReturn(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, s.appBaseURL+"/pago/error?reason=missing_token", http.StatusFound)
		return
	}
	if s.gateway == nil {
		s.log.Error("flow return: gateway not configured", "err", s.flowErr)
		http.Redirect(w, r, s.appBaseURL+"/pago/error?reason=exception", http.StatusFound)
		return
	}

	st, err := s.gateway.GetStatus(r.Context(), token)
	if err != nil {
		s.log.Error("flow return: status query failed", "token", flow.Obfuscate(token), "err", err)
		http.Redirect(w, r, s.appBaseURL+"/pago/error?reason=exception", http.StatusFound)
		return
	}
	s.applyStatus(r, modal.StatusUpdate{
		CommerceOrder: st.CommerceOrder,
		FlowOrder:     st.FlowOrder,
		Token:         token,
		Status:        modal.FromFlowCode(st.Status),
		Amount:        st.Amount,
		Currency:      st.Currency,
		Email:         st.Email,
	})

	orderID := url.QueryEscape(st.CommerceOrder)
	if st.Paid() {
		http.Redirect(w, r, s.appBaseURL+"/pago/exito?orderId="+orderID, http.StatusFound)
		return
	}
	http.Redirect(w, r, s.appBaseURL+"/pago/error?orderId="+orderID+"&code="+strconv.Itoa(st.Status), http.StatusFound)
}

func (s *server) handleFlowConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if s.signer == nil {
		writeError(w, http.StatusInternalServerError, s.flowErr.Error())
		return
	}

	c, err := s.signer.ParseConfirmation(r.PostForm)
	switch {
	case errors.Is(err, flow.ErrMissingSignature):
		writeError(w, http.StatusBadRequest, "Missing signature")
		return
	case errors.Is(err, flow.ErrInvalidSignature):
		s.log.Warn("flow confirmation with invalid signature", "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, flow.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u := modal.StatusUpdate{
		CommerceOrder: c.CommerceOrder,
		FlowOrder:     c.FlowOrder,
		Token:         c.Token,
		Status:        modal.FromFlowCode(c.Status),
	}
	if s.ledger != nil {
		if _, _, err := s.ledger.ApplyStatus(r.Context(), u); err != nil {
			s.log.Error("flow confirmation: ledger update failed", "commerceOrder", c.CommerceOrder, "err", err)
			writeError(w, http.StatusInternalServerError, "ledger unavailable")
			return
		}
	}
	if s.confirmer != nil {
		ref := modal.PaymentRef{CommerceOrder: c.CommerceOrder, Token: c.Token}
		sig := modal.PaymentSignal{Token: c.Token, FlowOrder: c.FlowOrder, Code: c.Status, ReceivedAt: time.Now().UTC()}
		if err := s.confirmer.Confirm(r.Context(), ref, sig); err != nil {
			s.log.Warn("flow confirmation: reconciliation not signalled", "commerceOrder", c.CommerceOrder, "err", err)
		}
	}
	s.log.Info("flow confirmation accepted", "commerceOrder", c.CommerceOrder, "status", u.Status)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *server) handleFlowDiagnostic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, flow.Diagnose(s.flowCfg))
}

func (s *server) applyStatus(r *http.Request, u modal.StatusUpdate) {
	if s.ledger == nil || u.CommerceOrder == "" {
		return
	}
	if _, changed, err := s.ledger.ApplyStatus(r.Context(), u); err != nil {
		s.log.Error("ledger update failed", "commerceOrder", u.CommerceOrder, "err", err)
	} else if !changed {
		s.log.Info("ledger kept stored status", "commerceOrder", u.CommerceOrder, "received", u.Status)
	}
}
