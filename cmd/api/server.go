package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"grene-storefront/internal/adminauth"
	"grene-storefront/internal/cart"
	"grene-storefront/internal/catalog"
	"grene-storefront/internal/checkout"
	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/orders"
	"grene-storefront/internal/quotes"
)

type paymentGateway interface {
	Create(ctx context.Context, req flow.PaymentRequest) (*flow.Payment, error)
	GetStatus(ctx context.Context, token string) (*flow.Status, error)
}

// paymentConfirmer wakes background reconciliation; nil without Temporal.
type paymentConfirmer interface {
	Confirm(ctx context.Context, ref modal.PaymentRef, sig modal.PaymentSignal) error
}

type server struct {
	log        *slog.Logger
	appBaseURL string

	flowCfg    flow.Config
	flowErr    error // why gateway is nil
	gateway    paymentGateway
	signer     *flow.Signer
	confirmer  paymentConfirmer
	describer  reconcileDescriber
	ledger     orders.Ledger
	checkout   *checkout.Service
	catalog    *catalog.Service
	carts      cart.Store
	auth       *adminauth.Handler
	quotes     quotes.Repository
	intake     quotes.Intake
	secure     bool
	reqTimeout time.Duration
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(adminauth.PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.reqTimeout > 0 {
		r.Use(middleware.Timeout(s.reqTimeout))
	}

	r.Route("/api/payments/flow", func(r chi.Router) {
		r.Post("/create", s.handleFlowCreate)
		r.Get("/return", s.handleFlowReturn)
		r.Post("/confirmation", s.handleFlowConfirmation)
		r.Get("/diagnostic", s.handleFlowDiagnostic)
	})

	r.Get("/api/products", s.handleProducts)
	r.Get("/api/products/{slug}", s.handleProduct)
	r.Post("/api/products/cotizaciones", s.handleQuoteSubmit)
	r.Get("/api/categories", s.handleCategories)

	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", s.handleCartGet)
		r.Delete("/", s.handleCartClear)
		r.Post("/items", s.handleCartAdd)
		r.Post("/items/{id}/inc", s.handleCartInc)
		r.Post("/items/{id}/dec", s.handleCartDec)
		r.Delete("/items/{id}", s.handleCartRemove)
	})

	r.Post("/api/woocommerce/create-order", s.handleCreateOrder)

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.auth.Login)
		r.Post("/logout", s.auth.Logout)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/me", s.auth.Me)
			r.Get("/products", s.handleAdminProducts)
			r.Get("/orders", s.handleAdminOrders)
			r.Get("/quotes", s.handleQuoteList)
			r.Post("/quotes", s.handleQuoteCreate)
			r.Get("/quotes/export.csv", s.handleQuoteExport)
			r.Get("/quotes/{id}", s.handleQuoteGet)
			r.Put("/quotes/{id}", s.handleQuoteUpdate)
			r.Get("/quotes/{id}/pdf", s.handleQuotePDF)
		})
	})

	registerUIRoutes(r, s)
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
