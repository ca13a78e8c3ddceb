package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"grene-storefront/internal/cart"
	"grene-storefront/internal/catalog"
	"grene-storefront/internal/checkout"
)

const cartCookie = "cart_id"

func (s *server) catalogError(w http.ResponseWriter, op string, err error) {
	var ue *catalog.UpstreamError
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrNotConfigured):
		s.log.Error(op+": catalog not configured", "err", err)
		writeError(w, http.StatusInternalServerError, "catalog not configured")
	case errors.As(err, &ue):
		s.log.Error(op+": upstream error", "source", ue.Source, "status", ue.StatusCode, "body", ue.Body)
		writeError(w, http.StatusInternalServerError, "upstream error")
	default:
		s.log.Error(op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pq := catalog.ProductQuery{Search: q.Get("search"), After: q.Get("after")}
	for _, c := range q["category"] {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				pq.Categories = append(pq.Categories, part)
			}
		}
	}
	if n, err := strconv.Atoi(q.Get("first")); err == nil {
		pq.First = n
	}

	page, err := s.catalog.Products(r.Context(), pq)
	if err != nil {
		s.catalogError(w, "products", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.catalogError(w, "product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.catalogError(w, "categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

type adminProduct struct {
	ID    any      `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
	Slug  string   `json:"slug"`
}

// handleAdminProducts feeds the quote editor's product picker.
func (s *server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		q = r.URL.Query().Get("search")
	}
	page, err := s.catalog.Products(r.Context(), catalog.ProductQuery{Search: q, First: 20})
	if err != nil {
		s.log.Error("admin products", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Error fetching products"})
		return
	}
	s.catalog.BackfillPrices(r.Context(), page.Products)

	out := make([]adminProduct, 0, len(page.Products))
	for _, p := range page.Products {
		ap := adminProduct{ID: p.ID, Name: p.Name, Price: p.Price, Slug: p.Slug}
		if p.DatabaseID != 0 {
			ap.ID = p.DatabaseID
		}
		out = append(out, ap)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "products": out})
}

func (s *server) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.List(r.Context())
	if err != nil {
		s.log.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orders": list})
}

// cartSession binds the request to its cart, issuing a cart_id cookie on
// first use.
func (s *server) cartSession(w http.ResponseWriter, r *http.Request) *cart.Session {
	id := ""
	if c, err := r.Cookie(cartCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int((30 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return cart.NewSession(s.carts, id)
}

func writeCart(w http.ResponseWriter, c *cart.Cart) {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": c.Count(), "total": c.Total()})
}

func (s *server) mutateCart(w http.ResponseWriter, r *http.Request, fn func(*cart.Cart)) {
	c, err := s.cartSession(w, r).Apply(r.Context(), fn)
	if err != nil {
		s.log.Error("cart store", "err", err)
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	writeCart(w, c)
}

func (s *server) handleCartGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.cartSession(w, r).Load(r.Context())
	if err != nil {
		s.log.Error("cart store", "err", err)
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	writeCart(w, c)
}

type addItemReq struct {
	cart.Item
	Qty int `json:"qty"`
}

func (s *server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid item")
		return
	}
	s.mutateCart(w, r, func(c *cart.Cart) { c.Add(req.Item, req.Qty) })
}

func (s *server) handleCartInc(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutateCart(w, r, func(c *cart.Cart) { c.Inc(id) })
}

func (s *server) handleCartDec(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutateCart(w, r, func(c *cart.Cart) { c.Dec(id) })
}

func (s *server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutateCart(w, r, func(c *cart.Cart) { c.Remove(id) })
}

func (s *server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	s.mutateCart(w, r, func(c *cart.Cart) { c.Clear() })
}

// handleCreateOrder places an order from the posted items, or from the
// server-side cart when none are posted. A cart used this way is cleared.
func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	var sess *cart.Session
	if len(req.Items) == 0 && s.carts != nil {
		if _, err := r.Cookie(cartCookie); err == nil {
			sess = s.cartSession(w, r)
			if c, err := sess.Load(r.Context()); err == nil {
				req.Items = checkoutItems(c)
			}
		}
	}

	res, err := s.checkout.PlaceOrder(r.Context(), req)
	var ve *checkout.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	case errors.Is(err, checkout.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "Configuración de WooCommerce incompleta")
		return
	case err != nil:
		var ue *catalog.UpstreamError
		if errors.As(err, &ue) {
			s.log.Error("create order: upstream error", "status", ue.StatusCode, "body", ue.Body)
			writeError(w, http.StatusInternalServerError, "Error al crear la orden en WooCommerce")
			return
		}
		s.log.Error("create order", "err", err)
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	if sess != nil {
		if _, err := sess.Apply(r.Context(), func(c *cart.Cart) { c.Clear() }); err != nil {
			s.log.Warn("cart not cleared after order", "order", res.OrderID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func checkoutItems(c *cart.Cart) []checkout.Item {
	out := make([]checkout.Item, 0, len(c.Items))
	for _, it := range c.Items {
		id, err := strconv.ParseInt(it.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, checkout.Item{ID: id, Name: it.Name, Price: it.Price, Qty: it.Qty})
	}
	return out
}
