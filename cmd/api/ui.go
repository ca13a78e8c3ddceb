package main

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"grene-storefront/internal/adminauth"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/orders"
	"grene-storefront/internal/quotes"
)

// reconcileDescriber reads reconciliation workflow state; nil without Temporal.
type reconcileDescriber interface {
	Describe(ctx context.Context, commerceOrder string) (modal.PaymentCase, []modal.AuditEvent, error)
}

type uiServer struct {
	s *server
	t *template.Template
}

type uiLoginData struct {
	Error string
}

type uiIndexData struct {
	User   string
	Query  string
	Quotes []quotes.Record
	Orders []orders.Order
	Error  string
}

type uiField struct {
	Key   string
	Value string
}

type uiDetailData struct {
	User      string
	Quote     quotes.Record
	Fields    []uiField
	LineItems string
	Saved     bool
	Error     string
}

type uiOrderData struct {
	User    string
	Order   orders.Order
	Payment *modal.PaymentCase
	Audit   []modal.AuditEvent
	Error   string
}

func registerUIRoutes(r chi.Router, s *server) {
	t := template.Must(template.New("base").Funcs(template.FuncMap{
		"money": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}).Parse(uiTemplates))
	u := &uiServer{s: s, t: t}

	r.Get("/admin/login", u.handleLoginForm)
	r.Post("/admin/login", u.handleLogin)
	r.Post("/admin/logout", u.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(u.requireSession)
		r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/quotes", http.StatusSeeOther)
		})
		r.Get("/admin/quotes", u.handleIndex)
		r.Get("/admin/quotes/{id}", u.handleDetail)
		r.Post("/admin/quotes/{id}", u.handleEdit)
		r.Get("/admin/orders/{commerceOrder}", u.handleOrder)
	})
}

// requireSession sends visitors without a session to the login form.
func (u *uiServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := u.s.auth.Session(r); !ok {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userOf(r *http.Request, h *adminauth.Handler) string {
	c, _ := h.Session(r)
	return c.User
}

func (u *uiServer) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	_ = u.t.ExecuteTemplate(w, "login", uiLoginData{})
}

func (u *uiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	token, err := u.s.auth.Authenticate(r, r.FormValue("username"), r.FormValue("password"))
	switch {
	case errors.Is(err, adminauth.ErrRateLimited):
		w.WriteHeader(http.StatusTooManyRequests)
		_ = u.t.ExecuteTemplate(w, "login", uiLoginData{Error: "Demasiados intentos, espera un momento."})
		return
	case err != nil:
		w.WriteHeader(http.StatusUnauthorized)
		_ = u.t.ExecuteTemplate(w, "login", uiLoginData{Error: "Credenciales inválidas."})
		return
	}
	u.s.auth.SetCookie(w, token)
	http.Redirect(w, r, "/admin/quotes", http.StatusSeeOther)
}

func (u *uiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	u.s.auth.ClearCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// handleIndex lists quotes, filtered by q, and the most recent orders.
func (u *uiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	data := uiIndexData{User: userOf(r, u.s.auth), Query: q}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	list, err := u.s.quotes.List(ctx, q)
	if err != nil {
		data.Error = err.Error()
		_ = u.t.ExecuteTemplate(w, "index", data)
		return
	}
	data.Quotes = list

	if u.s.ledger != nil {
		all, err := u.s.ledger.List(ctx)
		if err == nil {
			if len(all) > 20 {
				all = all[:20]
			}
			data.Orders = all
		}
	}
	_ = u.t.ExecuteTemplate(w, "index", data)
}

func (u *uiServer) detailData(r *http.Request, rec quotes.Record) uiDetailData {
	data := uiDetailData{User: userOf(r, u.s.auth), Quote: rec}
	for _, k := range rec.FieldKeys() {
		data.Fields = append(data.Fields, uiField{Key: k, Value: rec.String(k)})
	}
	b, _ := json.MarshalIndent(rec.LineItems, "", "  ")
	data.LineItems = string(b)
	return data
}

func (u *uiServer) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	rec, err := u.s.quotes.Get(r.Context(), id)
	if errors.Is(err, quotes.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		_ = u.t.ExecuteTemplate(w, "detail", uiDetailData{Error: err.Error()})
		return
	}
	data := u.detailData(r, rec)
	data.Saved = r.URL.Query().Get("saved") == "1"
	_ = u.t.ExecuteTemplate(w, "detail", data)
}

// handleEdit applies the edit form as a shallow patch. Only fields that
// already exist or are added through new_key/new_value are sent.
func (u *uiServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	patch := map[string]any{}
	for k, v := range r.PostForm {
		if key, ok := strings.CutPrefix(k, "f_"); ok && len(v) > 0 {
			patch[key] = v[0]
		}
	}
	if k := strings.TrimSpace(r.PostForm.Get("new_key")); k != "" {
		patch[k] = r.PostForm.Get("new_value")
	}
	if raw := strings.TrimSpace(r.PostForm.Get("lineItems")); raw != "" {
		var items []any
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			u.renderEditError(w, r, id, "lineItems: "+err.Error())
			return
		}
		patch["lineItems"] = items
	}

	if _, err := u.s.quotes.Update(r.Context(), id, patch); err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		u.renderEditError(w, r, id, err.Error())
		return
	}
	http.Redirect(w, r, "/admin/quotes/"+strconv.FormatInt(id, 10)+"?saved=1", http.StatusSeeOther)
}

func (u *uiServer) renderEditError(w http.ResponseWriter, r *http.Request, id int64, msg string) {
	rec, err := u.s.quotes.Get(r.Context(), id)
	data := uiDetailData{Error: msg}
	if err == nil {
		data = u.detailData(r, rec)
		data.Error = msg
	}
	w.WriteHeader(http.StatusBadRequest)
	_ = u.t.ExecuteTemplate(w, "detail", data)
}

// handleOrder shows the ledger entry and, when available, the
// reconciliation workflow's view of the payment.
func (u *uiServer) handleOrder(w http.ResponseWriter, r *http.Request) {
	co := chi.URLParam(r, "commerceOrder")
	data := uiOrderData{User: userOf(r, u.s.auth)}

	o, err := u.s.ledger.Get(r.Context(), co)
	if err != nil {
		data.Error = err.Error()
		_ = u.t.ExecuteTemplate(w, "order", data)
		return
	}
	data.Order = o

	if u.s.describer != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		pc, audit, err := u.s.describer.Describe(ctx, co)
		if err == nil {
			data.Payment = &pc
			data.Audit = audit
		}
	}
	_ = u.t.ExecuteTemplate(w, "order", data)
}

const uiTemplates = `
{{define "head"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Grene · Administración</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
    .err { color: #b00020; }
    .ok { color: #1b5e20; }
    .muted { color: #666; }
    pre, textarea { background: #f7f7f7; padding: 12px; }
    header { display: flex; justify-content: space-between; align-items: center; }
  </style>
</head>
<body>
{{end}}

{{define "nav"}}
  <header>
    <h2><a href="/admin/quotes">Cotizaciones</a></h2>
    <form method="post" action="/admin/logout"><span class="muted">{{.}}</span> <button type="submit">Salir</button></form>
  </header>
{{end}}

{{define "login"}}
{{template "head"}}
  <h2>Acceso administración</h2>
  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}
  <form method="post" action="/admin/login">
    <label>Usuario <input name="username" autocomplete="username"/></label><br/><br/>
    <label>Contraseña <input name="password" type="password" autocomplete="current-password"/></label><br/><br/>
    <button type="submit">Entrar</button>
  </form>
</body>
</html>
{{end}}

{{define "index"}}
{{template "head"}}
  {{template "nav" .User}}

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}

  <form method="get" action="/admin/quotes">
    <input name="q" placeholder="nombre, email, producto…" value="{{.Query}}" style="width: 320px;"/>
    <button type="submit">Buscar</button>
    <a href="/api/admin/quotes/export.csv?q={{.Query}}">Exportar CSV</a>
  </form>

  <table>
    <thead><tr><th>ID</th><th>Fecha</th><th>Nombre</th><th>Email</th><th>Ítems</th><th>Total</th></tr></thead>
    <tbody>
    {{range .Quotes}}
      <tr>
        <td><a href="/admin/quotes/{{.ID}}">{{.ID}}</a></td>
        <td>{{.CreatedAt}}</td>
        <td>{{.Name}}</td>
        <td>{{.Email}}</td>
        <td>{{len .LineItems}}</td>
        <td>{{money .Total}}</td>
      </tr>
    {{else}}
      <tr><td colspan="6" class="muted">Sin cotizaciones</td></tr>
    {{end}}
    </tbody>
  </table>

  {{if .Orders}}
    <h3>Pedidos recientes</h3>
    <table>
      <thead><tr><th>Pedido</th><th>Método</th><th>Estado</th><th>Monto</th><th>Actualizado</th></tr></thead>
      <tbody>
      {{range .Orders}}
        <tr>
          <td><a href="/admin/orders/{{.CommerceOrder}}">{{.CommerceOrder}}</a></td>
          <td>{{.Method}}</td>
          <td>{{.Status}}</td>
          <td>{{money .Amount}} {{.Currency}}</td>
          <td>{{.UpdatedAt.Format "2006-01-02 15:04"}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
  {{end}}
</body>
</html>
{{end}}

{{define "detail"}}
{{template "head"}}
  {{template "nav" .User}}
  <a href="/admin/quotes">← Volver</a>

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}
  {{if .Saved}}<p class="ok">Cambios guardados.</p>{{end}}

  {{if .Quote.ID}}
  <h3>Cotización {{.Quote.ID}}</h3>
  <p class="muted">Creada {{.Quote.CreatedAt}} · <a href="/api/admin/quotes/{{.Quote.ID}}/pdf">PDF</a></p>

  <form method="post" action="/admin/quotes/{{.Quote.ID}}">
    <table>
      <tbody>
      {{range .Fields}}
        <tr><th>{{.Key}}</th><td><input name="f_{{.Key}}" value="{{.Value}}" style="width: 100%;"/></td></tr>
      {{end}}
        <tr><th><input name="new_key" placeholder="nuevo campo"/></th><td><input name="new_value" style="width: 100%;"/></td></tr>
      </tbody>
    </table>

    <h4>Ítems</h4>
    <textarea name="lineItems" rows="12" cols="80">{{.LineItems}}</textarea><br/><br/>
    <button type="submit">Guardar</button>
  </form>
  {{end}}
</body>
</html>
{{end}}

{{define "order"}}
{{template "head"}}
  {{template "nav" .User}}
  <a href="/admin/quotes">← Volver</a>

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}

  {{if .Order.CommerceOrder}}
  <h3>Pedido {{.Order.CommerceOrder}}{{if .Order.Number}} (#{{.Order.Number}}){{end}}</h3>
  <p><b>Estado:</b> {{.Order.Status}}<br/>
     <b>Método:</b> {{.Order.Method}}<br/>
     <b>Monto:</b> {{money .Order.Amount}} {{.Order.Currency}}<br/>
     <b>Flow:</b> {{.Order.FlowOrder}}<br/>
     <b>Email:</b> {{.Order.Email}}</p>
  {{end}}

  {{if .Payment}}
    <h3>Conciliación</h3>
    <p><b>Estado visto:</b> {{.Payment.Status}} · <b>Consultas:</b> {{.Payment.AttemptCount}}</p>
    <table>
      <thead><tr><th>Hora</th><th>Tipo</th><th>Mensaje</th></tr></thead>
      <tbody>
        {{range .Audit}}
          <tr>
            <td>{{.At}}</td>
            <td>{{.Kind}}</td>
            <td>{{.Message}}</td>
          </tr>
        {{end}}
      </tbody>
    </table>
  {{end}}
</body>
</html>
{{end}}
`
