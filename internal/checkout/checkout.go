// Package checkout turns a cart and billing details into a commerce order,
// and for Flow payments into a hosted-payment URL.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"grene-storefront/internal/catalog"
	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/orders"
)

// TaxRate is Chilean IVA, added on top of net cart prices.
const TaxRate = 0.19

var ErrNotConfigured = errors.New("checkout: commerce backend not configured")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type Item struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

type Billing struct {
	Nombre       string `json:"nombre"`
	Apellido     string `json:"apellido"`
	Email        string `json:"email"`
	Telefono     string `json:"telefono"`
	Direccion    string `json:"direccion"`
	Ciudad       string `json:"ciudad"`
	Region       string `json:"region"`
	CodigoPostal string `json:"codigoPostal"`
	Notas        string `json:"notas,omitempty"`
}

type Request struct {
	Items         []Item  `json:"items"`
	Billing       Billing `json:"billing"`
	PaymentMethod string  `json:"paymentMethod"`
}

type Result struct {
	Success     bool    `json:"success"`
	OrderID     int64   `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	FlowURL     *string `json:"flowUrl"`
}

// GrossTotal is the rounded cart total including IVA.
func GrossTotal(items []Item) float64 {
	var sub float64
	for _, it := range items {
		sub += it.Price * float64(it.Qty)
	}
	return math.Round(sub * (1 + TaxRate))
}

type OrderCreator interface {
	Configured() bool
	CreateOrder(ctx context.Context, req catalog.OrderRequest) (*catalog.OrderResponse, error)
}

type PaymentCreator interface {
	Create(ctx context.Context, req flow.PaymentRequest) (*flow.Payment, error)
}

// Reconciler starts background follow-up of a Flow payment.
type Reconciler interface {
	StartReconcile(ctx context.Context, ref modal.PaymentRef) error
}

type Service struct {
	orders     OrderCreator
	payments   PaymentCreator // nil when Flow is not configured
	ledger     orders.Ledger
	reconciler Reconciler // optional
	log        *slog.Logger
}

func NewService(oc OrderCreator, pc PaymentCreator, ledger orders.Ledger, rec Reconciler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: oc, payments: pc, ledger: ledger, reconciler: rec, log: logger.With("component", "checkout")}
}

func (r Request) validate() error {
	if len(r.Items) == 0 {
		return &ValidationError{Message: "El carrito está vacío"}
	}
	b := r.Billing
	if b.Nombre == "" || b.Apellido == "" || b.Email == "" {
		return &ValidationError{Message: "Datos de facturación incompletos"}
	}
	return nil
}

func (s *Service) PlaceOrder(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if s.orders == nil || !s.orders.Configured() {
		return Result{}, ErrNotConfigured
	}

	method, title := modal.MethodBank, "Transferencia Bancaria"
	if req.PaymentMethod == string(modal.MethodFlow) {
		method, title = modal.MethodFlow, "Flow"
	}

	or := catalog.OrderRequest{
		PaymentMethod:      string(method),
		PaymentMethodTitle: title,
		Billing: catalog.OrderBilling{
			FirstName: req.Billing.Nombre,
			LastName:  req.Billing.Apellido,
			Email:     req.Billing.Email,
			Phone:     req.Billing.Telefono,
			Address1:  req.Billing.Direccion,
			City:      req.Billing.Ciudad,
			State:     req.Billing.Region,
			Postcode:  req.Billing.CodigoPostal,
			Country:   "CL",
		},
		CustomerNote: req.Billing.Notas,
	}
	for _, it := range req.Items {
		or.LineItems = append(or.LineItems, catalog.OrderLine{ProductID: it.ID, Quantity: it.Qty})
	}

	s.log.Info("creating commerce order", "items", len(req.Items), "method", method, "email", req.Billing.Email)
	created, err := s.orders.CreateOrder(ctx, or)
	if err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	res := Result{Success: true, OrderID: created.ID, OrderNumber: created.NumberString()}
	commerceOrder := strconv.FormatInt(created.ID, 10)
	total := GrossTotal(req.Items)
	s.log.Info("commerce order created", "id", created.ID, "number", res.OrderNumber)

	entry := orders.Order{
		CommerceOrder: commerceOrder,
		Number:        res.OrderNumber,
		Method:        method,
		Status:        modal.PaymentPending,
		Amount:        total,
		Currency:      flow.DefaultCurrency,
		Email:         req.Billing.Email,
	}

	if method == modal.MethodFlow {
		if pay := s.startPayment(ctx, commerceOrder, res.OrderNumber, total, req.Billing.Email); pay != nil {
			res.FlowURL = &pay.PaymentURL
			entry.Token = pay.Token
			entry.FlowOrder = pay.FlowOrder
		}
	}

	if s.ledger != nil {
		if err := s.ledger.Save(ctx, entry); err != nil {
			s.log.Error("ledger save failed", "order", commerceOrder, "err", err)
		}
	}
	if entry.Token != "" && s.reconciler != nil {
		ref := modal.PaymentRef{CommerceOrder: commerceOrder, Token: entry.Token}
		if err := s.reconciler.StartReconcile(ctx, ref); err != nil {
			s.log.Warn("reconciliation not started", "order", commerceOrder, "err", err)
		}
	}
	return res, nil
}

// startPayment never fails the checkout: the order already exists.
func (s *Service) startPayment(ctx context.Context, commerceOrder, number string, total float64, email string) *flow.Payment {
	if s.payments == nil {
		s.log.Error("flow not configured", "order", commerceOrder)
		return nil
	}
	pay, err := s.payments.Create(ctx, flow.PaymentRequest{
		CommerceOrder: commerceOrder,
		Total:         total,
		Email:         email,
		Subject:       fmt.Sprintf("Orden #%s - Grenelectronic", number),
	})
	if err != nil {
		s.log.Error("flow payment failed", "order", commerceOrder, "err", err)
		return nil
	}
	s.log.Info("flow payment created", "order", commerceOrder, "token", flow.Obfuscate(pay.Token))
	return pay
}
