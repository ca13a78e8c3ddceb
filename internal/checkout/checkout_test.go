package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grene-storefront/internal/catalog"
	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/orders"
)

type fakeOrders struct {
	configured bool
	got        catalog.OrderRequest
	err        error
}

func (f *fakeOrders) Configured() bool { return f.configured }

func (f *fakeOrders) CreateOrder(ctx context.Context, req catalog.OrderRequest) (*catalog.OrderResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.OrderResponse{ID: 501, Number: json.RawMessage(`"501"`)}, nil
}

type fakePayments struct {
	got flow.PaymentRequest
	err error
}

func (f *fakePayments) Create(ctx context.Context, req flow.PaymentRequest) (*flow.Payment, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &flow.Payment{PaymentURL: "https://flow/pay?token=tok", Token: "tok", FlowOrder: 9}, nil
}

type fakeReconciler struct{ refs []modal.PaymentRef }

func (f *fakeReconciler) StartReconcile(ctx context.Context, ref modal.PaymentRef) error {
	f.refs = append(f.refs, ref)
	return nil
}

func validRequest(method string) Request {
	return Request{
		Items:         []Item{{ID: 1, Name: "Panel", Price: 1000, Qty: 2}, {ID: 2, Name: "Cable", Price: 333, Qty: 1}},
		Billing:       Billing{Nombre: "Ana", Apellido: "Rojas", Email: "ana@example.cl", Ciudad: "Santiago"},
		PaymentMethod: method,
	}
}

func TestGrossTotal(t *testing.T) {
	assert.Equal(t, 2776.0, GrossTotal(validRequest("").Items)) // 2333 * 1.19 = 2776.27
	assert.Equal(t, 0.0, GrossTotal(nil))
	assert.Equal(t, 12.0, GrossTotal([]Item{{Price: 10, Qty: 1}})) // 11.9
}

func TestPlaceOrder_Validation(t *testing.T) {
	svc := NewService(&fakeOrders{configured: true}, nil, nil, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), Request{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	req := validRequest("flow")
	req.Billing.Apellido = ""
	_, err = svc.PlaceOrder(context.Background(), req)
	require.ErrorAs(t, err, &ve)
}

func TestPlaceOrder_NotConfigured(t *testing.T) {
	svc := NewService(&fakeOrders{}, nil, nil, nil, nil)
	_, err := svc.PlaceOrder(context.Background(), validRequest("bacs"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPlaceOrder_BankTransfer(t *testing.T) {
	oc := &fakeOrders{configured: true}
	pc := &fakePayments{}
	ledger := orders.NewMemoryLedger()
	svc := NewService(oc, pc, ledger, nil, nil)

	res, err := svc.PlaceOrder(context.Background(), validRequest("transferencia"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(501), res.OrderID)
	assert.Nil(t, res.FlowURL)

	assert.Equal(t, "bacs", oc.got.PaymentMethod)
	assert.Equal(t, "Transferencia Bancaria", oc.got.PaymentMethodTitle)
	assert.Equal(t, "CL", oc.got.Billing.Country)
	assert.Len(t, oc.got.LineItems, 2)
	assert.Empty(t, pc.got.CommerceOrder, "no payment for bank transfer")

	o, err := ledger.Get(context.Background(), "501")
	require.NoError(t, err)
	assert.Equal(t, modal.PaymentPending, o.Status)
	assert.Equal(t, modal.MethodBank, o.Method)
}

func TestPlaceOrder_Flow(t *testing.T) {
	pc := &fakePayments{}
	rec := &fakeReconciler{}
	ledger := orders.NewMemoryLedger()
	svc := NewService(&fakeOrders{configured: true}, pc, ledger, rec, nil)

	res, err := svc.PlaceOrder(context.Background(), validRequest("flow"))
	require.NoError(t, err)
	require.NotNil(t, res.FlowURL)
	assert.Equal(t, "https://flow/pay?token=tok", *res.FlowURL)
	assert.Equal(t, 2776.0, pc.got.Total)
	assert.Equal(t, "Orden #501 - Grenelectronic", pc.got.Subject)
	assert.Equal(t, "501", pc.got.CommerceOrder)

	require.Len(t, rec.refs, 1)
	assert.Equal(t, modal.PaymentRef{CommerceOrder: "501", Token: "tok"}, rec.refs[0])

	o, err := ledger.Get(context.Background(), "501")
	require.NoError(t, err)
	assert.Equal(t, "tok", o.Token)
	assert.Equal(t, int64(9), o.FlowOrder)
}

func TestPlaceOrder_FlowFailureKeepsOrder(t *testing.T) {
	rec := &fakeReconciler{}
	svc := NewService(&fakeOrders{configured: true}, &fakePayments{err: errors.New("boom")}, nil, rec, nil)

	res, err := svc.PlaceOrder(context.Background(), validRequest("flow"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.FlowURL)
	assert.Empty(t, rec.refs)
}

func TestPlaceOrder_UpstreamError(t *testing.T) {
	up := &catalog.UpstreamError{Source: "woocommerce", StatusCode: 400}
	svc := NewService(&fakeOrders{configured: true, err: up}, nil, nil, nil, nil)
	_, err := svc.PlaceOrder(context.Background(), validRequest("bacs"))
	var ue *catalog.UpstreamError
	assert.ErrorAs(t, err, &ue)
}
