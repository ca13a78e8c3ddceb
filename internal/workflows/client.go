package workflows

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"grene-storefront/internal/modal"
	"grene-storefront/internal/quotes"
)

// QuoteOutbox hands quote submissions to DeliverQuote. It satisfies
// quotes.Intake.
type QuoteOutbox struct {
	c   client.Client
	now func() time.Time
}

func NewQuoteOutbox(c client.Client) *QuoteOutbox {
	return &QuoteOutbox{c: c, now: time.Now}
}

func (o *QuoteOutbox) Submit(ctx context.Context, r quotes.Record) (quotes.Receipt, error) {
	// Stamped here so the email fallback carries the submission time.
	if r.CreatedAt == "" {
		r.CreatedAt = o.now().UTC().Format(quotes.TimeLayout)
	}
	opts := client.StartWorkflowOptions{
		ID:        "quote-" + uuid.NewString(),
		TaskQueue: TaskQueue,
	}
	if _, err := o.c.ExecuteWorkflow(ctx, opts, DeliverQuote, r); err != nil {
		return quotes.Receipt{}, err
	}
	return quotes.Receipt{Sink: quotes.SinkQueued, Record: r}, nil
}

// Reconciler starts and signals ReconcilePayment, one execution per
// commerce order.
type Reconciler struct {
	c client.Client
}

func NewReconciler(c client.Client) *Reconciler {
	return &Reconciler{c: c}
}

func ReconcileWorkflowID(commerceOrder string) string {
	return "reconcile-" + commerceOrder
}

// ReconcileOptions starts ReconcilePayment for one commerce order. There is
// no run timeout: MaxStatusPolls and the activity retry policy bound the run.
func ReconcileOptions(commerceOrder string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                    ReconcileWorkflowID(commerceOrder),
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
}

// StartReconcile is a no-op when the order is already being reconciled.
func (r *Reconciler) StartReconcile(ctx context.Context, ref modal.PaymentRef) error {
	_, err := r.c.ExecuteWorkflow(ctx, ReconcileOptions(ref.CommerceOrder), ReconcilePayment, ref)
	return err
}

// Confirm wakes the reconciliation for ref, starting it if needed.
func (r *Reconciler) Confirm(ctx context.Context, ref modal.PaymentRef, sig modal.PaymentSignal) error {
	_, err := r.c.SignalWithStartWorkflow(ctx, ReconcileWorkflowID(ref.CommerceOrder), PaymentConfirmedSignal, sig,
		ReconcileOptions(ref.CommerceOrder), ReconcilePayment, ref)
	return err
}

// Describe reads the payment and audit queries of a running or closed
// reconciliation.
func (r *Reconciler) Describe(ctx context.Context, commerceOrder string) (modal.PaymentCase, []modal.AuditEvent, error) {
	var pc modal.PaymentCase
	var audit []modal.AuditEvent

	v, err := r.c.QueryWorkflow(ctx, ReconcileWorkflowID(commerceOrder), "", "payment")
	if err != nil {
		return pc, nil, err
	}
	if err := v.Get(&pc); err != nil {
		return pc, nil, err
	}
	v, err = r.c.QueryWorkflow(ctx, ReconcileWorkflowID(commerceOrder), "", "audit_log")
	if err != nil {
		return pc, nil, err
	}
	if err := v.Get(&audit); err != nil {
		return pc, nil, err
	}
	return pc, audit, nil
}
