package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"grene-storefront/internal/modal"
	"grene-storefront/internal/quotes"
)

// DeliverQuote is the outbox for quote submissions: persist with retries,
// then email with retries. The result names the sink that took the record.
func DeliverQuote(ctx workflow.Context, r quotes.Record) (quotes.Sink, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("workflow started", "email", r.Email())

	audit := make([]modal.AuditEvent, 0, 4)
	appendAudit := func(kind, message string, data map[string]any) {
		audit = append(audit, modal.AuditEvent{At: workflow.Now(ctx), Kind: kind, Message: message, Data: data})
	}
	_ = workflow.SetQueryHandler(ctx, "audit_log", func() ([]modal.AuditEvent, error) {
		return audit, nil
	})

	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    5,
		},
	})
	var saved quotes.Record
	err := workflow.ExecuteActivity(persistCtx, "PersistQuote", r).Get(ctx, &saved)
	if err == nil {
		appendAudit("PERSISTED", "quote stored", map[string]any{"id": saved.ID})
		return quotes.SinkDisk, nil
	}
	appendAudit("ERROR", "PersistQuote failed", map[string]any{"error": err.Error()})
	logger.Error("quote not persisted, trying email", "error", err)

	mailCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    10,
		},
	})
	if err := workflow.ExecuteActivity(mailCtx, "EmailQuote", r).Get(ctx, nil); err != nil {
		appendAudit("ERROR", "EmailQuote failed", map[string]any{"error": err.Error()})
		return "", err
	}
	appendAudit("EMAILED", "quote sent by email", nil)
	return quotes.SinkEmail, nil
}
