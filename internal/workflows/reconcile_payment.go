package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
)

const TaskQueue = "GRENE_STOREFRONT_TASK_QUEUE"
const PaymentConfirmedSignal = "PAYMENT_CONFIRMED"

const (
	PollInterval   = 2 * time.Minute
	MaxStatusPolls = 30
)

// ReconcileResult values.
const (
	ResultSettled = "SETTLED"
	ResultTimeout = "GAVE_UP_PENDING"
)

type workflowState struct {
	Payment modal.PaymentCase  `json:"payment"`
	Audit   []modal.AuditEvent `json:"audit,omitempty"`
}

// ReconcilePayment follows one Flow payment until the gateway reports a
// terminal status, applying every status it reads to the order ledger. A
// confirmation signal only triggers an early status query; its content is
// never trusted on its own.
func ReconcilePayment(ctx workflow.Context, ref modal.PaymentRef) (string, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("workflow started", "commerceOrder", ref.CommerceOrder)

	state := &workflowState{
		Payment: modal.PaymentCase{
			CommerceOrder: ref.CommerceOrder,
			Token:         ref.Token,
			Status:        modal.PaymentPending,
			UpdatedAt:     workflow.Now(ctx),
		},
		Audit: make([]modal.AuditEvent, 0),
	}

	appendAudit := func(kind, message string, data map[string]any) {
		state.Audit = append(state.Audit, modal.AuditEvent{
			At:      workflow.Now(ctx),
			Kind:    kind,
			Message: message,
			Data:    data,
		})
	}

	_ = workflow.SetQueryHandler(ctx, "payment", func() (modal.PaymentCase, error) {
		return state.Payment, nil
	})
	_ = workflow.SetQueryHandler(ctx, "audit_log", func() ([]modal.AuditEvent, error) {
		return state.Audit, nil
	})

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	appendAudit("STARTED", "waiting for gateway confirmation", map[string]any{"token": flow.Obfuscate(ref.Token)})

	sigCh := workflow.GetSignalChannel(ctx, PaymentConfirmedSignal)

	for attempt := 1; attempt <= MaxStatusPolls; attempt++ {
		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(sigCh, func(c workflow.ReceiveChannel, more bool) {
			var sig modal.PaymentSignal
			c.Receive(ctx, &sig)
			appendAudit("CONFIRMATION", "gateway confirmation received", map[string]any{
				"flowOrder": sig.FlowOrder,
				"code":      sig.Code,
			})
		})
		selector.AddFuture(workflow.NewTimer(timerCtx, PollInterval), func(workflow.Future) {})
		selector.Select(ctx) // yields until signal or timer
		cancelTimer()

		var update modal.StatusUpdate
		if err := workflow.ExecuteActivity(ctx, "GetPaymentStatus", ref.Token).Get(ctx, &update); err != nil {
			appendAudit("ERROR", "GetPaymentStatus failed", map[string]any{"attempt": attempt, "error": err.Error()})
			continue
		}
		if update.CommerceOrder == "" {
			update.CommerceOrder = ref.CommerceOrder
		}

		var stored modal.PaymentStatus
		if err := workflow.ExecuteActivity(ctx, "ApplyPaymentStatus", update).Get(ctx, &stored); err != nil {
			appendAudit("ERROR", "ApplyPaymentStatus failed", map[string]any{"attempt": attempt, "error": err.Error()})
			continue
		}

		state.Payment.Status = stored
		state.Payment.FlowOrder = update.FlowOrder
		state.Payment.AttemptCount = attempt
		state.Payment.UpdatedAt = workflow.Now(ctx)
		appendAudit("STATUS", "gateway status applied", map[string]any{
			"attempt":  attempt,
			"received": update.Status,
			"stored":   stored,
		})

		if stored.Terminal() {
			appendAudit("DONE", "payment settled", map[string]any{"status": stored})
			logger.Info("payment settled", "commerceOrder", ref.CommerceOrder, "status", stored)
			return ResultSettled, nil
		}
	}

	appendAudit("DONE", "payment still pending after polling", map[string]any{"attempts": MaxStatusPolls})
	return ResultTimeout, nil
}
