package workflows

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"grene-storefront/internal/activities"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/quotes"
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ReconcilePayment)
	env.RegisterWorkflow(DeliverQuote)
	env.RegisterActivity(&activities.Activities{})
	t.Cleanup(func() { env.AssertExpectations(t) })
	return env
}

func TestReconcilePayment_SignalTriggersQuery(t *testing.T) {
	env := newEnv(t)
	ref := modal.PaymentRef{CommerceOrder: "501", Token: "tok-123456789"}
	paid := modal.StatusUpdate{CommerceOrder: "501", FlowOrder: 9, Token: ref.Token, Status: modal.PaymentPaid}

	env.OnActivity("GetPaymentStatus", mock.Anything, ref.Token).Return(paid, nil).Once()
	env.OnActivity("ApplyPaymentStatus", mock.Anything, paid).Return(modal.PaymentPaid, nil).Once()

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(PaymentConfirmedSignal, modal.PaymentSignal{Token: ref.Token, FlowOrder: 9, Code: 2})
	}, 30*time.Second)

	env.ExecuteWorkflow(ReconcilePayment, ref)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, ResultSettled, result)

	v, err := env.QueryWorkflow("payment")
	require.NoError(t, err)
	var pc modal.PaymentCase
	require.NoError(t, v.Get(&pc))
	assert.Equal(t, modal.PaymentPaid, pc.Status)
	assert.Equal(t, int64(9), pc.FlowOrder)
	assert.Equal(t, 1, pc.AttemptCount)

	v, err = env.QueryWorkflow("audit_log")
	require.NoError(t, err)
	var audit []modal.AuditEvent
	require.NoError(t, v.Get(&audit))
	kinds := make([]string, 0, len(audit))
	for _, e := range audit {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"STARTED", "CONFIRMATION", "STATUS", "DONE"}, kinds)
}

func TestReconcilePayment_PollsUntilTerminal(t *testing.T) {
	env := newEnv(t)
	ref := modal.PaymentRef{CommerceOrder: "502", Token: "tok"}
	pending := modal.StatusUpdate{CommerceOrder: "502", Token: "tok", Status: modal.PaymentPending}
	rejected := modal.StatusUpdate{CommerceOrder: "502", Token: "tok", Status: modal.PaymentRejected}

	env.OnActivity("GetPaymentStatus", mock.Anything, "tok").Return(pending, nil).Once()
	env.OnActivity("GetPaymentStatus", mock.Anything, "tok").Return(rejected, nil).Once()
	env.OnActivity("ApplyPaymentStatus", mock.Anything, pending).Return(modal.PaymentPending, nil).Once()
	env.OnActivity("ApplyPaymentStatus", mock.Anything, rejected).Return(modal.PaymentRejected, nil).Once()

	env.ExecuteWorkflow(ReconcilePayment, ref)
	require.NoError(t, env.GetWorkflowError())
	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, ResultSettled, result)
}

func TestReconcilePayment_GivesUp(t *testing.T) {
	env := newEnv(t)
	ref := modal.PaymentRef{CommerceOrder: "503", Token: "tok"}
	pending := modal.StatusUpdate{CommerceOrder: "503", Token: "tok", Status: modal.PaymentPending}

	env.OnActivity("GetPaymentStatus", mock.Anything, "tok").Return(pending, nil).Times(MaxStatusPolls)
	env.OnActivity("ApplyPaymentStatus", mock.Anything, pending).Return(modal.PaymentPending, nil).Times(MaxStatusPolls)

	env.ExecuteWorkflow(ReconcilePayment, ref)
	require.NoError(t, env.GetWorkflowError())
	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, ResultTimeout, result)
}

func quoteRecord(t *testing.T) quotes.Record {
	r, err := quotes.NewRecord(map[string]any{"email": "ana@example.cl", "nombre": "Ana"})
	require.NoError(t, err)
	r.CreatedAt = "2026-01-02T03:04:05.000Z"
	return r
}

func TestDeliverQuote_Persisted(t *testing.T) {
	env := newEnv(t)
	r := quoteRecord(t)
	saved := r
	saved.ID = 1700000000000

	env.OnActivity("PersistQuote", mock.Anything, mock.Anything).Return(saved, nil).Once()

	env.ExecuteWorkflow(DeliverQuote, r)
	require.NoError(t, env.GetWorkflowError())
	var sink quotes.Sink
	require.NoError(t, env.GetWorkflowResult(&sink))
	assert.Equal(t, quotes.SinkDisk, sink)
}

func TestDeliverQuote_FallsBackToEmail(t *testing.T) {
	env := newEnv(t)
	r := quoteRecord(t)

	diskFull := temporal.NewNonRetryableApplicationError("disk full", "IO", errors.New("ENOSPC"))
	env.OnActivity("PersistQuote", mock.Anything, mock.Anything).Return(quotes.Record{}, diskFull).Once()
	env.OnActivity("EmailQuote", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(DeliverQuote, r)
	require.NoError(t, env.GetWorkflowError())
	var sink quotes.Sink
	require.NoError(t, env.GetWorkflowResult(&sink))
	assert.Equal(t, quotes.SinkEmail, sink)
}

func TestDeliverQuote_BothFail(t *testing.T) {
	env := newEnv(t)
	r := quoteRecord(t)

	env.OnActivity("PersistQuote", mock.Anything, mock.Anything).
		Return(quotes.Record{}, temporal.NewNonRetryableApplicationError("disk", "IO", nil)).Once()
	env.OnActivity("EmailQuote", mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("smtp", "CONFIG", quotes.ErrMailNotConfigured)).Once()

	env.ExecuteWorkflow(DeliverQuote, r)
	assert.Error(t, env.GetWorkflowError())
}

func TestReconcileOptions(t *testing.T) {
	opts := ReconcileOptions("503")
	assert.Equal(t, "reconcile-503", opts.ID)
	assert.Equal(t, TaskQueue, opts.TaskQueue)
	// activity retries may outlast any fixed multiple of PollInterval
	assert.Zero(t, opts.WorkflowRunTimeout)
	assert.Zero(t, opts.WorkflowExecutionTimeout)
}
