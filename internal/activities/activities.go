package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"grene-storefront/internal/flow"
	"grene-storefront/internal/modal"
	"grene-storefront/internal/orders"
	"grene-storefront/internal/quotes"
)

// StatusQuerier is the part of the Flow client the activities need.
type StatusQuerier interface {
	GetStatus(ctx context.Context, token string) (*flow.Status, error)
}

// Activities are the side effects of the reconciliation and quote outbox
// workflows. Any nil dependency makes its activities fail permanently.
type Activities struct {
	Flow   StatusQuerier
	Ledger orders.Ledger
	Quotes quotes.Repository
	Mailer quotes.Mailer
}

var errMissingDependency = errors.New("activity dependency not configured")

func nonRetryable(what string, err error) error {
	return temporal.NewNonRetryableApplicationError(what, "CONFIG", err)
}

// GetPaymentStatus asks the gateway for the authoritative status of token.
func (a *Activities) GetPaymentStatus(ctx context.Context, token string) (modal.StatusUpdate, error) {
	if a.Flow == nil {
		return modal.StatusUpdate{}, nonRetryable("flow client", errMissingDependency)
	}
	st, err := a.Flow.GetStatus(ctx, token)
	if err != nil {
		return modal.StatusUpdate{}, err
	}
	activity.GetLogger(ctx).Info("payment status", "commerceOrder", st.CommerceOrder, "status", st.Status)
	return modal.StatusUpdate{
		CommerceOrder: st.CommerceOrder,
		FlowOrder:     st.FlowOrder,
		Token:         token,
		Status:        modal.FromFlowCode(st.Status),
		Amount:        st.Amount,
		Currency:      st.Currency,
		Email:         st.Email,
	}, nil
}

// ApplyPaymentStatus writes u to the ledger and returns the status the
// ledger holds afterwards.
func (a *Activities) ApplyPaymentStatus(ctx context.Context, u modal.StatusUpdate) (modal.PaymentStatus, error) {
	if a.Ledger == nil {
		return "", nonRetryable("order ledger", errMissingDependency)
	}
	o, changed, err := a.Ledger.ApplyStatus(ctx, u)
	if err != nil {
		return "", fmt.Errorf("apply status: %w", err)
	}
	if !changed {
		activity.GetLogger(ctx).Warn("status kept by ledger", "commerceOrder", u.CommerceOrder, "stored", o.Status, "received", u.Status)
	}
	return o.Status, nil
}

func (a *Activities) PersistQuote(ctx context.Context, r quotes.Record) (quotes.Record, error) {
	if a.Quotes == nil {
		return quotes.Record{}, nonRetryable("quote repository", errMissingDependency)
	}
	return a.Quotes.Append(ctx, r)
}

func (a *Activities) EmailQuote(ctx context.Context, r quotes.Record) error {
	if a.Mailer == nil {
		return nonRetryable("mailer", quotes.ErrMailNotConfigured)
	}
	err := a.Mailer.SendQuote(ctx, r)
	if errors.Is(err, quotes.ErrMailNotConfigured) {
		return nonRetryable("mailer", err)
	}
	return err
}
