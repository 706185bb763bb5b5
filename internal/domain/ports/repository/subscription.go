package repository

import (
	"context"
	"time"

	"ai-image-studio/internal/domain/model"
)

// SubscriptionRepository is the port for the per-user quota ledger.
//
// Rows are keyed by the processor subscription id; Upsert never touches the
// locally owned quota_used counter on conflict, so replayed billing events
// are harmless.
type SubscriptionRepository interface {
	// FindActiveByUser returns the user's ledger row only when its status is
	// active. ErrNotFound otherwise.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// FindByUser returns the user's ledger row regardless of status. The
	// billing portal needs the processor customer id even for lapsed users.
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// FindByProcessorCustomer correlates asynchronous processor events that
	// carry only a customer id.
	FindByProcessorCustomer(ctx context.Context, tx Tx, customerID string) (*model.Subscription, error)
	// UpsertFromBillingEvent writes the processor-authoritative fields (plan,
	// status, period, limit). Inserts start with quota_used = 0; conflicts
	// leave quota_used alone.
	UpsertFromBillingEvent(ctx context.Context, tx Tx, sub *model.Subscription) error
	// MarkCanceled sets status = canceled; the row is kept for history.
	// Unknown ids are a no-op so replayed events stay harmless.
	MarkCanceled(ctx context.Context, tx Tx, subscriptionID string) error
	// ResetQuota sets quota_used = 0 on the given subscription. Unknown ids
	// are a no-op.
	ResetQuota(ctx context.Context, tx Tx, subscriptionID string) error
	// IncrementUsage adds one to quota_used on the user's active row.
	// ErrNotFound when the user has no active row.
	IncrementUsage(ctx context.Context, tx Tx, userID string) error
	// MarkPastDue downgrades active rows whose period end predates cutoff.
	// Returns the number of rows downgraded.
	MarkPastDue(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
