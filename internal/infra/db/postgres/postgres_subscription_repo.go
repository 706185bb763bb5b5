package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `
  user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
  status, current_period_start, current_period_end,
  quota_limit, quota_used, created_at, updated_at`

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
 ORDER BY updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) FindByProcessorCustomer(ctx context.Context, tx repository.Tx, customerID string) (*model.Subscription, error) {
	const q = `
SELECT` + subscriptionColumns + `
  FROM subscriptions
 WHERE stripe_customer_id=$1
 ORDER BY updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, customerID)
}

func (r *subscriptionRepo) UpsertFromBillingEvent(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	// quota_used is locally owned: inserts start at zero, conflicts leave it
	// untouched.
	const q = `
INSERT INTO subscriptions (
  user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
  status, current_period_start, current_period_end,
  quota_limit, quota_used, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,NOW(),NOW())
ON CONFLICT (stripe_subscription_id) DO UPDATE SET
  user_id=EXCLUDED.user_id,
  stripe_customer_id=EXCLUDED.stripe_customer_id,
  stripe_price_id=EXCLUDED.stripe_price_id,
  status=EXCLUDED.status,
  current_period_start=EXCLUDED.current_period_start,
  current_period_end=EXCLUDED.current_period_end,
  quota_limit=EXCLUDED.quota_limit,
  updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.UserID, s.CustomerID, s.SubscriptionID, s.PriceID,
		string(s.Status), s.PeriodStart, s.PeriodEnd, s.QuotaLimit)
	return mapExecErr(err)
}

func (r *subscriptionRepo) MarkCanceled(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	const q = `
UPDATE subscriptions
   SET status='canceled', updated_at=NOW()
 WHERE stripe_subscription_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subscriptionID)
	return mapExecErr(err)
}

func (r *subscriptionRepo) ResetQuota(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	const q = `
UPDATE subscriptions
   SET quota_used=0, updated_at=NOW()
 WHERE stripe_subscription_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subscriptionID)
	return mapExecErr(err)
}

func (r *subscriptionRepo) IncrementUsage(ctx context.Context, tx repository.Tx, userID string) error {
	const q = `
UPDATE subscriptions
   SET quota_used=quota_used+1, updated_at=NOW()
 WHERE user_id=$1 AND status='active' AND quota_used < quota_limit;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) MarkPastDue(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	// Rows without a known period end are left alone; the processor has not
	// told us anything to enforce.
	const q = `
UPDATE subscriptions
   SET status='past_due', updated_at=NOW()
 WHERE status='active'
   AND current_period_end > 'epoch'::timestamptz
   AND current_period_end < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var status string
	if err := row.Scan(
		&s.UserID, &s.CustomerID, &s.SubscriptionID, &s.PriceID,
		&status, &s.PeriodStart, &s.PeriodEnd,
		&s.QuotaLimit, &s.QuotaUsed, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}

func mapExecErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return err
	default:
		return domain.ErrOperationFailed
	}
}
