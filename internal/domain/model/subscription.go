package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// Subscription is the quota ledger row for one user: which plan they bought,
// how much of the current cycle's quota they burned, and the correlation ids
// needed to match asynchronous processor events back to the user.
//
// The processor is authoritative for plan, status and period; quota_used is
// the only locally owned counter.
type Subscription struct {
	UserID         string // external identity reference; one active row per user
	CustomerID     string // processor customer id
	SubscriptionID string // processor subscription id; upsert key
	PriceID        string // processor price id identifying the purchased tier
	Status         SubscriptionStatus
	PeriodStart    time.Time
	PeriodEnd      time.Time
	QuotaLimit     int
	QuotaUsed      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// QuotaRemaining never reports negative even if an authoritative billing
// event shrank the limit below current usage.
func (s *Subscription) QuotaRemaining() int {
	if rem := s.QuotaLimit - s.QuotaUsed; rem > 0 {
		return rem
	}
	return 0
}

// QuotaExhausted is the orchestrator-side gate; the ledger itself accepts any
// counter state the reconciler writes.
func (s *Subscription) QuotaExhausted() bool {
	return s.QuotaUsed >= s.QuotaLimit
}
