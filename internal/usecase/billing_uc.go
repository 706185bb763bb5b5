package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/domain/ports/repository"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// Processor event types the reconciler acts on.
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventInvoicePaid         = "invoice.payment_succeeded"

	billingReasonCycle = "subscription_cycle"
)

// BillingURLs are the hosted-page redirect targets for outbound sessions.
type BillingURLs struct {
	CheckoutSuccess string
	CheckoutCancel  string
	PortalReturn    string
}

type BillingUseCase interface {
	// HandleWebhook verifies and applies one processor event delivery.
	// Returns the event type for observability; empty when verification
	// failed. Handlers are idempotent, so redelivery is always safe.
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (string, error)
	// CreateCheckout starts a hosted checkout for the given plan price and
	// returns its URL. The user id rides along as session metadata so the
	// completed-checkout event can be correlated back.
	CreateCheckout(ctx context.Context, userID, email, priceID string) (string, error)
	// CreatePortal returns a hosted billing-portal URL for the user.
	// ErrNotFound when the user has never had a ledger row.
	CreatePortal(ctx context.Context, userID string) (string, error)
	// Snapshot returns the user's ledger row regardless of status.
	Snapshot(ctx context.Context, userID string) (*model.Subscription, error)
}

type billingUC struct {
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	catalog *model.Catalog
	txm     repository.TransactionManager
	urls    BillingURLs
	log     *zerolog.Logger
	now     func() time.Time
}

func NewBillingUseCase(
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	catalog *model.Catalog,
	txm repository.TransactionManager,
	urls BillingURLs,
	logger *zerolog.Logger,
) *billingUC {
	l := logger.With().Str("component", "billing_uc").Logger()
	return &billingUC{
		subs:    subs,
		gateway: gateway,
		catalog: catalog,
		txm:     txm,
		urls:    urls,
		log:     &l,
		now:     time.Now,
	}
}

func (b *billingUC) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (string, error) {
	event, err := b.gateway.VerifyWebhook(payload, sigHeader)
	if err != nil {
		b.log.Warn().Err(err).Msg("webhook signature rejected")
		return "", err
	}

	log := b.log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	switch event.Type {
	case eventCheckoutCompleted:
		err = b.onCheckoutCompleted(ctx, &log, event)
	case eventSubscriptionCreated:
		err = b.onSubscriptionChanged(ctx, &log, event, false)
	case eventSubscriptionUpdated:
		err = b.onSubscriptionChanged(ctx, &log, event, true)
	case eventSubscriptionDeleted:
		err = b.onSubscriptionDeleted(ctx, event)
	case eventInvoicePaid:
		err = b.onInvoicePaid(ctx, &log, event)
	default:
		log.Debug().Msg("ignoring unhandled event type")
	}
	if err != nil {
		log.Error().Err(err).Msg("event processing failed")
		return event.Type, err
	}
	return event.Type, nil
}

// onCheckoutCompleted anchors a fresh purchase: the session metadata carries
// the user id, and the processor API has the authoritative subscription
// state. Usage starts at zero for the new cycle.
func (b *billingUC) onCheckoutCompleted(ctx context.Context, log *zerolog.Logger, event *adapter.BillingEvent) error {
	info, err := b.gateway.ParseCheckoutSession(event.Object)
	if err != nil {
		return err
	}
	if info.SubscriptionID == "" {
		log.Warn().Msg("checkout session without subscription, skipping")
		return nil
	}
	if info.UserID == "" {
		log.Warn().Str("subscription_id", info.SubscriptionID).
			Msg("checkout session without user reference, skipping")
		return nil
	}

	gwSub, err := b.gateway.RetrieveSubscription(ctx, info.SubscriptionID)
	if err != nil {
		return fmt.Errorf("retrieve subscription %s: %w", info.SubscriptionID, err)
	}

	row := b.ledgerRow(info.UserID, gwSub)
	return b.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := b.subs.UpsertFromBillingEvent(ctx, tx, row); err != nil {
			return err
		}
		return b.subs.ResetQuota(ctx, tx, row.SubscriptionID)
	})
}

// onSubscriptionChanged applies created/updated events. Both carry only the
// processor customer id, so the user is resolved from the ledger; a customer
// we have never seen means the checkout event has not landed yet, and the
// update is deferred to the retrieval that event performs.
func (b *billingUC) onSubscriptionChanged(ctx context.Context, log *zerolog.Logger, event *adapter.BillingEvent, maybeRenewal bool) error {
	gwSub, err := b.gateway.ParseSubscription(event.Object)
	if err != nil {
		return err
	}

	existing, err := b.subs.FindByProcessorCustomer(ctx, repository.NoTX, gwSub.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("customer_id", gwSub.CustomerID).
				Msg("unknown customer, deferring to checkout event")
			return nil
		}
		return err
	}

	row := b.ledgerRow(existing.UserID, gwSub)
	return b.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := b.subs.UpsertFromBillingEvent(ctx, tx, row); err != nil {
			return err
		}
		// A period start that has already elapsed means a new cycle began.
		if maybeRenewal && !gwSub.PeriodStart.IsZero() && !gwSub.PeriodStart.After(b.now()) {
			return b.subs.ResetQuota(ctx, tx, row.SubscriptionID)
		}
		return nil
	})
}

func (b *billingUC) onSubscriptionDeleted(ctx context.Context, event *adapter.BillingEvent) error {
	gwSub, err := b.gateway.ParseSubscription(event.Object)
	if err != nil {
		return err
	}
	return b.subs.MarkCanceled(ctx, repository.NoTX, gwSub.ID)
}

func (b *billingUC) onInvoicePaid(ctx context.Context, log *zerolog.Logger, event *adapter.BillingEvent) error {
	inv, err := b.gateway.ParseInvoice(event.Object)
	if err != nil {
		return err
	}
	if inv.BillingReason != billingReasonCycle || inv.SubscriptionID == "" {
		log.Debug().Str("billing_reason", inv.BillingReason).Msg("invoice is not a cycle renewal")
		return nil
	}
	return b.subs.ResetQuota(ctx, repository.NoTX, inv.SubscriptionID)
}

func (b *billingUC) CreateCheckout(ctx context.Context, userID, email, priceID string) (string, error) {
	if priceID == "" || !b.catalog.Contains(priceID) {
		return "", fmt.Errorf("%w: unknown price id %q", domain.ErrInvalidArgument, priceID)
	}
	return b.gateway.CreateCheckoutSession(ctx, adapter.CheckoutParams{
		UserID:     userID,
		Email:      email,
		PriceID:    priceID,
		SuccessURL: b.urls.CheckoutSuccess,
		CancelURL:  b.urls.CheckoutCancel,
	})
}

func (b *billingUC) CreatePortal(ctx context.Context, userID string) (string, error) {
	sub, err := b.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return "", err
	}
	return b.gateway.CreatePortalSession(ctx, sub.CustomerID, b.urls.PortalReturn)
}

func (b *billingUC) Snapshot(ctx context.Context, userID string) (*model.Subscription, error) {
	return b.subs.FindByUser(ctx, repository.NoTX, userID)
}

// ledgerRow maps processor-authoritative state onto a ledger row. quota_used
// is never written through this path.
func (b *billingUC) ledgerRow(userID string, g *adapter.GatewaySubscription) *model.Subscription {
	plan := b.catalog.ByPrice(g.PriceID)
	return &model.Subscription{
		UserID:         userID,
		CustomerID:     g.CustomerID,
		SubscriptionID: g.ID,
		PriceID:        g.PriceID,
		Status:         normalizeStatus(g.Status),
		PeriodStart:    g.PeriodStart,
		PeriodEnd:      g.PeriodEnd,
		QuotaLimit:     plan.Quota,
	}
}

func (b *billingUC) inTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if b.txm == nil {
		return fn(ctx, repository.NoTX)
	}
	return b.txm.WithTx(ctx, pgx.TxOptions{}, fn)
}

func normalizeStatus(s string) model.SubscriptionStatus {
	switch model.SubscriptionStatus(s) {
	case model.SubscriptionStatusActive, model.SubscriptionStatusPastDue, model.SubscriptionStatusCanceled:
		return model.SubscriptionStatus(s)
	case "trialing":
		return model.SubscriptionStatusActive
	default:
		return model.SubscriptionStatusIncomplete
	}
}
