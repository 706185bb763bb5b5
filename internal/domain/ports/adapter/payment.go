package adapter

import (
	"context"
	"time"
)

// BillingEvent is a verified processor webhook event. Object carries the raw
// event payload; the gateway knows how to parse it into the typed views
// below, so the reconciler never touches processor JSON directly.
type BillingEvent struct {
	ID     string
	Type   string
	Object []byte // raw `data.object` JSON
}

// CheckoutInfo is the slice of a completed checkout session the reconciler
// needs: which processor subscription was created and for whom.
type CheckoutInfo struct {
	SubscriptionID string
	CustomerID     string
	UserID         string // client reference carried through checkout metadata
}

// GatewaySubscription is the processor-authoritative view of a subscription.
type GatewaySubscription struct {
	ID          string
	CustomerID  string
	Status      string
	PriceID     string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// InvoiceInfo identifies a paid invoice and why it was issued.
type InvoiceInfo struct {
	SubscriptionID string
	BillingReason  string // e.g. subscription_cycle, subscription_create
}

// CheckoutParams describes an outbound checkout session request.
type CheckoutParams struct {
	UserID     string
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// PaymentGateway is the hex port for the subscription payment processor.
type PaymentGateway interface {
	Name() string

	// VerifyWebhook authenticates a raw webhook delivery against its
	// signature header and returns the parsed event.
	// ErrInvalidSignature when authentication fails.
	VerifyWebhook(payload []byte, sigHeader string) (*BillingEvent, error)

	// ParseCheckoutSession extracts checkout correlation ids from a raw
	// checkout.session object.
	ParseCheckoutSession(object []byte) (*CheckoutInfo, error)
	// ParseSubscription extracts the authoritative subscription state from a
	// raw subscription object.
	ParseSubscription(object []byte) (*GatewaySubscription, error)
	// ParseInvoice extracts invoice correlation from a raw invoice object.
	ParseInvoice(object []byte) (*InvoiceInfo, error)

	// RetrieveSubscription fetches current subscription state from the
	// processor API.
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
	// CreateCheckoutSession starts a hosted checkout and returns its URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	// CreatePortalSession returns a hosted billing-portal URL for the given
	// processor customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
