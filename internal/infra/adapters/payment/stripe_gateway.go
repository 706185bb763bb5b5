package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
)

// Ensure StripeGateway implements adapter.PaymentGateway
var _ adapter.PaymentGateway = (*StripeGateway)(nil)

const (
	defaultAPIBase     = "https://api.stripe.com"
	signatureTolerance = 5 * time.Minute
)

// StripeGateway talks to the Stripe REST API directly. Requests are form
// encoded; webhook deliveries are authenticated with the v1 HMAC scheme.
type StripeGateway struct {
	apiKey        string
	webhookSecret string
	apiBase       string
	client        *http.Client
	log           *zerolog.Logger
	now           func() time.Time
}

func NewStripeGateway(apiKey, webhookSecret string, logger *zerolog.Logger) (*StripeGateway, error) {
	if apiKey == "" || webhookSecret == "" {
		return nil, fmt.Errorf("stripe api key and webhook secret are required")
	}
	l := logger.With().Str("component", "stripe_gateway").Logger()
	return &StripeGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		apiBase:       defaultAPIBase,
		client:        &http.Client{Timeout: 10 * time.Second},
		log:           &l,
		now:           time.Now,
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (g *StripeGateway) VerifyWebhook(payload []byte, sigHeader string) (*adapter.BillingEvent, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	if age := g.now().Sub(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	verified := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, domain.ErrInvalidSignature
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, domain.ErrInvalidPayload
	}
	return &adapter.BillingEvent{ID: event.ID, Type: event.Type, Object: event.Data.Object}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		switch strings.TrimSpace(keyValue[0]) {
		case "t":
			timestamp = strings.TrimSpace(keyValue[1])
		case "v1":
			signatures = append(signatures, strings.TrimSpace(keyValue[1]))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, fmt.Errorf("malformed signature header")
	}
	return timestamp, signatures, nil
}

type stripeCheckoutSession struct {
	Subscription      string            `json:"subscription"`
	Customer          string            `json:"customer"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (g *StripeGateway) ParseCheckoutSession(object []byte) (*adapter.CheckoutInfo, error) {
	var s stripeCheckoutSession
	if err := json.Unmarshal(object, &s); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	userID := s.Metadata["user_id"]
	if userID == "" {
		userID = s.ClientReferenceID
	}
	return &adapter.CheckoutInfo{
		SubscriptionID: s.Subscription,
		CustomerID:     s.Customer,
		UserID:         userID,
	}, nil
}

type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (g *StripeGateway) ParseSubscription(object []byte) (*adapter.GatewaySubscription, error) {
	var s stripeSubscription
	if err := json.Unmarshal(object, &s); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(s.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	out := &adapter.GatewaySubscription{
		ID:         s.ID,
		CustomerID: s.Customer,
		Status:     s.Status,
	}
	// Newer API versions carry the period on the subscription item; older
	// payloads still have it on the subscription itself.
	periodStart, periodEnd := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.PriceID = item.Price.ID
		if item.CurrentPeriodStart > 0 {
			periodStart = item.CurrentPeriodStart
		}
		if item.CurrentPeriodEnd > 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodStart > 0 {
		out.PeriodStart = time.Unix(periodStart, 0).UTC()
	}
	if periodEnd > 0 {
		out.PeriodEnd = time.Unix(periodEnd, 0).UTC()
	}
	return out, nil
}

type stripeInvoice struct {
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (g *StripeGateway) ParseInvoice(object []byte) (*adapter.InvoiceInfo, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(object, &inv); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	subID := inv.Subscription
	if subID == "" {
		subID = inv.Parent.SubscriptionDetails.Subscription
	}
	return &adapter.InvoiceInfo{
		SubscriptionID: subID,
		BillingReason:  inv.BillingReason,
	}, nil
}

func (g *StripeGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*adapter.GatewaySubscription, error) {
	endpoint := fmt.Sprintf("%s/v1/subscriptions/%s", g.apiBase, url.PathEscape(subscriptionID))
	body, err := g.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return g.ParseSubscription(body)
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params adapter.CheckoutParams) (string, error) {
	data := url.Values{}
	data.Set("mode", "subscription")
	data.Set("success_url", params.SuccessURL)
	data.Set("cancel_url", params.CancelURL)
	data.Set("line_items[0][price]", params.PriceID)
	data.Set("line_items[0][quantity]", "1")
	// The user id rides through checkout so the completed event can be
	// correlated without a customer lookup.
	data.Set("client_reference_id", params.UserID)
	data.Set("metadata[user_id]", params.UserID)
	data.Set("subscription_data[metadata][user_id]", params.UserID)
	if params.Email != "" {
		data.Set("customer_email", params.Email)
	}

	body, err := g.do(ctx, http.MethodPost, g.apiBase+"/v1/checkout/sessions", data)
	if err != nil {
		return "", err
	}
	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("%w: decode checkout session: %v", domain.ErrUpstream, err)
	}
	if session.URL == "" {
		return "", fmt.Errorf("%w: checkout session without url", domain.ErrUpstream)
	}
	return session.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	data := url.Values{}
	data.Set("customer", customerID)
	data.Set("return_url", returnURL)

	body, err := g.do(ctx, http.MethodPost, g.apiBase+"/v1/billing_portal/sessions", data)
	if err != nil {
		return "", err
	}
	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("%w: decode portal session: %v", domain.ErrUpstream, err)
	}
	return session.URL, nil
}

func (g *StripeGateway) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		g.log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("stripe api error")
		return nil, fmt.Errorf("%w: stripe api status %d: %s", domain.ErrUpstream, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
