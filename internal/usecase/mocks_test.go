//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/domain/ports/repository"
)

// memSubscriptionRepo is a small in-memory ledger used by unit tests.
type memSubscriptionRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscription // by SubscriptionID
	saveErr error                          // simulates write failures
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) seed(sub *model.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.store[sub.SubscriptionID] = &cp
}

func (m *memSubscriptionRepo) get(subscriptionID string) *model.Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.store[subscriptionID]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (m *memSubscriptionRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

func (m *memSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByProcessorCustomer(ctx context.Context, tx repository.Tx, customerID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.CustomerID == customerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) UpsertFromBillingEvent(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	if existing, ok := m.store[sub.SubscriptionID]; ok {
		cp.QuotaUsed = existing.QuotaUsed
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.QuotaUsed = 0
	}
	m.store[sub.SubscriptionID] = &cp
	return nil
}

func (m *memSubscriptionRepo) MarkCanceled(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[subscriptionID]; ok {
		s.Status = model.SubscriptionStatusCanceled
	}
	return nil
}

func (m *memSubscriptionRepo) ResetQuota(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[subscriptionID]; ok {
		s.QuotaUsed = 0
	}
	return nil
}

func (m *memSubscriptionRepo) IncrementUsage(ctx context.Context, tx repository.Tx, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.QuotaUsed++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memSubscriptionRepo) MarkPastDue(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.PeriodEnd.Before(cutoff) {
			s.Status = model.SubscriptionStatusPastDue
			n++
		}
	}
	return n, nil
}

// memProjectRepo is an in-memory project store used by unit tests.
type memProjectRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Project
	order   []string
	saveErr error
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{store: make(map[string]*model.Project)}
}

func (m *memProjectRepo) all() []*model.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Project, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.store[id]
		out = append(out, &cp)
	}
	return out
}

func (m *memProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if _, ok := m.store[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.store[p.ID] = &cp
	return nil
}

func (m *memProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjectRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Project
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.store[m.order[i]]
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProjectRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// mockGateway lets each test script the payment processor.
type mockGateway struct {
	VerifyWebhookFunc         func(payload []byte, sigHeader string) (*adapter.BillingEvent, error)
	ParseCheckoutSessionFunc  func(object []byte) (*adapter.CheckoutInfo, error)
	ParseSubscriptionFunc     func(object []byte) (*adapter.GatewaySubscription, error)
	ParseInvoiceFunc          func(object []byte) (*adapter.InvoiceInfo, error)
	RetrieveSubscriptionFunc  func(ctx context.Context, subscriptionID string) (*adapter.GatewaySubscription, error)
	CreateCheckoutSessionFunc func(ctx context.Context, params adapter.CheckoutParams) (string, error)
	CreatePortalSessionFunc   func(ctx context.Context, customerID, returnURL string) (string, error)
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) VerifyWebhook(payload []byte, sigHeader string) (*adapter.BillingEvent, error) {
	return m.VerifyWebhookFunc(payload, sigHeader)
}

func (m *mockGateway) ParseCheckoutSession(object []byte) (*adapter.CheckoutInfo, error) {
	return m.ParseCheckoutSessionFunc(object)
}

func (m *mockGateway) ParseSubscription(object []byte) (*adapter.GatewaySubscription, error) {
	return m.ParseSubscriptionFunc(object)
}

func (m *mockGateway) ParseInvoice(object []byte) (*adapter.InvoiceInfo, error) {
	return m.ParseInvoiceFunc(object)
}

func (m *mockGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*adapter.GatewaySubscription, error) {
	return m.RetrieveSubscriptionFunc(ctx, subscriptionID)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, params adapter.CheckoutParams) (string, error) {
	return m.CreateCheckoutSessionFunc(ctx, params)
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return m.CreatePortalSessionFunc(ctx, customerID, returnURL)
}

// mockModel records Run inputs so retry behavior can be asserted.
type mockModel struct {
	mu           sync.Mutex
	RunFunc      func(ctx context.Context, modelID string, input map[string]any) (adapter.ModelOutput, error)
	DownloadFunc func(ctx context.Context, url string) ([]byte, error)
	runInputs    []map[string]any
}

func (m *mockModel) Name() string { return "mock-model" }

func (m *mockModel) Run(ctx context.Context, modelID string, input map[string]any) (adapter.ModelOutput, error) {
	m.mu.Lock()
	m.runInputs = append(m.runInputs, input)
	m.mu.Unlock()
	return m.RunFunc(ctx, modelID, input)
}

func (m *mockModel) Download(ctx context.Context, url string) ([]byte, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, url)
	}
	return []byte("png-bytes"), nil
}

func (m *mockModel) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runInputs)
}

func (m *mockModel) runInput(i int) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runInputs[i]
}

// mockStorage stores objects in memory and mints predictable public URLs.
type mockStorage struct {
	mu      sync.Mutex
	base    string
	objects map[string][]byte
	removed []string
	putErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{base: "https://cdn.test/studio/", objects: make(map[string][]byte)}
}

func (m *mockStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.base + key, nil
}

func (m *mockStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *mockStorage) KeyFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, m.base) {
		return "", fmt.Errorf("%w: foreign url %s", domain.ErrInvalidArgument, url)
	}
	return strings.TrimPrefix(url, m.base), nil
}

func (m *mockStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

func (m *mockStorage) removedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

// mockLimiter scripts the per-user throttle.
type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit, window)
}

func testCatalog() *model.Catalog {
	c, err := model.NewCatalog(
		model.Plan{Name: "basic", PriceID: "price_basic", Quota: 50, PriceUSD: 9},
		model.Plan{Name: "pro", PriceID: "price_pro", Quota: 200, PriceUSD: 29},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
