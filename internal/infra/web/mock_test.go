//go:build !integration

// File: internal/infra/web/mock_test.go
package web

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/usecase"
)

type mockGenUC struct {
	GenerateFunc func(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error)
	calls        int
}

func (m *mockGenUC) Generate(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error) {
	m.calls++
	return m.GenerateFunc(ctx, userID, image, filename, contentType, prompt)
}

type mockProjectUC struct {
	ListFunc   func(ctx context.Context, userID string) ([]*model.Project, error)
	DeleteFunc func(ctx context.Context, userID, projectID string) error
	deletes    int
}

func (m *mockProjectUC) List(ctx context.Context, userID string) ([]*model.Project, error) {
	return m.ListFunc(ctx, userID)
}

func (m *mockProjectUC) Delete(ctx context.Context, userID, projectID string) error {
	m.deletes++
	return m.DeleteFunc(ctx, userID, projectID)
}

type mockBillingUC struct {
	HandleWebhookFunc  func(ctx context.Context, payload []byte, sigHeader string) (string, error)
	CreateCheckoutFunc func(ctx context.Context, userID, email, priceID string) (string, error)
	CreatePortalFunc   func(ctx context.Context, userID string) (string, error)
	SnapshotFunc       func(ctx context.Context, userID string) (*model.Subscription, error)
}

func (m *mockBillingUC) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (string, error) {
	return m.HandleWebhookFunc(ctx, payload, sigHeader)
}

func (m *mockBillingUC) CreateCheckout(ctx context.Context, userID, email, priceID string) (string, error) {
	return m.CreateCheckoutFunc(ctx, userID, email, priceID)
}

func (m *mockBillingUC) CreatePortal(ctx context.Context, userID string) (string, error) {
	return m.CreatePortalFunc(ctx, userID)
}

func (m *mockBillingUC) Snapshot(ctx context.Context, userID string) (*model.Subscription, error) {
	return m.SnapshotFunc(ctx, userID)
}

// mockVerifier accepts the literal token "good" and rejects everything else.
type mockVerifier struct{}

func (mockVerifier) Verify(token string) (*adapter.Identity, error) {
	if token == "good" {
		return &adapter.Identity{UserID: "user-1", Email: "u@test"}, nil
	}
	return nil, domain.ErrUnauthenticated
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
