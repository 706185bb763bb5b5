//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/usecase"
)

func newTestServer(gen *mockGenUC, projects *mockProjectUC, billing *mockBillingUC) *Server {
	return NewServer(gen, projects, billing, mockVerifier{}, ServerConfig{
		Port:           0,
		MaxUploadBytes: 1 << 20,
		ModelID:        "owner/model",
	}, newTestLogger())
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, prompt string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "photo.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("jpeg-bytes"))
	_ = mw.WriteField("prompt", prompt)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestGenerateHandler(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		gen := &mockGenUC{
			GenerateFunc: func(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error) {
				if userID != "user-1" {
					t.Errorf("userID = %q", userID)
				}
				if string(image) != "jpeg-bytes" || filename != "photo.jpg" {
					t.Errorf("image=%q filename=%q", image, filename)
				}
				if prompt != "make it watercolor" {
					t.Errorf("prompt = %q", prompt)
				}
				return &usecase.GenerationResult{
					ProjectID:      "p1",
					InputImageURL:  "https://cdn.test/in.jpg",
					OutputImageURL: "https://cdn.test/out.png",
				}, nil
			},
		}
		s := newTestServer(gen, &mockProjectUC{}, &mockBillingUC{})

		body, contentType := multipartBody(t, "make it watercolor")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer good")

		rec := doRequest(s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
		var resp map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["project_id"] != "p1" || resp["output_image_url"] != "https://cdn.test/out.png" {
			t.Errorf("resp = %v", resp)
		}
	})

	t.Run("no credential", func(t *testing.T) {
		gen := &mockGenUC{GenerateFunc: func(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error) {
			return nil, nil
		}}
		s := newTestServer(gen, &mockProjectUC{}, &mockBillingUC{})

		body, contentType := multipartBody(t, "x")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", body)
		req.Header.Set("Content-Type", contentType)

		rec := doRequest(s, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if gen.calls != 0 {
			t.Error("usecase reached without credential")
		}
	})

	t.Run("quota exceeded carries upgrade hint", func(t *testing.T) {
		gen := &mockGenUC{GenerateFunc: func(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error) {
			return nil, domain.ErrQuotaExceeded
		}}
		s := newTestServer(gen, &mockProjectUC{}, &mockBillingUC{})

		body, contentType := multipartBody(t, "x")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer good")

		rec := doRequest(s, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"upgrade_required":true`) {
			t.Errorf("body = %s", rec.Body)
		}
	})

	t.Run("missing image field", func(t *testing.T) {
		gen := &mockGenUC{GenerateFunc: func(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*usecase.GenerationResult, error) {
			return nil, nil
		}}
		s := newTestServer(gen, &mockProjectUC{}, &mockBillingUC{})

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("prompt", "x")
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer good")

		rec := doRequest(s, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestProjectHandlers(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		in, out := "https://cdn.test/in.jpg", "https://cdn.test/out.png"
		projects := &mockProjectUC{
			ListFunc: func(ctx context.Context, userID string) ([]*model.Project, error) {
				return []*model.Project{{
					ID: "p1", UserID: userID, InputImageURL: &in,
					OutputImageURL: &out, Prompt: "x",
					Status: model.ProjectStatusCompleted, CreatedAt: time.Now(),
				}}, nil
			},
		}
		s := newTestServer(&mockGenUC{}, projects, &mockBillingUC{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"id":"p1"`) {
			t.Errorf("body = %s", rec.Body)
		}
	})

	t.Run("delete without credential", func(t *testing.T) {
		projects := &mockProjectUC{DeleteFunc: func(ctx context.Context, userID, projectID string) error { return nil }}
		s := newTestServer(&mockGenUC{}, projects, &mockBillingUC{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/projects", strings.NewReader(`{"project_id":"p1"}`))
		rec := doRequest(s, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if projects.deletes != 0 {
			t.Error("delete reached usecase without credential")
		}
	})

	t.Run("delete foreign project", func(t *testing.T) {
		projects := &mockProjectUC{DeleteFunc: func(ctx context.Context, userID, projectID string) error {
			return domain.ErrNotOwner
		}}
		s := newTestServer(&mockGenUC{}, projects, &mockBillingUC{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/projects", strings.NewReader(`{"project_id":"p1"}`))
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("delete ok", func(t *testing.T) {
		projects := &mockProjectUC{DeleteFunc: func(ctx context.Context, userID, projectID string) error {
			if projectID != "p1" || userID != "user-1" {
				t.Errorf("delete(%q, %q)", userID, projectID)
			}
			return nil
		}}
		s := newTestServer(&mockGenUC{}, projects, &mockBillingUC{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/projects", strings.NewReader(`{"project_id":"p1"}`))
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
	})
}

func TestBillingHandlers(t *testing.T) {
	t.Run("subscription snapshot", func(t *testing.T) {
		billing := &mockBillingUC{
			SnapshotFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
				return &model.Subscription{
					UserID: userID, PriceID: "price_pro",
					Status: model.SubscriptionStatusActive,
					QuotaLimit: 200, QuotaUsed: 40,
					PeriodEnd: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				}, nil
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["quota_remaining"] != float64(160) {
			t.Errorf("quota_remaining = %v", resp["quota_remaining"])
		}
	})

	t.Run("checkout", func(t *testing.T) {
		billing := &mockBillingUC{
			CreateCheckoutFunc: func(ctx context.Context, userID, email, priceID string) (string, error) {
				if priceID != "price_pro" || email != "u@test" {
					t.Errorf("checkout(%q, %q)", email, priceID)
				}
				return "https://pay.test/cs_1", nil
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", strings.NewReader(`{"price_id":"price_pro"}`))
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "https://pay.test/cs_1") {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
	})

	t.Run("portal without ledger row", func(t *testing.T) {
		billing := &mockBillingUC{
			CreatePortalFunc: func(ctx context.Context, userID string) (string, error) {
				return "", domain.ErrNotFound
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/portal", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := doRequest(s, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestWebhookHandler(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		billing := &mockBillingUC{
			HandleWebhookFunc: func(ctx context.Context, payload []byte, sigHeader string) (string, error) {
				return "", domain.ErrInvalidSignature
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=bad")
		rec := doRequest(s, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("processing failure asks for redelivery", func(t *testing.T) {
		billing := &mockBillingUC{
			HandleWebhookFunc: func(ctx context.Context, payload []byte, sigHeader string) (string, error) {
				return "customer.subscription.updated", errors.New("db down")
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", strings.NewReader(`{}`))
		rec := doRequest(s, req)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("applied", func(t *testing.T) {
		billing := &mockBillingUC{
			HandleWebhookFunc: func(ctx context.Context, payload []byte, sigHeader string) (string, error) {
				if sigHeader != "t=1,v1=sig" {
					t.Errorf("sig header = %q", sigHeader)
				}
				return "invoice.payment_succeeded", nil
			},
		}
		s := newTestServer(&mockGenUC{}, &mockProjectUC{}, billing)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=sig")
		rec := doRequest(s, req)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"received":true`) {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(&mockGenUC{}, &mockProjectUC{}, &mockBillingUC{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
