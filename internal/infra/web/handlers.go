package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/infra/metrics"
)

const maxWebhookBytes = 1 << 20

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: multipart form: %v", domain.ErrInvalidArgument, err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, s.log, fmt.Errorf("%w: image field is required", domain.ErrInvalidArgument))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, s.log, fmt.Errorf("%w: read image: %v", domain.ErrInvalidArgument, err))
		return
	}
	prompt := r.FormValue("prompt")
	contentType := header.Header.Get("Content-Type")

	start := time.Now()
	res, err := s.genUC.Generate(r.Context(), identity.UserID, data, header.Filename, contentType, prompt)
	latencyMs := time.Since(start).Milliseconds()
	metrics.ObserveGenerationLatency(s.cfg.ModelID, latencyMs, err == nil)

	if err != nil {
		metrics.IncGeneration(generationOutcome(err))
		if errors.Is(err, domain.ErrQuotaExceeded) {
			metrics.IncQuotaDenial()
		}
		writeError(w, s.log, err)
		return
	}
	metrics.IncGeneration("completed")

	writeJSON(w, http.StatusOK, map[string]string{
		"project_id":       res.ProjectID,
		"input_image_url":  res.InputImageURL,
		"output_image_url": res.OutputImageURL,
	})
}

// generationOutcome separates requests this service refused from attempts
// that genuinely ran and failed.
func generationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrNoActiveSubscription),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrRateLimited):
		return "rejected"
	default:
		return "failed"
	}
}

type projectView struct {
	ID             string  `json:"id"`
	InputImageURL  *string `json:"input_image_url"`
	OutputImageURL *string `json:"output_image_url"`
	Prompt         string  `json:"prompt"`
	Status         string  `json:"status"`
	Error          string  `json:"error,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	projects, err := s.projectUC.List(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, toProjectView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": views})
}

func toProjectView(p *model.Project) projectView {
	return projectView{
		ID:             p.ID,
		InputImageURL:  p.InputImageURL,
		OutputImageURL: p.OutputImageURL,
		Prompt:         p.Prompt,
		Status:         string(p.Status),
		Error:          p.ErrorNote,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err))
		return
	}

	if err := s.projectUC.Delete(r.Context(), identity.UserID, req.ProjectID); err != nil {
		writeError(w, s.log, err)
		return
	}
	metrics.IncProjectDeleted()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	sub, err := s.billingUC.Snapshot(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"price_id":           sub.PriceID,
		"status":             string(sub.Status),
		"quota_limit":        sub.QuotaLimit,
		"quota_used":         sub.QuotaUsed,
		"quota_remaining":    sub.QuotaRemaining(),
		"current_period_end": sub.PeriodEnd.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	var req struct {
		PriceID string `json:"price_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err))
		return
	}

	url, err := s.billingUC.CreateCheckout(r.Context(), identity.UserID, identity.Email, req.PriceID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, s.log, domain.ErrUnauthenticated)
		return
	}

	url, err := s.billingUC.CreatePortal(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"portal_url": url})
}

// handleWebhook returns 400 only for deliveries that can never succeed
// (bad signature, bad payload); transient processing failures return 500 so
// the processor redelivers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, s.log, fmt.Errorf("%w: read body: %v", domain.ErrInvalidPayload, err))
		return
	}

	eventType, err := s.billingUC.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if eventType == "" {
		eventType = "unknown"
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrInvalidPayload):
			metrics.IncBillingEvent(eventType, "rejected")
			writeError(w, s.log, err)
		default:
			metrics.IncBillingEvent(eventType, "failed")
			s.log.Error().Err(err).Str("event_type", eventType).Msg("webhook processing failed")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "processing failed"})
		}
		return
	}

	metrics.IncBillingEvent(eventType, "applied")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
