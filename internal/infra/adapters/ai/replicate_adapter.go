package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
)

// Ensure ReplicateAdapter implements adapter.ImageModelAdapter
var _ adapter.ImageModelAdapter = (*ReplicateAdapter)(nil)

const (
	defaultAPIBase  = "https://api.replicate.com"
	maxDownloadSize = 32 << 20 // model outputs are single images
)

// ReplicateAdapter runs hosted models through the predictions API in
// blocking mode (Prefer: wait).
type ReplicateAdapter struct {
	apiToken string
	apiBase  string
	client   *http.Client
	log      *zerolog.Logger
}

func NewReplicateAdapter(apiToken string, logger *zerolog.Logger) (*ReplicateAdapter, error) {
	if apiToken == "" {
		return nil, fmt.Errorf("replicate api token is required")
	}
	l := logger.With().Str("component", "replicate_adapter").Logger()
	return &ReplicateAdapter{
		apiToken: apiToken,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Minute},
		log:      &l,
	}, nil
}

func (a *ReplicateAdapter) Name() string { return "replicate" }

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (a *ReplicateAdapter) Run(ctx context.Context, modelID string, input map[string]any) (adapter.ModelOutput, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return adapter.ModelOutput{}, err
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s/predictions", a.apiBase, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return adapter.ModelOutput{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return adapter.ModelOutput{}, fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return adapter.ModelOutput{}, fmt.Errorf("read prediction response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.Warn().Int("status", resp.StatusCode).Str("model", modelID).Msg("prediction request rejected")
		return adapter.ModelOutput{}, fmt.Errorf("prediction status %d: %s", resp.StatusCode, previewBody(raw))
	}

	var pred predictionResponse
	if err := json.Unmarshal(raw, &pred); err != nil {
		return adapter.ModelOutput{}, fmt.Errorf("decode prediction: %w", err)
	}

	// Model-reported failures keep their original wording; callers match
	// known signatures against it.
	if pred.Error != "" {
		return adapter.ModelOutput{}, fmt.Errorf("model failed: %s", pred.Error)
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		return adapter.ModelOutput{}, fmt.Errorf("prediction %s: status %s", pred.ID, pred.Status)
	}

	out, err := decodeOutput(pred.Output)
	if err != nil {
		return adapter.ModelOutput{}, err
	}

	a.log.Debug().Str("model", modelID).Str("prediction_id", pred.ID).
		Dur("elapsed", time.Since(start)).Msg("prediction completed")
	return out, nil
}

// decodeOutput keeps the JSON shape: string, list or object.
func decodeOutput(raw json.RawMessage) (adapter.ModelOutput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return adapter.ModelOutput{}, fmt.Errorf("%w: prediction without output", domain.ErrUnrecognizedOutput)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return adapter.ModelOutput{}, err
		}
		return adapter.ModelOutput{Text: s}, nil
	case '[':
		var list []any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return adapter.ModelOutput{}, err
		}
		if list == nil {
			list = []any{}
		}
		return adapter.ModelOutput{List: list}, nil
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return adapter.ModelOutput{}, err
		}
		return adapter.ModelOutput{Object: obj}, nil
	default:
		return adapter.ModelOutput{}, fmt.Errorf("%w: scalar output %s", domain.ErrUnrecognizedOutput, previewBody(trimmed))
	}
}

func (a *ReplicateAdapter) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("download read: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download returned empty body")
	}
	return data, nil
}

func previewBody(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
