package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/domain/ports/repository"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

// Known model failure signatures that warrant a single adjusted retry.
const (
	retrySigInputImage  = "input_image is required"
	retrySigTriggerWord = "trigger word"
)

const maxErrorNoteLen = 500

// RateLimiter throttles per-user request bursts. Implementations are
// best-effort; the orchestrator fails open when the limiter itself errors.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// GenerationResult is what the API hands back for a successful attempt.
type GenerationResult struct {
	ProjectID      string
	InputImageURL  string
	OutputImageURL string
}

type GenerationUseCase interface {
	// Generate runs one image transformation end to end: quota gate, input
	// upload, model run (with one adjusted retry on known failure
	// signatures), output persistence and ledger increment. Every attempt
	// leaves a project row behind; failed attempts do not consume quota.
	Generate(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*GenerationResult, error)
}

type generationUC struct {
	subs     repository.SubscriptionRepository
	projects repository.ProjectRepository
	model    adapter.ImageModelAdapter
	storage  adapter.ObjectStorage
	limiter  RateLimiter // optional
	modelID  string
	rlLimit  int
	rlWindow time.Duration
	log      *zerolog.Logger
}

func NewGenerationUseCase(
	subs repository.SubscriptionRepository,
	projects repository.ProjectRepository,
	imageModel adapter.ImageModelAdapter,
	storage adapter.ObjectStorage,
	limiter RateLimiter,
	modelID string,
	rlLimit int,
	rlWindow time.Duration,
	logger *zerolog.Logger,
) *generationUC {
	l := logger.With().Str("component", "generation_uc").Logger()
	return &generationUC{
		subs:     subs,
		projects: projects,
		model:    imageModel,
		storage:  storage,
		limiter:  limiter,
		modelID:  modelID,
		rlLimit:  rlLimit,
		rlWindow: rlWindow,
		log:      &l,
	}
}

func (g *generationUC) Generate(ctx context.Context, userID string, image []byte, filename, contentType, prompt string) (*GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidArgument)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidArgument)
	}

	if g.limiter != nil && g.rlLimit > 0 {
		ok, err := g.limiter.Allow(ctx, "gen:"+userID, g.rlLimit, g.rlWindow)
		if err != nil {
			g.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	sub, err := g.subs.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.QuotaExhausted() {
		return nil, domain.ErrQuotaExceeded
	}

	inputKey := "input-" + uuid.NewString() + inputExt(filename, contentType)
	inputURL, err := g.storage.Put(ctx, inputKey, image, contentType)
	if err != nil {
		// The attempt still goes into the history, with no input reference.
		err = fmt.Errorf("store input image: %w", err)
		g.recordFailure(ctx, userID, nil, prompt, err)
		return nil, err
	}

	log := g.log.With().Str("user_id", userID).Str("input_key", inputKey).Logger()

	outputURL, err := g.runModel(ctx, &log, inputURL, prompt)
	if err != nil {
		g.recordFailure(ctx, userID, &inputURL, prompt, err)
		return nil, err
	}

	data, err := g.model.Download(ctx, outputURL)
	if err != nil {
		err = fmt.Errorf("download model output: %w", err)
		g.recordFailure(ctx, userID, &inputURL, prompt, err)
		return nil, err
	}

	outputKey := "output-" + uuid.NewString() + ".png"
	storedURL, err := g.storage.Put(ctx, outputKey, data, "image/png")
	if err != nil {
		err = fmt.Errorf("store output image: %w", err)
		g.recordFailure(ctx, userID, &inputURL, prompt, err)
		return nil, err
	}

	// A canceled caller must not be billed for a result it will never see.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	project := model.NewCompletedProject(ulid.Make().String(), userID, inputURL, storedURL, prompt)
	if err := g.projects.Save(ctx, repository.NoTX, project); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	if err := g.subs.IncrementUsage(ctx, repository.NoTX, userID); err != nil {
		// The result is already delivered; losing one increment is preferable
		// to failing the request.
		log.Error().Err(err).Msg("usage increment failed")
	}

	return &GenerationResult{
		ProjectID:      project.ID,
		InputImageURL:  inputURL,
		OutputImageURL: storedURL,
	}, nil
}

// runModel executes the model with the parameter shape the configured model
// expects, retrying once with adjusted parameters when the failure message
// matches a known signature.
func (g *generationUC) runModel(ctx context.Context, log *zerolog.Logger, inputURL, prompt string) (string, error) {
	input := buildModelInput(g.modelID, inputURL, prompt)

	out, err := g.model.Run(ctx, g.modelID, input)
	if err != nil {
		retryInput, ok := retryInputFor(err, inputURL, prompt)
		if !ok {
			return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		log.Warn().Err(err).Msg("model rejected input, retrying with adjusted parameters")
		out, err = g.model.Run(ctx, g.modelID, retryInput)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
	}

	url, err := ResolveOutputURL(out)
	if err != nil {
		return "", err
	}
	return url, nil
}

// recordFailure persists a failed attempt even when the request context is
// already gone; the history must show what happened. inputURL is nil when
// the input image never made it into storage.
func (g *generationUC) recordFailure(ctx context.Context, userID string, inputURL *string, prompt string, cause error) {
	note := cause.Error()
	if len(note) > maxErrorNoteLen {
		note = note[:maxErrorNoteLen]
	}
	p := model.NewFailedProject(ulid.Make().String(), userID, inputURL, prompt, note)
	if err := g.projects.Save(context.WithoutCancel(ctx), repository.NoTX, p); err != nil {
		g.log.Error().Err(err).Str("user_id", userID).Msg("failed to record failed attempt")
	}
}

// buildModelInput picks the parameter shape by model family.
func buildModelInput(modelID, imageURL, prompt string) map[string]any {
	switch {
	case strings.Contains(modelID, "nano-banana"):
		return map[string]any{
			"prompt":      prompt,
			"image_input": []string{imageURL},
		}
	case strings.Contains(modelID, "instruct-pix2pix"):
		return map[string]any{
			"image":                imageURL,
			"prompt":               prompt,
			"num_inference_steps":  10,
			"guidance_scale":       7.5,
			"image_guidance_scale": 1.5,
		}
	default:
		return map[string]any{
			"image":               imageURL,
			"prompt":              prompt,
			"num_inference_steps": 20,
			"guidance_scale":      7.5,
		}
	}
}

// retryInputFor maps a model failure message to the adjusted input for the
// single retry, or ok=false when the failure is not retryable.
func retryInputFor(err error, imageURL, prompt string) (map[string]any, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, retrySigInputImage):
		// Model wants the alternate image field name.
		return map[string]any{
			"input_image":         imageURL,
			"prompt":              prompt,
			"num_inference_steps": 25,
			"guidance_scale":      8.0,
		}, true
	case strings.Contains(msg, retrySigTriggerWord):
		// Fine-tuned models demand their trigger token in the prompt. The
		// image field stays as-is; only the prompt and strength change.
		return map[string]any{
			"image":    imageURL,
			"prompt":   "img " + prompt,
			"strength": 0.7,
		}, true
	default:
		return nil, false
	}
}

func inputExt(filename, contentType string) string {
	if ext := path.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
