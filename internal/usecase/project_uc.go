package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/model"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/domain/ports/repository"
)

// Compile-time check
var _ ProjectUseCase = (*projectUC)(nil)

type ProjectUseCase interface {
	// List returns the caller's generation history, newest first.
	List(ctx context.Context, userID string) ([]*model.Project, error)
	// Delete removes a project row and its stored images. Only the owner may
	// delete; storage failures are logged but do not abort the row deletion.
	Delete(ctx context.Context, userID, projectID string) error
}

type projectUC struct {
	projects repository.ProjectRepository
	storage  adapter.ObjectStorage
	log      *zerolog.Logger
}

func NewProjectUseCase(projects repository.ProjectRepository, storage adapter.ObjectStorage, logger *zerolog.Logger) *projectUC {
	l := logger.With().Str("component", "project_uc").Logger()
	return &projectUC{projects: projects, storage: storage, log: &l}
}

func (p *projectUC) List(ctx context.Context, userID string) ([]*model.Project, error) {
	return p.projects.ListByUser(ctx, repository.NoTX, userID)
}

func (p *projectUC) Delete(ctx context.Context, userID, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidArgument)
	}

	project, err := p.projects.FindByID(ctx, repository.NoTX, projectID)
	if err != nil {
		return err
	}
	if project.UserID != userID {
		return domain.ErrNotOwner
	}

	if project.InputImageURL != nil {
		p.removeObject(ctx, project.ID, *project.InputImageURL)
	}
	if project.OutputImageURL != nil {
		p.removeObject(ctx, project.ID, *project.OutputImageURL)
	}

	return p.projects.Delete(ctx, repository.NoTX, projectID)
}

// removeObject is best effort: an orphaned object costs storage, a failed
// delete request must not.
func (p *projectUC) removeObject(ctx context.Context, projectID, url string) {
	key, err := p.storage.KeyFromURL(url)
	if err != nil {
		p.log.Warn().Err(err).Str("project_id", projectID).Str("url", url).
			Msg("cannot derive object key from url")
		return
	}
	if err := p.storage.Remove(ctx, key); err != nil {
		p.log.Warn().Err(err).Str("project_id", projectID).Str("key", key).
			Msg("object removal failed")
	}
}
