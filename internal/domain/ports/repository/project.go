package repository

import (
	"context"

	"ai-image-studio/internal/domain/model"
)

// ProjectRepository is the port for the append-only generation record store.
type ProjectRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Project) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Project, error)
	// ListByUser returns the user's projects, newest first.
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Project, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
