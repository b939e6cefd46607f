package ports

import (
	"context"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

type JobService interface {
	Create(ctx context.Context, ownerID string, job domain.Job) (*domain.Job, error)
	ListAll(ctx context.Context) ([]domain.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error)
	Update(ctx context.Context, ownerID, jobID string, patch domain.JobPatch) (*domain.Job, error)
	Delete(ctx context.Context, ownerID, jobID string) error
}
