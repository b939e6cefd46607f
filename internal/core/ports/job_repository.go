package ports

import (
	"context"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

// JobRepository persists job applications. Owner-scoped calls return
// domain.ErrJobNotFound when the job does not exist or belongs to someone else.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)
	FindAll(ctx context.Context) ([]domain.Job, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Job, error)
	FindOwned(ctx context.Context, id, ownerID string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	DeleteOwned(ctx context.Context, id, ownerID string) error
}
