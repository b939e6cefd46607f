package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

type jobService struct {
	repo ports.JobRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewJobService returns a JobService implementation.
func NewJobService(repo ports.JobRepository, log zerolog.Logger) ports.JobService {
	return &jobService{repo: repo, log: log, now: time.Now}
}

func (s *jobService) Create(ctx context.Context, ownerID string, job domain.Job) (*domain.Job, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job.ID = ""
	job.OwnerID = ownerID
	job.CreatedAt = now
	job.UpdatedAt = now

	created, err := s.repo.Create(ctx, &job)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("job_id", created.ID).Str("owner", ownerID).Msg("job created")
	return created, nil
}

func (s *jobService) ListAll(ctx context.Context) ([]domain.Job, error) {
	return s.repo.FindAll(ctx)
}

// ListByOwner returns domain.ErrJobNotFound when the owner has no jobs.
func (s *jobService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	jobs, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, domain.ErrJobNotFound
	}
	return jobs, nil
}

func (s *jobService) Update(ctx context.Context, ownerID, jobID string, patch domain.JobPatch) (*domain.Job, error) {
	job, err := s.repo.FindOwned(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := job.Apply(patch); err != nil {
		return nil, err
	}
	job.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *jobService) Delete(ctx context.Context, ownerID, jobID string) error {
	return s.repo.DeleteOwned(ctx, jobID, ownerID)
}
