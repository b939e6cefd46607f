package ports

import (
	"context"
	"time"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// SetVerificationCode writes code and expiry together.
	SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error
	ClearVerificationCode(ctx context.Context, userID string) error
	LinkChat(ctx context.Context, email, chatID string) (*domain.User, error)
}
