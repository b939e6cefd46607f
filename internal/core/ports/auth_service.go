package ports

import (
	"context"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to AuthService.Register.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
}

// LoginInput carries the first authentication step.
type LoginInput struct {
	Email        string
	Password     string
	CaptchaToken string
	Client       ClientRequest
}

// VerifyInput carries the second authentication step.
type VerifyInput struct {
	Email            string
	VerificationCode string
	Client           ClientRequest
}

// Session is the result of a completed 2FA check.
type Session struct {
	Token string
	User  *domain.User
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) error
	VerifyCode(ctx context.Context, in VerifyInput) (*Session, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
}

// TokenService issues and parses bearer tokens.
type TokenService interface {
	Issue(userID string) (string, error)
	// Parse returns the subject user id of a valid token.
	Parse(token string) (string, error)
}
