package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

// AuthOptions configures the registration and login policy.
type AuthOptions struct {
	// MasterEmail is promoted to the master role at registration.
	MasterEmail string
	// CaptchaRequired rejects logins that carry no captcha token.
	CaptchaRequired bool
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users    ports.UserRepository
	Hasher   *PasswordHasher
	Tokens   ports.TokenService
	Tracker  *AttemptTracker
	Notifier ports.Notifier
	Captcha  ports.CaptchaVerifier
}

// AuthService runs register → login → code verification.
type AuthService struct {
	users    ports.UserRepository
	hasher   *PasswordHasher
	tokens   ports.TokenService
	tracker  *AttemptTracker
	notifier ports.Notifier
	captcha  ports.CaptchaVerifier
	opts     AuthOptions
	log      zerolog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(deps AuthDeps, opts AuthOptions, log zerolog.Logger) *AuthService {
	hasher := deps.Hasher
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultHashParams)
	}
	return &AuthService{
		users:    deps.Users,
		hasher:   hasher,
		tokens:   deps.Tokens,
		tracker:  deps.Tracker,
		notifier: deps.Notifier,
		captcha:  deps.Captcha,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := domain.NewUser(in.Name, email, hash, in.PhoneNumber, s.opts.MasterEmail, s.now().UTC())
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("role", created.Role).Msg("user registered")
	return created, nil
}

// Login checks the password and, on success, sends a fresh one-time code to
// the user's linked chat. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) error {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	if err := s.tracker.CheckLogin(ctx, in.Client, email); err != nil {
		return err
	}
	if err := s.checkCaptcha(ctx, in.CaptchaToken, in.Client.IP); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	var ok bool
	if user != nil {
		ok = s.hasher.Verify(user.PasswordHash, in.Password)
	} else {
		// Spend the same hashing work as a real check.
		s.hasher.Verify(s.dummy(), in.Password)
	}

	if err := s.tracker.TrackLogin(ctx, in.Client, email, !ok); err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	if err := s.tracker.ResetLogin(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login counter")
	}

	if user.ChatID == "" {
		return domain.ErrChatNotLinked
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationCode(ctx, user.ID, code, CodeExpiry(s.now().UTC())); err != nil {
		return err
	}

	// Delivery failures do not undo the stored code; the user can log in again.
	if err := s.notifier.SendCode(ctx, user.ChatID, code); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to deliver verification code")
	}
	return nil
}

// VerifyCode completes the login and returns a signed token.
func (s *AuthService) VerifyCode(ctx context.Context, in ports.VerifyInput) (*ports.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.VerificationCode == "" {
		return nil, fmt.Errorf("%w: email and verification code are required", domain.ErrInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	ok := user != nil && s.codeValid(user, in.VerificationCode)
	if err := s.tracker.TrackCode(ctx, in.Client, email, !ok); err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCode
	}

	if err := s.users.ClearVerificationCode(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.tracker.ResetCode(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset 2fa counter")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	user.VerificationCode = ""
	user.CodeExpiration = nil
	return &ports.Session{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

// codeValid: exact match and now <= expiration.
func (s *AuthService) codeValid(u *domain.User, code string) bool {
	if !u.HasPendingCode() {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(u.VerificationCode), []byte(code)) != 1 {
		return false
	}
	return !s.now().After(*u.CodeExpiration)
}

func (s *AuthService) checkCaptcha(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		if s.opts.CaptchaRequired {
			return domain.ErrCaptchaRequired
		}
		return nil
	}
	if s.captcha == nil {
		return nil
	}
	ok, err := s.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		return fmt.Errorf("verify captcha: %w", err)
	}
	if !ok {
		return domain.ErrCaptchaInvalid
	}
	return nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("nexthire-timing-equalizer")
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to build dummy hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
