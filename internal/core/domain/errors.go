package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	ErrCaptchaRequired    = errors.New("captcha is required")
	ErrCaptchaInvalid     = errors.New("invalid captcha")
	ErrChatNotLinked      = errors.New("telegram chat not linked")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access denied")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrJobNotFound        = errors.New("job not found")
	ErrMaliciousInput     = errors.New("insecure input detected")
)

// Rate-limit rejections. Each maps to 429 with its own message.
var (
	ErrTooManyLoginAttempts   = errors.New("too many attempts, please try again later")
	ErrTooManyCodeAttempts    = errors.New("too many validation attempts, please try again later")
	ErrTooManyMaliciousInputs = errors.New("too many malicious input attempts, please try again later")
)
