package ports

import "context"

// Notifier delivers one-time codes to a linked chat.
type Notifier interface {
	SendCode(ctx context.Context, chatID, code string) error
}

// CaptchaVerifier validates a bot-check token with an external provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}
