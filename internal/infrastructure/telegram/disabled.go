package telegram

import (
	"context"
	"errors"
)

// ErrDisabled is returned when no bot token is configured.
var ErrDisabled = errors.New("telegram notifier disabled: TELEGRAM_BOT_TOKEN not set")

// Disabled is the notifier wired when the bot is not configured.
type Disabled struct{}

func (Disabled) SendCode(context.Context, string, string) error { return ErrDisabled }
