// Package telegram runs the bot that links Telegram chats to accounts and
// delivers one-time login codes.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/api/metrics"
	"github.com/nexthire/nexthire-api/internal/core/domain"
)

const pollTimeout = 60 // seconds

const (
	msgUsage       = "Send /start your@email.com to link your Telegram to your account."
	msgStartFormat = "Please send: /start your@email.com"
	msgNoUser      = "No user found with that email. Please register first."
	msgTaken       = "This account is already linked to another chat."
	msgLinkFailed  = "Error linking your chat ID. Please try again later."
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ChatLinker is the part of the user store the bot needs.
type ChatLinker interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	LinkChat(ctx context.Context, email, chatID string) (*domain.User, error)
}

// Bot is a long-polling Telegram bot with an explicit Start/Stop lifecycle.
// It implements ports.Notifier.
type Bot struct {
	api    botAPI
	users  ChatLinker
	log    zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to the Bot API with token. Polling starts with Start.
func New(token string, users ChatLinker, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorised")
	return newBot(api, users, log), nil
}

func newBot(api botAPI, users ChatLinker, log zerolog.Logger) *Bot {
	return &Bot{api: api, users: users, log: log}
}

// Start begins polling for updates in a background goroutine.
func (b *Bot) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				b.handleUpdate(ctx, upd)
			}
		}
	}()
}

// Stop ends polling and waits for the current update to finish.
func (b *Bot) Stop() {
	if b.cancel == nil {
		return
	}
	b.api.StopReceivingUpdates()
	b.cancel()
	b.wg.Wait()
}

// SendCode delivers a verification code to chatID.
func (b *Bot) SendCode(_ context.Context, chatID, code string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		metrics.CodesSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("telegram: invalid chat id %q", chatID)
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(id, "Your verification code is: "+code)); err != nil {
		metrics.CodesSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("telegram send: %w", err)
	}
	metrics.CodesSentTotal.WithLabelValues("ok").Inc()
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		b.link(ctx, chatID, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
	case text == "/chatID":
		b.reply(chatID, fmt.Sprintf("Your chat ID is: <b>%d</b>", chatID), true)
	default:
		b.reply(chatID, msgUsage, true)
	}
}

func (b *Bot) link(ctx context.Context, chatID int64, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 || !strings.Contains(fields[0], "@") {
		b.reply(chatID, msgStartFormat, false)
		return
	}
	email := domain.NormalizeEmail(fields[0])
	if email == "" {
		b.reply(chatID, msgStartFormat, false)
		return
	}
	chat := strconv.FormatInt(chatID, 10)

	user, err := b.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		b.reply(chatID, msgNoUser, true)
		return
	case err != nil:
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("chat link lookup failed")
		b.reply(chatID, msgLinkFailed, false)
		return
	case user.ChatID != "" && user.ChatID != chat:
		b.reply(chatID, msgTaken, false)
		return
	}

	if _, err := b.users.LinkChat(ctx, email, chat); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("chat link failed")
		b.reply(chatID, msgLinkFailed, false)
		return
	}

	b.log.Info().Int64("chat_id", chatID).Str("user_id", user.ID).Msg("telegram chat linked")
	b.reply(chatID, fmt.Sprintf("Your chat ID is: <b>%d</b>\nLinked to your account: %s", chatID, html.EscapeString(email)), true)
}

func (b *Bot) reply(chatID int64, text string, htmlMode bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if htmlMode {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram reply failed")
	}
}
