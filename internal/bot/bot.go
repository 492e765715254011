// Package bot wires the booking flow to Telegram.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stiralka/internal/booking"
	"stiralka/internal/db"
	"stiralka/internal/export"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bot is a thin Telegram wrapper around the booking flow.
type Bot struct {
	tg       telegramClient
	flow     *booking.Flow
	db       *db.DB
	admins   map[int64]struct{}
	limiters *userLimiters
	logger   *zerolog.Logger
}

// Limits bounds how fast a single user may talk to the bot.
type Limits struct {
	MessagesPerMinute int
	Burst             int
}

// New creates a bot connected to the real Telegram API.
func New(token string, flow *booking.Flow, database *db.DB, admins []int64, limits Limits, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, flow, database, admins, limits, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, flow *booking.Flow, database *db.DB, admins []int64, limits Limits, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, flow, database, admins, limits, logger)
}

func newBot(tg telegramClient, flow *booking.Flow, database *db.DB, admins []int64, limits Limits, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	adm := make(map[int64]struct{})
	for _, id := range admins {
		adm[id] = struct{}{}
	}
	return &Bot{
		tg:       tg,
		flow:     flow,
		db:       database,
		admins:   adm,
		limiters: newUserLimiters(limits),
		logger:   logger,
	}, nil
}

// Start begins polling updates and handles commands. Blocks until the
// context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("laundry bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	l := zerolog.Ctx(ctx)
	l.Debug().
		Int64("user_id", update.Message.From.ID).
		Str("text", update.Message.Text).
		Msg("handling message")
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.limiters.allow(userID) {
		zerolog.Ctx(ctx).Warn().Int64("user_id", userID).Msg("rate limit exceeded, dropping message")
		return
	}

	text := strings.TrimSpace(msg.Text)

	var (
		replies []booking.Reply
		err     error
	)
	switch {
	case strings.HasPrefix(text, "/start"):
		replies, err = b.flow.Start(ctx, userID)
	case strings.HasPrefix(text, "/set_time"):
		replies, err = b.flow.SetTime(ctx, userID)
	case strings.HasPrefix(text, "/change"):
		replies = b.flow.Change()
	case strings.HasPrefix(text, "/schedule"):
		replies, err = b.flow.WeekSchedule(ctx)
	case strings.HasPrefix(text, "/export") && b.isAdmin(userID):
		b.handleExport(ctx, chatID)
		return
	default:
		replies, err = b.flow.HandleText(ctx, userID, text)
	}

	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("dialog handling failed")
		b.reply(chatID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	b.send(chatID, replies)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	bookings, err := b.db.ListWeek(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("schedule export failed")
		b.reply(chatID, "Не удалось выгрузить расписание.")
		return
	}

	f, err := export.WeekWorkbook(bookings)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("schedule export failed")
		b.reply(chatID, "Не удалось выгрузить расписание.")
		return
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("schedule export failed")
		b.reply(chatID, "Не удалось выгрузить расписание.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "schedule.xlsx",
		Bytes: buf.Bytes(),
	})
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send export failed")
	}
}

func (b *Bot) send(chatID int64, replies []booking.Reply) {
	for _, r := range replies {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		switch {
		case len(r.Choices) > 0:
			buttons := make([]tgbotapi.KeyboardButton, 0, len(r.Choices))
			for _, choice := range r.Choices {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(choice))
			}
			msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(buttons...))
		case r.RemoveChoices:
			msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		}
		if _, err := b.tg.Send(msg); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}
