package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/slaffer-au/searchbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramEventBuffer = 64
	telegramPollTimeout = 30
)

// Telegram implements domain.Transport over the Telegram Bot API.
// Private chats map to the DM context; groups map to the public
// context with @mention invocation.
type Telegram struct {
	token   string
	botUser string
	bot     *tgbotapi.BotAPI
	logger  *slog.Logger
	events  chan domain.Message
}

type TelegramConfig struct {
	Token       string
	BotUsername string
	Logger      *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{
		token:   cfg.Token,
		botUser: cfg.BotUsername,
		logger:  cfg.Logger,
		events:  make(chan domain.Message, telegramEventBuffer),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// BotID is the bot's username, valid after Start.
func (t *Telegram) BotID() string { return t.botUser }

// Start connects to Telegram and begins polling updates in the
// background.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	if t.botUser == "" {
		t.botUser = bot.Self.UserName
	}
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	if update.Message.From.ID == t.bot.Self.ID {
		return
	}
	text := update.Message.Text
	if text == "" {
		return
	}

	kind := telegramChannelKind(update.Message.Chat)

	// Normalize a leading @botname to the canonical mention form the
	// classifier matches against.
	if kind != domain.ChannelDM {
		at := "@" + t.botUser
		if strings.HasPrefix(text, at) {
			text = "<@" + t.botUser + ">" + strings.TrimPrefix(text, at)
		}
	}

	msg := domain.Message{
		Text:      text,
		ChannelID: strconv.FormatInt(update.Message.Chat.ID, 10),
		AuthorID:  strconv.FormatInt(update.Message.From.ID, 10),
		Kind:      kind,
		Timestamp: time.Unix(int64(update.Message.Date), 0),
	}

	select {
	case t.events <- msg:
	case <-ctx.Done():
	}
}

func telegramChannelKind(chat *tgbotapi.Chat) domain.ChannelKind {
	switch {
	case chat.IsPrivate():
		return domain.ChannelDM
	case chat.IsGroup(), chat.IsSuperGroup():
		return domain.ChannelPublic
	default:
		return domain.ChannelUnknown
	}
}

// Receive blocks until the next message event or ctx is done.
func (t *Telegram) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case msg := <-t.events:
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

func (t *Telegram) Send(ctx context.Context, channelID, text string) error {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", channelID, err)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return fmt.Errorf("telegram send to %s: %w", channelID, err)
	}
	return nil
}

// SendDM delivers text to the user's private chat. In Telegram a
// private chat id equals the user id.
func (t *Telegram) SendDM(ctx context.Context, userID, text string) error {
	return t.Send(ctx, userID, text)
}
