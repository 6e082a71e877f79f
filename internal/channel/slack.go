// Package channel implements the chat transports. A transport owns
// its connection lifecycle, filters out the bot's own messages, and
// derives the channel context before events reach the processing
// loop.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slaffer-au/searchbot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackEventBuffer = 64

// Slack implements domain.Transport over Slack Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	logger   *slog.Logger
	botUID   string
	events   chan domain.Message
}

type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
		events:   make(chan domain.Message, slackEventBuffer),
	}
}

func (s *Slack) Name() string { return "slack" }

// BotID is the bot's Slack user id, valid after Start.
func (s *Slack) BotID() string { return s.botUID }

// Start authenticates, connects Socket Mode in the background, and
// returns once events can be received.
func (s *Slack) Start(ctx context.Context) error {
	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	s.socket = socketmode.New(api)

	go func() {
		for evt := range s.socket.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				s.socket.Ack(*evt.Request)
				s.handleEventsAPI(ctx, eventsAPIEvent)
			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					s.socket.Ack(*evt.Request)
				}
			}
		}
	}()

	go func() {
		if err := s.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("slack socket mode stopped", "err", err)
		}
	}()

	return nil
}

func (s *Slack) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	// Mentions also arrive as plain message events with the <@UID>
	// text intact, so AppMentionEvent is ignored to avoid processing
	// the same message twice.
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// The bot's own messages never reach the classifier.
	if ev.User == "" || ev.User == s.botUID {
		return
	}
	if ev.SubType != "" {
		return
	}

	kind := slackChannelKind(ev.Channel)
	if kind == domain.ChannelUnknown {
		s.logger.Warn("unrecognized slack channel identifier", "channel", ev.Channel)
	}

	msg := domain.Message{
		Text:      ev.Text,
		ChannelID: ev.Channel,
		AuthorID:  ev.User,
		Kind:      kind,
		Timestamp: time.Now(),
	}

	select {
	case s.events <- msg:
	case <-ctx.Done():
	}
}

// slackChannelKind derives the channel context from the identifier
// prefix: D = direct message, G = private group, C = public channel.
func slackChannelKind(channelID string) domain.ChannelKind {
	if channelID == "" {
		return domain.ChannelUnknown
	}
	switch channelID[0] {
	case 'D':
		return domain.ChannelDM
	case 'G':
		return domain.ChannelPrivate
	case 'C':
		return domain.ChannelPublic
	default:
		return domain.ChannelUnknown
	}
}

// Receive blocks until the next message event or ctx is done.
func (s *Slack) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case msg := <-s.events:
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

func (s *Slack) Send(ctx context.Context, channelID, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("slack send to %s: %w", channelID, err)
	}
	return nil
}

// SendDM opens (or reuses) the direct-message conversation with the
// user and delivers text there, regardless of where the triggering
// message was posted.
func (s *Slack) SendDM(ctx context.Context, userID, text string) error {
	ch, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return fmt.Errorf("slack open dm with %s: %w", userID, err)
	}
	return s.Send(ctx, ch.ID, text)
}

// ChannelInfo is one entry of the channel-listing mode.
type ChannelInfo struct {
	Name string
	ID   string
}

// ListChannels returns all public and private channels, for operators
// figuring out channel ids for configuration. It needs only the bot
// token, not a Socket Mode connection.
func ListChannels(ctx context.Context, botToken string) ([]ChannelInfo, error) {
	api := slack.New(botToken)

	var channels []ChannelInfo
	params := &slack.GetConversationsParameters{
		Types: []string{"public_channel", "private_channel"},
	}
	for {
		page, cursor, err := api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("slack list conversations: %w", err)
		}
		for _, ch := range page {
			channels = append(channels, ChannelInfo{Name: ch.Name, ID: ch.ID})
		}
		if cursor == "" {
			return channels, nil
		}
		params.Cursor = cursor
	}
}
