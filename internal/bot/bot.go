// Package bot runs the message-processing loop: one blocking receive
// per cycle, sequential backend dispatch, one reply, then a short
// pause. A per-message failure never terminates the loop.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/slaffer-au/searchbot/internal/classify"
	"github.com/slaffer-au/searchbot/internal/dispatch"
	"github.com/slaffer-au/searchbot/internal/domain"
	"github.com/slaffer-au/searchbot/internal/render"
)

const noParamsReply = "No search parameters found"

// HelpText is sent as a DM whenever an invocation asks for help,
// regardless of where the invocation happened.
const HelpText = `I search Zendesk, Jira and Salesforce from chat.

Usage:
  zendesk "query"            search Zendesk tickets
  jira "query"               search Jira with JQL
  salesforce "query"         quick-search Salesforce (also: sf)
  text "query"               plain-text search of Zendesk and Jira
  help                       this message

Add limit=N to cap results per system, or limit=none for all.
In channels, start the message by mentioning me.`

// Bot wires a transport to the classifier, dispatcher, and renderer.
type Bot struct {
	transport  domain.Transport
	classifier *classify.Classifier
	dispatcher *dispatch.Dispatcher
	renderer   *render.Renderer
	pause      time.Duration
	logger     *slog.Logger
}

type Config struct {
	Transport  domain.Transport
	Classifier *classify.Classifier
	Dispatcher *dispatch.Dispatcher
	Renderer   *render.Renderer
	Pause      time.Duration
	Logger     *slog.Logger
}

func New(cfg Config) *Bot {
	return &Bot{
		transport:  cfg.Transport,
		classifier: cfg.Classifier,
		dispatcher: cfg.Dispatcher,
		renderer:   cfg.Renderer,
		pause:      cfg.Pause,
		logger:     cfg.Logger,
	}
}

// Run processes messages until ctx is done. Messages are handled
// strictly one at a time; the pause after each cycle (processed or
// ignored) bounds the polling rate against the transport.
func (b *Bot) Run(ctx context.Context) error {
	for {
		msg, err := b.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error("transport receive failed", "err", err)
		} else {
			b.process(ctx, msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.pause):
		}
	}
}

// Process handles one message event end to end. Exported so tests can
// drive single cycles without the loop.
func (b *Bot) Process(ctx context.Context, msg domain.Message) {
	b.process(ctx, msg)
}

func (b *Bot) process(ctx context.Context, msg domain.Message) {
	// Truly unexpected conditions are logged and the loop moves on;
	// the process never dies on a per-message error.
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while processing message",
				"channel", msg.ChannelID, "author", msg.AuthorID, "panic", r)
		}
	}()

	cctx := domain.ChannelContext{Kind: msg.Kind}
	inv := b.classifier.Classify(msg.Text, cctx)
	if !inv.Invoked {
		return
	}

	b.logger.Debug("invocation",
		"backends", inv.Backends, "help", inv.Help,
		"has_query", inv.HasQuery, "limit", inv.Limit,
		"channel_kind", msg.Kind.String(),
	)

	if inv.Help {
		if err := b.transport.SendDM(ctx, msg.AuthorID, HelpText); err != nil {
			b.logger.Error("help reply failed", "author", msg.AuthorID, "err", err)
		}
		return
	}

	if !inv.HasQuery {
		if err := b.transport.Send(ctx, msg.ChannelID, noParamsReply); err != nil {
			b.logger.Error("reply failed", "channel", msg.ChannelID, "err", err)
		}
		return
	}

	results := b.dispatcher.Dispatch(ctx, inv)
	reply := b.renderer.RenderAll(results, inv.Limit)
	if reply == "" {
		return
	}
	if err := b.transport.Send(ctx, msg.ChannelID, reply); err != nil {
		b.logger.Error("reply failed", "channel", msg.ChannelID, "err", err)
	}
}
