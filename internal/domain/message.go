package domain

import "time"

// ChannelKind classifies where a message arrived. Exactly one kind
// applies to any message; identifiers that fit no known scheme map to
// ChannelUnknown.
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelDM
	ChannelPrivate
	ChannelPublic
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelDM:
		return "dm"
	case ChannelPrivate:
		return "private"
	case ChannelPublic:
		return "public"
	default:
		return "unknown"
	}
}

// ChannelContext is derived once per incoming message and discarded
// after the reply is sent.
type ChannelContext struct {
	Kind         ChannelKind
	SelfAuthored bool
}

// Message is one chat event as delivered by a transport. Transports
// drop the bot's own messages before they reach the processing loop.
type Message struct {
	Text      string
	ChannelID string
	AuthorID  string
	Kind      ChannelKind
	Timestamp time.Time
}
