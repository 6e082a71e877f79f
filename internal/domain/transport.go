package domain

import "context"

// Transport is the chat-side collaborator: it delivers one message
// event per Receive call and sends replies. Connection lifecycle is
// owned by the transport, never by the processing loop.
type Transport interface {
	// Receive blocks until the next message event or ctx is done.
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, channelID, text string) error
	// SendDM delivers text to the author's direct-message channel,
	// used for help replies triggered from public channels.
	SendDM(ctx context.Context, userID, text string) error
	// BotID is the transport's identifier for the bot itself, used
	// for mention matching.
	BotID() string
}
