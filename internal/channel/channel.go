package channel

import (
	"context"
	"time"
)

// InboundMessage is a message received from a channel. ThreadID is the
// transport's stable thread (or chat) identifier.
type InboundMessage struct {
	ChannelName string
	SenderID    string
	SenderName  string
	ThreadID    string
	Text        string
	Timestamp   time.Time
}

// OutboundMessage is a message to send through a channel.
type OutboundMessage struct {
	ThreadID string
	Text     string
}

// Channel is the interface for chat transports.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Send delivers a complete message.
	Send(ctx context.Context, msg OutboundMessage) error

	// SendStream append-renders chunks into the thread as they arrive,
	// returning when the chunk channel closes or ctx is done.
	SendStream(ctx context.Context, threadID string, chunks <-chan string) error

	// UploadFile attaches a file into the thread.
	UploadFile(ctx context.Context, threadID, path string) error

	OnMessage(handler func(InboundMessage))
	IsRunning() bool
}
