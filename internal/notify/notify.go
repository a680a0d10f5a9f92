package notify

import (
	"context"

	"complyeye/internal/models"
)

// Channel names used by rule actions and escalation levels to select a
// transport.
const (
	ChannelSlack   = "slack"
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Field is one labeled value rendered in a notification.
type Field struct {
	Title string
	Value string
}

// Message is the transport-neutral notification payload.
type Message struct {
	Title      string
	Body       string
	Severity   models.Severity
	Recipients []string
	Fields     []Field
}

// Sender delivers a message over one transport. Implementations must
// respect the context deadline.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
