package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"complyeye/internal/models"

	"github.com/slack-go/slack"
)

type SlackSender struct {
	client  *slack.Client
	channel string
}

func NewSlackSender(token, channel string) *SlackSender {
	return &SlackSender{
		client:  slack.New(token),
		channel: channel,
	}
}

func (s *SlackSender) Name() string {
	return ChannelSlack
}

// Send posts the message as an attachment to the configured channel, or
// to each recipient channel when the message names them explicitly.
func (s *SlackSender) Send(ctx context.Context, msg *Message) error {
	fields := make([]slack.AttachmentField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, slack.AttachmentField{
			Title: f.Title,
			Value: f.Value,
			Short: true,
		})
	}

	attachment := slack.Attachment{
		Color:  severityColor(msg.Severity),
		Title:  msg.Title,
		Text:   msg.Body,
		Fields: fields,
		Footer: "ComplyEye",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	channels := msg.Recipients
	if len(channels) == 0 {
		channels = []string{s.channel}
	}

	for _, channel := range channels {
		_, _, err := s.client.PostMessageContext(ctx, channel,
			slack.MsgOptionAttachments(attachment))
		if err != nil {
			return err
		}
	}
	return nil
}

func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#FF0000"
	case models.SeverityWarning:
		return "#FFA500"
	case models.SeverityInfo:
		return "#36a64f"
	default:
		return "#808080"
	}
}
