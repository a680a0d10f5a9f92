package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"complyeye/internal/models"
	"complyeye/internal/notify"
	"complyeye/internal/rule"
	"complyeye/internal/store"

	"go.uber.org/zap"
)

const systemAuthor = "complyeye"

// Handlers binds each action type to its external collaborator: POA&M
// workflow mutations go through the POA&M store, notifications through
// the configured senders.
type Handlers struct {
	poams   *store.PoamStore
	senders map[string]notify.Sender
	log     *zap.Logger
}

func NewHandlers(poams *store.PoamStore, senders []notify.Sender, log *zap.Logger) *Handlers {
	byName := make(map[string]notify.Sender, len(senders))
	for _, s := range senders {
		byName[s.Name()] = s
	}
	return &Handlers{poams: poams, senders: byName, log: log}
}

// RegisterAll wires every capability handler into the dispatcher.
func (h *Handlers) RegisterAll(d *rule.Dispatcher) {
	d.Register(models.ActionAssign, rule.HandlerFunc(h.Assign))
	d.Register(models.ActionEscalate, rule.HandlerFunc(h.Escalate))
	d.Register(models.ActionNotify, rule.HandlerFunc(h.Notify))
	d.Register(models.ActionUpdatePriority, rule.HandlerFunc(h.UpdatePriority))
	d.Register(models.ActionCreateMilestone, rule.HandlerFunc(h.CreateMilestone))
	d.Register(models.ActionAddComment, rule.HandlerFunc(h.AddComment))
}

// Assign sets the POA&M item's assignee and moves it to in_progress.
func (h *Handlers) Assign(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	assignee, ok := paramString(params, "assignee")
	if !ok {
		return "", errors.New("assign action requires an assignee parameter")
	}
	item, err := h.resolvePoam(ctx, params, fc)
	if err != nil {
		return "", err
	}
	if err := h.poams.Assign(ctx, item.ID, assignee); err != nil {
		return "", fmt.Errorf("failed to assign poam %s: %w", item.ExternalID, err)
	}
	return fmt.Sprintf("poam %s assigned to %s", item.ExternalID, assignee), nil
}

// UpdatePriority sets the POA&M item's priority from the action
// parameters.
func (h *Handlers) UpdatePriority(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	priority, ok := paramInt(params, "priority")
	if !ok {
		return "", errors.New("update_priority action requires a priority parameter")
	}
	item, err := h.resolvePoam(ctx, params, fc)
	if err != nil {
		return "", err
	}
	if err := h.poams.UpdatePriority(ctx, item.ID, priority); err != nil {
		return "", fmt.Errorf("failed to update priority of poam %s: %w", item.ExternalID, err)
	}
	return fmt.Sprintf("poam %s priority set to %d", item.ExternalID, priority), nil
}

// CreateMilestone adds a remediation milestone to the POA&M item.
func (h *Handlers) CreateMilestone(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	description, ok := paramString(params, "description")
	if !ok {
		description = fmt.Sprintf("Remediation milestone created by rule %q", fc.Rule.Name)
	}
	item, err := h.resolvePoam(ctx, params, fc)
	if err != nil {
		return "", err
	}

	var due *time.Time
	if days, ok := paramInt(params, "due_in_days"); ok {
		d := time.Now().AddDate(0, 0, days)
		due = &d
	}

	m, err := h.poams.AddMilestone(ctx, item.ID, description, due)
	if err != nil {
		return "", fmt.Errorf("failed to create milestone on poam %s: %w", item.ExternalID, err)
	}
	return fmt.Sprintf("milestone %d created on poam %s", m.ID, item.ExternalID), nil
}

// AddComment appends a comment to the POA&M item.
func (h *Handlers) AddComment(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	body, ok := paramString(params, "comment")
	if !ok {
		body = fmt.Sprintf("Rule %q fired for event %s", fc.Rule.Name, fc.Event.ID)
	}
	author, ok := paramString(params, "author")
	if !ok {
		author = systemAuthor
	}
	item, err := h.resolvePoam(ctx, params, fc)
	if err != nil {
		return "", err
	}
	c, err := h.poams.AddComment(ctx, item.ID, author, body)
	if err != nil {
		return "", fmt.Errorf("failed to add comment to poam %s: %w", item.ExternalID, err)
	}
	return fmt.Sprintf("comment %d added to poam %s", c.ID, item.ExternalID), nil
}

// Notify sends the firing to the selected channels. During escalation
// re-dispatch the level's channels and recipients take precedence over
// the action parameters.
func (h *Handlers) Notify(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	msg := h.buildMessage(params, fc)
	channels := h.selectChannels(params, fc)
	return h.send(ctx, channels, msg)
}

// Escalate notifies the escalation audience with an escalation-tagged
// message. On initial dispatch (before any level is reached) it behaves
// like notify with an urgent title.
func (h *Handlers) Escalate(ctx context.Context, params map[string]any, fc *rule.FiringContext) (string, error) {
	msg := h.buildMessage(params, fc)
	if fc.Level != nil {
		msg.Title = fmt.Sprintf("Escalation level %d: %s", fc.Level.Level, fc.Rule.Name)
	} else {
		msg.Title = "Escalation requested: " + fc.Rule.Name
	}
	channels := h.selectChannels(params, fc)
	return h.send(ctx, channels, msg)
}

func (h *Handlers) send(ctx context.Context, channels []string, msg *notify.Message) (string, error) {
	if len(channels) == 0 {
		return "", errors.New("no notification channels selected")
	}

	var errs []error
	sent := 0
	for _, name := range channels {
		sender, ok := h.senders[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown channel %q", name))
			continue
		}
		if err := sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		sent++
	}

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return fmt.Sprintf("notified %d channel(s)", sent), nil
}

func (h *Handlers) buildMessage(params map[string]any, fc *rule.FiringContext) *notify.Message {
	body, ok := paramString(params, "message")
	if !ok {
		body = fc.Rule.Description
	}

	msg := &notify.Message{
		Title:    "Compliance alert: " + fc.Rule.Name,
		Body:     body,
		Severity: fc.Rule.Severity,
		Fields: []notify.Field{
			{Title: "Source", Value: fc.Event.Source},
			{Title: "Event", Value: fc.Event.ID},
			{Title: "Severity", Value: string(fc.Rule.Severity)},
			{Title: "Fired", Value: fc.Record.FiredAt.Format(time.RFC3339)},
		},
	}

	if fc.Level != nil {
		msg.Recipients = fc.Level.Recipients
	} else if recipients, ok := paramStrings(params, "recipients"); ok {
		msg.Recipients = recipients
	}
	return msg
}

func (h *Handlers) selectChannels(params map[string]any, fc *rule.FiringContext) []string {
	if fc.Level != nil && len(fc.Level.Channels) > 0 {
		return fc.Level.Channels
	}
	if channels, ok := paramStrings(params, "channels"); ok {
		return channels
	}
	// Without an explicit selection, use every configured transport.
	channels := make([]string, 0, len(h.senders))
	for name := range h.senders {
		channels = append(channels, name)
	}
	return channels
}

// resolvePoam finds the POA&M item an action targets: an explicit
// poam_id parameter wins, otherwise the event payload's id field.
func (h *Handlers) resolvePoam(ctx context.Context, params map[string]any, fc *rule.FiringContext) (*models.PoamItem, error) {
	externalID, ok := paramString(params, "poam_id")
	if !ok {
		if v := rule.Extract(fc.Event.Data, "id"); v != nil {
			externalID = fmt.Sprintf("%v", v)
			ok = true
		}
	}
	if !ok || externalID == "" {
		return nil, errors.New("no poam identifier in action parameters or event data")
	}

	item, err := h.poams.FindByExternalID(ctx, fc.Rule.TenantID, externalID)
	if err != nil {
		return nil, fmt.Errorf("poam %s not found: %w", externalID, err)
	}
	return item, nil
}

func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func paramInt(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func paramStrings(params map[string]any, key string) ([]string, bool) {
	switch v := params[key].(type) {
	case []string:
		return v, len(v) > 0
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}
