package communications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/events"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// ErrNoRecipients is returned when the audience matches nobody.
var ErrNoRecipients = fmt.Errorf("%w: audience matches no retailers", shared.ErrValidation)

// Retailers resolves recipients.
type Retailers interface {
	Audience(ctx context.Context, tenantID int64, audience retailers.Audience) ([]retailers.Retailer, error)
}

// Enqueuer schedules delivery of stored notifications.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, tenantID, notificationID int64) error
}

// Deps bundles collaborators of the communications service.
type Deps struct {
	Repo      Repository
	Retailers Retailers
	Queue     Enqueuer
	Events    events.Publisher
	Audit     *shared.AuditLogger
	Logger    *slog.Logger
}

type Service struct {
	repo      Repository
	retailers Retailers
	queue     Enqueuer
	events    events.Publisher
	audit     *shared.AuditLogger
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := d.Events
	if pub == nil {
		pub = events.LogPublisher{Logger: logger}
	}
	return &Service{
		repo:      d.Repo,
		retailers: d.Retailers,
		queue:     d.Queue,
		events:    pub,
		audit:     d.Audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Templates lists templates, optionally only those usable on channel.
func (s *Service) Templates(ctx context.Context, tenantID int64, channel Channel) ([]Template, error) {
	out, err := s.repo.ListTemplates(ctx, tenantID, channel)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Template{}
	}
	return out, nil
}

// CreateTemplate validates and stores a template.
func (s *Service) CreateTemplate(ctx context.Context, actor shared.Actor, in TemplateInput) (Template, error) {
	if _, err := Parse(in.Subject, in.Body); err != nil {
		return Template{}, err
	}
	t := Template{
		TenantID: actor.TenantID,
		Name:     strings.TrimSpace(in.Name),
		Channels: uniqueChannels(in.Channels),
		Subject:  in.Subject,
		Body:     in.Body,
	}
	if err := s.repo.CreateTemplate(ctx, &t); err != nil {
		return Template{}, err
	}
	s.record(ctx, actor, "template.created", "message_template", t.ID, map[string]any{"name": t.Name})
	return t, nil
}

// MessagesResult is one page of broadcasts.
type MessagesResult struct {
	Messages   []Message         `json:"messages"`
	Pagination shared.Pagination `json:"pagination"`
}

// Messages lists broadcasts newest first with delivery counts.
func (s *Service) Messages(ctx context.Context, tenantID int64, filter MessageFilter) (MessagesResult, error) {
	if filter.Limit <= 0 || filter.Limit > shared.MaxPerPage {
		filter.Limit = shared.DefaultPerPage
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	rows, total, err := s.repo.ListMessages(ctx, tenantID, filter)
	if err != nil {
		return MessagesResult{}, err
	}
	if rows == nil {
		rows = []Message{}
	}
	return MessagesResult{Messages: rows, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

// Broadcast renders a message for every retailer in the audience and queues delivery.
func (s *Service) Broadcast(ctx context.Context, actor shared.Actor, in BroadcastInput) (Message, error) {
	subject, body, tmplID, err := s.content(ctx, actor.TenantID, in.Subject, in.Body, in.TemplateID)
	if err != nil {
		return Message{}, err
	}
	content, err := Parse(subject, body)
	if err != nil {
		return Message{}, err
	}
	recipients, err := s.retailers.Audience(ctx, actor.TenantID, in.Audience)
	if err != nil {
		return Message{}, err
	}
	if len(recipients) == 0 {
		return Message{}, ErrNoRecipients
	}
	channels := uniqueChannels(in.Channels)
	msg := Message{
		TenantID:       actor.TenantID,
		Subject:        subject,
		Body:           body,
		Channels:       channels,
		Audience:       in.Audience,
		TemplateID:     tmplID,
		SenderID:       actor.UserID,
		RecipientCount: len(recipients),
		Status:         MessageQueued,
	}
	var notes []Notification
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.InsertMessage(ctx, &msg); err != nil {
			return err
		}
		notes, err = build(actor.TenantID, &msg.ID, recipients, channels, content)
		if err != nil {
			return err
		}
		return repo.InsertNotifications(ctx, notes)
	})
	if err != nil {
		return Message{}, err
	}
	msg.Delivery.Pending = len(notes)

	s.enqueue(ctx, actor.TenantID, notes)
	s.events.Publish(ctx, events.New(events.MessageBroadcast, actor.TenantID, map[string]any{
		"message_id":      msg.ID,
		"recipient_count": msg.RecipientCount,
		"channels":        msg.Channels,
	}))
	s.record(ctx, actor, "message.broadcast", "message", msg.ID, map[string]any{"recipients": msg.RecipientCount})
	return msg, nil
}

// Send delivers to a single retailer without a broadcast record.
func (s *Service) Send(ctx context.Context, actor shared.Actor, in SendInput) (Sent, error) {
	subject, body, _, err := s.content(ctx, actor.TenantID, in.Subject, in.Body, in.TemplateID)
	if err != nil {
		return Sent{}, err
	}
	content, err := Parse(subject, body)
	if err != nil {
		return Sent{}, err
	}
	recipients, err := s.retailers.Audience(ctx, actor.TenantID, retailers.Audience{RetailerIDs: []int64{in.RetailerID}})
	if err != nil {
		return Sent{}, err
	}
	if len(recipients) == 0 {
		return Sent{}, retailers.ErrNotFound
	}
	notes, err := build(actor.TenantID, nil, recipients, uniqueChannels(in.Channels), content)
	if err != nil {
		return Sent{}, err
	}
	if err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.InsertNotifications(ctx, notes)
	}); err != nil {
		return Sent{}, err
	}
	s.enqueue(ctx, actor.TenantID, notes)
	s.record(ctx, actor, "notification.sent", "retailer", in.RetailerID, map[string]any{"channels": in.Channels})
	return Sent{Notifications: notes}, nil
}

// InboxResult is one page of a retailer's in-app notifications.
type InboxResult struct {
	Notifications []Notification    `json:"notifications"`
	Pagination    shared.Pagination `json:"pagination"`
}

// Inbox lists the retailer's in-app notifications newest first.
func (s *Service) Inbox(ctx context.Context, actor shared.Actor, unreadOnly bool, page, limit int) (InboxResult, error) {
	if actor.RetailerID <= 0 {
		return InboxResult{}, fmt.Errorf("%w: retailer account required", shared.ErrForbidden)
	}
	if limit <= 0 || limit > shared.MaxPerPage {
		limit = shared.DefaultPerPage
	}
	rows, total, err := s.repo.Inbox(ctx, actor.TenantID, actor.RetailerID, unreadOnly, page, limit)
	if err != nil {
		return InboxResult{}, err
	}
	if rows == nil {
		rows = []Notification{}
	}
	return InboxResult{Notifications: rows, Pagination: shared.NewPagination(page, limit, total)}, nil
}

// MarkRead marks one of the retailer's in-app notifications as read.
func (s *Service) MarkRead(ctx context.Context, actor shared.Actor, id int64) (Notification, error) {
	if actor.RetailerID <= 0 {
		return Notification{}, fmt.Errorf("%w: retailer account required", shared.ErrForbidden)
	}
	return s.repo.MarkRead(ctx, actor.TenantID, actor.RetailerID, id, s.now().UTC())
}

// content resolves subject and body from a template or the request itself.
func (s *Service) content(ctx context.Context, tenantID int64, subject, body string, templateID *int64) (string, string, *int64, error) {
	if templateID != nil {
		t, err := s.repo.GetTemplate(ctx, tenantID, *templateID)
		if err != nil {
			return "", "", nil, err
		}
		if strings.TrimSpace(subject) == "" {
			subject = t.Subject
		}
		if strings.TrimSpace(body) == "" {
			body = t.Body
		}
		return subject, body, templateID, nil
	}
	if strings.TrimSpace(body) == "" {
		return "", "", nil, fmt.Errorf("%w: body or template_id is required", shared.ErrValidation)
	}
	return subject, body, nil, nil
}

func build(tenantID int64, messageID *int64, recipients []retailers.Retailer, channels []Channel, content Content) ([]Notification, error) {
	out := make([]Notification, 0, len(recipients)*len(channels))
	for _, r := range recipients {
		subject, body, err := content.Render(FieldsFor(r))
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			out = append(out, Notification{
				TenantID:   tenantID,
				MessageID:  messageID,
				RetailerID: r.ID,
				Channel:    ch,
				Recipient:  RecipientFor(r, ch),
				Subject:    subject,
				Body:       body,
				Status:     NotificationPending,
			})
		}
	}
	return out, nil
}

// enqueue schedules delivery. Rows stay pending when the queue is down and
// can be re-driven, so enqueue errors are logged rather than returned.
func (s *Service) enqueue(ctx context.Context, tenantID int64, notes []Notification) {
	if s.queue == nil {
		return
	}
	for _, n := range notes {
		if err := s.queue.EnqueueDelivery(ctx, tenantID, n.ID); err != nil {
			s.logger.Error("enqueue notification", slog.Int64("notification_id", n.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, id int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: actor.TenantID,
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit communication", slog.String("action", action), slog.Any("error", err))
	}
}
