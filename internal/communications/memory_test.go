package communications

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
)

type memoryRepo struct {
	templates     []Template
	messages      []Message
	notifications []Notification
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	msgs, notes := len(m.messages), len(m.notifications)
	if err := fn(ctx, m); err != nil {
		m.messages = m.messages[:msgs]
		m.notifications = m.notifications[:notes]
		return err
	}
	return nil
}

func (m *memoryRepo) ListTemplates(ctx context.Context, tenantID int64, channel Channel) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		if t.TenantID != tenantID {
			continue
		}
		if channel != "" && !hasChannel(t.Channels, channel) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func hasChannel(list []Channel, ch Channel) bool {
	for _, c := range list {
		if c == ch {
			return true
		}
	}
	return false
}

func (m *memoryRepo) GetTemplate(ctx context.Context, tenantID, id int64) (Template, error) {
	for _, t := range m.templates {
		if t.ID == id && t.TenantID == tenantID {
			return t, nil
		}
	}
	return Template{}, ErrTemplateNotFound
}

func (m *memoryRepo) CreateTemplate(ctx context.Context, t *Template) error {
	for _, existing := range m.templates {
		if existing.TenantID == t.TenantID && existing.Name == t.Name {
			return ErrDuplicateTemplate
		}
	}
	t.ID = int64(len(m.templates) + 1)
	m.templates = append(m.templates, *t)
	return nil
}

func (m *memoryRepo) ListMessages(ctx context.Context, tenantID int64, filter MessageFilter) ([]Message, int, error) {
	var out []Message
	for _, msg := range m.messages {
		if msg.TenantID != tenantID || (filter.Status != "" && msg.Status != filter.Status) {
			continue
		}
		msg.Delivery = DeliveryCounts{}
		for _, n := range m.notifications {
			if n.MessageID == nil || *n.MessageID != msg.ID {
				continue
			}
			switch n.Status {
			case NotificationPending:
				msg.Delivery.Pending++
			case NotificationSent:
				msg.Delivery.Sent++
			case NotificationFailed:
				msg.Delivery.Failed++
			case NotificationRead:
				msg.Delivery.Read++
			}
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) InsertMessage(ctx context.Context, msg *Message) error {
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memoryRepo) InsertNotifications(ctx context.Context, ns []Notification) error {
	for i := range ns {
		ns[i].ID = int64(len(m.notifications) + 1)
		m.notifications = append(m.notifications, ns[i])
	}
	return nil
}

func (m *memoryRepo) find(tenantID, id int64) *Notification {
	for i := range m.notifications {
		if m.notifications[i].ID == id && m.notifications[i].TenantID == tenantID {
			return &m.notifications[i]
		}
	}
	return nil
}

func (m *memoryRepo) GetNotification(ctx context.Context, tenantID, id int64) (Notification, error) {
	if n := m.find(tenantID, id); n != nil {
		return *n, nil
	}
	return Notification{}, ErrNotificationNotFound
}

func (m *memoryRepo) MarkSent(ctx context.Context, tenantID, id int64, at time.Time) error {
	if n := m.find(tenantID, id); n != nil && n.Status == NotificationPending {
		n.Status = NotificationSent
		n.Attempts++
		n.SentAt = &at
		n.LastError = ""
	}
	return nil
}

func (m *memoryRepo) RecordFailure(ctx context.Context, tenantID, id int64, reason string, final bool) error {
	if n := m.find(tenantID, id); n != nil && n.Status == NotificationPending {
		n.Attempts++
		n.LastError = reason
		if final {
			n.Status = NotificationFailed
		}
	}
	return nil
}

func (m *memoryRepo) FinishMessage(ctx context.Context, tenantID, messageID int64) (MessageStatus, error) {
	var pending, failed int
	for _, n := range m.notifications {
		if n.MessageID == nil || *n.MessageID != messageID {
			continue
		}
		switch n.Status {
		case NotificationPending:
			pending++
		case NotificationFailed:
			failed++
		}
	}
	status := MessageStatusFor(pending, failed)
	for i := range m.messages {
		if m.messages[i].ID == messageID {
			m.messages[i].Status = status
		}
	}
	return status, nil
}

func (m *memoryRepo) Inbox(ctx context.Context, tenantID, retailerID int64, unreadOnly bool, page, limit int) ([]Notification, int, error) {
	var out []Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.TenantID != tenantID || n.RetailerID != retailerID || n.Channel != ChannelInApp {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (m *memoryRepo) MarkRead(ctx context.Context, tenantID, retailerID, id int64, at time.Time) (Notification, error) {
	n := m.find(tenantID, id)
	if n == nil || n.RetailerID != retailerID || n.Channel != ChannelInApp {
		return Notification{}, ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	n.Status = NotificationRead
	return *n, nil
}

type stubRetailers struct {
	all []retailers.Retailer
}

func (s stubRetailers) Audience(ctx context.Context, tenantID int64, a retailers.Audience) ([]retailers.Retailer, error) {
	var out []retailers.Retailer
	for _, r := range s.all {
		if r.TenantID != tenantID {
			continue
		}
		if len(a.RetailerIDs) > 0 && !containsID(a.RetailerIDs, r.ID) {
			continue
		}
		if len(a.Statuses) > 0 && !containsStatus(a.Statuses, r.Status) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(list []retailers.Status, s retailers.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type captureQueue struct {
	ids []int64
	err error
}

func (q *captureQueue) EnqueueDelivery(ctx context.Context, tenantID, notificationID int64) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, notificationID)
	return nil
}
