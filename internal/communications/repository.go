package communications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	// ErrTemplateNotFound is returned for unknown templates.
	ErrTemplateNotFound = fmt.Errorf("%w: template not found", shared.ErrNotFound)
	// ErrDuplicateTemplate is returned when the template name is taken.
	ErrDuplicateTemplate = fmt.Errorf("%w: template name already exists", shared.ErrConflict)
	// ErrNotificationNotFound is returned for unknown notifications.
	ErrNotificationNotFound = fmt.Errorf("%w: notification not found", shared.ErrNotFound)
)

// Repository persists templates, messages and notifications.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	ListTemplates(ctx context.Context, tenantID int64, channel Channel) ([]Template, error)
	GetTemplate(ctx context.Context, tenantID, id int64) (Template, error)
	CreateTemplate(ctx context.Context, t *Template) error
	ListMessages(ctx context.Context, tenantID int64, filter MessageFilter) ([]Message, int, error)
	InsertMessage(ctx context.Context, m *Message) error
	InsertNotifications(ctx context.Context, ns []Notification) error
	GetNotification(ctx context.Context, tenantID, id int64) (Notification, error)
	MarkSent(ctx context.Context, tenantID, id int64, at time.Time) error
	RecordFailure(ctx context.Context, tenantID, id int64, reason string, final bool) error
	FinishMessage(ctx context.Context, tenantID, messageID int64) (MessageStatus, error)
	Inbox(ctx context.Context, tenantID, retailerID int64, unreadOnly bool, page, limit int) ([]Notification, int, error)
	MarkRead(ctx context.Context, tenantID, retailerID, id int64, at time.Time) (Notification, error)
}

type repository struct {
	db   db.DBTX
	pool db.TxBeginner
}

// NewRepository builds the Postgres repository.
func NewRepository(conn db.DBTX, pool db.TxBeginner) Repository {
	return &repository{db: conn, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func channelStrings(in []Channel) []string {
	out := make([]string, len(in))
	for i, ch := range in {
		out[i] = string(ch)
	}
	return out
}

func toChannels(in []string) []Channel {
	out := make([]Channel, len(in))
	for i, s := range in {
		out[i] = Channel(s)
	}
	return out
}

const templateColumns = `id, tenant_id, name, channels, subject, body, created_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var (
		t        Template
		channels []string
	)
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &channels, &t.Subject, &t.Body, &t.CreatedAt); err != nil {
		return Template{}, err
	}
	t.Channels = toChannels(channels)
	return t, nil
}

func (r *repository) ListTemplates(ctx context.Context, tenantID int64, channel Channel) ([]Template, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	if channel != "" {
		w.Add("? = ANY(channels)", string(channel))
	}
	rows, err := r.db.Query(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE `+w.SQL()+` ORDER BY name`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) GetTemplate(ctx context.Context, tenantID, id int64) (Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return t, err
}

func (r *repository) CreateTemplate(ctx context.Context, t *Template) error {
	err := r.db.QueryRow(ctx, `INSERT INTO message_templates (tenant_id, name, channels, subject, body)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		t.TenantID, t.Name, channelStrings(t.Channels), t.Subject, t.Body).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateTemplate
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *repository) ListMessages(ctx context.Context, tenantID int64, filter MessageFilter) ([]Message, int, error) {
	w := &db.Where{}
	w.Add("m.tenant_id = ?", tenantID)
	if filter.Status != "" {
		w.Add("m.status = ?", string(filter.Status))
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages m WHERE `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * filter.Limit
	}
	args := append(w.Args(), filter.Limit, offset)
	rows, err := r.db.Query(ctx, `SELECT m.id, m.tenant_id, m.subject, m.body, m.channels, m.audience, m.template_id,
			m.sender_id, m.recipient_count, m.status, m.created_at,
			COUNT(n.id) FILTER (WHERE n.status = 'pending'),
			COUNT(n.id) FILTER (WHERE n.status = 'sent'),
			COUNT(n.id) FILTER (WHERE n.status = 'failed'),
			COUNT(n.id) FILTER (WHERE n.status = 'read')
		FROM messages m
		LEFT JOIN notifications n ON n.message_id = m.id
		WHERE `+w.SQL()+`
		GROUP BY m.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT `+w.Next(1)+` OFFSET `+w.Next(2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var (
			m        Message
			channels []string
			audience []byte
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Subject, &m.Body, &channels, &audience, &m.TemplateID,
			&m.SenderID, &m.RecipientCount, &m.Status, &m.CreatedAt,
			&m.Delivery.Pending, &m.Delivery.Sent, &m.Delivery.Failed, &m.Delivery.Read); err != nil {
			return nil, 0, err
		}
		m.Channels = toChannels(channels)
		if len(audience) > 0 {
			if err := json.Unmarshal(audience, &m.Audience); err != nil {
				return nil, 0, fmt.Errorf("decode audience: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *repository) InsertMessage(ctx context.Context, m *Message) error {
	audience, err := json.Marshal(m.Audience)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO messages (tenant_id, subject, body, channels, audience, template_id,
		sender_id, recipient_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		m.TenantID, m.Subject, m.Body, channelStrings(m.Channels), audience, m.TemplateID,
		m.SenderID, m.RecipientCount, m.Status).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *repository) InsertNotifications(ctx context.Context, ns []Notification) error {
	for i := range ns {
		n := &ns[i]
		err := r.db.QueryRow(ctx, `INSERT INTO notifications (tenant_id, message_id, retailer_id, channel, recipient,
			subject, body, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
			n.TenantID, n.MessageID, n.RetailerID, n.Channel, n.Recipient, n.Subject, n.Body, n.Status).
			Scan(&n.ID, &n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

const notificationColumns = `id, tenant_id, message_id, retailer_id, channel, recipient, subject, body, status,
	attempts, last_error, sent_at, read_at, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.TenantID, &n.MessageID, &n.RetailerID, &n.Channel, &n.Recipient, &n.Subject,
		&n.Body, &n.Status, &n.Attempts, &n.LastError, &n.SentAt, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (r *repository) GetNotification(ctx context.Context, tenantID, id int64) (Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

func (r *repository) MarkSent(ctx context.Context, tenantID, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE notifications SET status = 'sent', attempts = attempts + 1, sent_at = $3, last_error = ''
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`, tenantID, id, at)
	return err
}

func (r *repository) RecordFailure(ctx context.Context, tenantID, id int64, reason string, final bool) error {
	status := NotificationPending
	if final {
		status = NotificationFailed
	}
	_, err := r.db.Exec(ctx, `UPDATE notifications SET attempts = attempts + 1, last_error = $3, status = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`, tenantID, id, reason, status)
	return err
}

func (r *repository) FinishMessage(ctx context.Context, tenantID, messageID int64) (MessageStatus, error) {
	var pending, failed int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE status = 'pending'), COUNT(*) FILTER (WHERE status = 'failed')
		FROM notifications WHERE tenant_id = $1 AND message_id = $2`, tenantID, messageID).Scan(&pending, &failed)
	if err != nil {
		return "", fmt.Errorf("message progress: %w", err)
	}
	status := MessageStatusFor(pending, failed)
	_, err = r.db.Exec(ctx, `UPDATE messages SET status = $3 WHERE tenant_id = $1 AND id = $2 AND status <> $3`,
		tenantID, messageID, status)
	return status, err
}

func (r *repository) Inbox(ctx context.Context, tenantID, retailerID int64, unreadOnly bool, page, limit int) ([]Notification, int, error) {
	w := &db.Where{}
	w.Add("tenant_id = ?", tenantID)
	w.Add("retailer_id = ?", retailerID)
	w.Add("channel = ?", string(ChannelInApp))
	if unreadOnly {
		w.Add("read_at IS NULL")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE `+w.SQL()+`
		ORDER BY created_at DESC, id DESC LIMIT `+w.Next(1)+` OFFSET `+w.Next(2), append(w.Args(), limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *repository) MarkRead(ctx context.Context, tenantID, retailerID, id int64, at time.Time) (Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `UPDATE notifications
		SET read_at = COALESCE(read_at, $4), status = 'read'
		WHERE tenant_id = $1 AND retailer_id = $2 AND id = $3 AND channel = 'in_app'
		RETURNING `+notificationColumns, tenantID, retailerID, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// MessageStatusFor derives a broadcast status from its outstanding and failed deliveries.
func MessageStatusFor(pending, failed int) MessageStatus {
	switch {
	case pending > 0:
		return MessageSending
	case failed > 0:
		return MessagePartiallyFailed
	default:
		return MessageCompleted
	}
}
