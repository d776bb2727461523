package communications

import (
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
)

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// MessageStatus tracks a broadcast.
type MessageStatus string

const (
	MessageQueued          MessageStatus = "queued"
	MessageSending         MessageStatus = "sending"
	MessageCompleted       MessageStatus = "completed"
	MessagePartiallyFailed MessageStatus = "partially_failed"
)

// NotificationStatus tracks one delivery.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationRead    NotificationStatus = "read"
)

// MaxAttempts is how many times a delivery is tried before it is failed.
const MaxAttempts = 5

// Template is a reusable message body.
type Template struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"-"`
	Name      string    `json:"name"`
	Channels  []Channel `json:"channels"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateInput creates a template.
type TemplateInput struct {
	Name     string    `json:"name" validate:"required,max=100"`
	Channels []Channel `json:"channels" validate:"required,min=1,dive,oneof=in_app email sms push"`
	Subject  string    `json:"subject" validate:"max=200"`
	Body     string    `json:"body" validate:"required,max=5000"`
}

// DeliveryCounts counts notifications of a message per status.
type DeliveryCounts struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Read    int `json:"read"`
}

// Message is a broadcast to many retailers.
type Message struct {
	ID             int64              `json:"id"`
	TenantID       int64              `json:"-"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	Channels       []Channel          `json:"channels"`
	Audience       retailers.Audience `json:"audience"`
	TemplateID     *int64             `json:"template_id,omitempty"`
	SenderID       int64              `json:"sender_id"`
	RecipientCount int                `json:"recipient_count"`
	Status         MessageStatus      `json:"status"`
	Delivery       DeliveryCounts     `json:"delivery"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Notification is one rendered message for one retailer on one channel.
type Notification struct {
	ID         int64              `json:"id"`
	TenantID   int64              `json:"-"`
	MessageID  *int64             `json:"message_id,omitempty"`
	RetailerID int64              `json:"retailer_id"`
	Channel    Channel            `json:"channel"`
	Recipient  string             `json:"-"`
	Subject    string             `json:"subject"`
	Body       string             `json:"body"`
	Status     NotificationStatus `json:"status"`
	Attempts   int                `json:"attempts"`
	LastError  string             `json:"last_error,omitempty"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
	ReadAt     *time.Time         `json:"read_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// MessageFilter narrows the message list.
type MessageFilter struct {
	Status MessageStatus
	Page   int
	Limit  int
}

// BroadcastInput sends a message to an audience.
type BroadcastInput struct {
	Subject    string             `json:"subject" validate:"max=200"`
	Body       string             `json:"body" validate:"max=5000"`
	TemplateID *int64             `json:"template_id" validate:"omitempty,gt=0"`
	Channels   []Channel          `json:"channels" validate:"required,min=1,dive,oneof=in_app email sms push"`
	Audience   retailers.Audience `json:"audience"`
}

// SendInput sends a notification to a single retailer.
type SendInput struct {
	RetailerID int64     `json:"retailer_id" validate:"required,gt=0"`
	Subject    string    `json:"subject" validate:"max=200"`
	Body       string    `json:"body" validate:"max=5000"`
	TemplateID *int64    `json:"template_id" validate:"omitempty,gt=0"`
	Channels   []Channel `json:"channels" validate:"required,min=1,dive,oneof=in_app email sms push"`
}

// Sent is the result of a direct send.
type Sent struct {
	Notifications []Notification `json:"notifications"`
}
