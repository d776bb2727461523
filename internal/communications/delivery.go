package communications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrPermanent marks delivery failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// Sender pushes one notification out on its channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// InApp delivers by storing; nothing leaves the system.
var InApp = SenderFunc(func(context.Context, Notification) error { return nil })

// LogSender writes the notification to the log instead of sending it.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification delivered to log",
		slog.Int64("notification_id", n.ID),
		slog.String("channel", string(n.Channel)),
		slog.String("recipient", n.Recipient),
		slog.String("subject", n.Subject))
	return nil
}

// SMTPSender sends email notifications through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for host:port.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{Addr: net.JoinHostPort(host, strconv.Itoa(port)), From: from, send: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: retailer has no email address", ErrPermanent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(s.Addr, nil, s.From, []string{n.Recipient}, composeMail(s.From, n))
}

func composeMail(from string, n Notification) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + n.Recipient + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(n.Subject, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	return b.Bytes()
}

// GatewaySender posts sms and push notifications to an HTTP gateway.
type GatewaySender struct {
	url        string
	httpClient *http.Client
	attempts   uint64
	baseDelay  time.Duration
}

// NewGatewaySender returns a gateway client for url.
func NewGatewaySender(url string, hc *http.Client) *GatewaySender {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &GatewaySender{url: url, httpClient: hc, attempts: 2, baseDelay: 100 * time.Millisecond}
}

type gatewayRequest struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	Subject string  `json:"subject,omitempty"`
	Body    string  `json:"body"`
	Ref     string  `json:"reference"`
}

func (g *GatewaySender) Send(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: retailer has no %s address", ErrPermanent, n.Channel)
	}
	payload, err := json.Marshal(gatewayRequest{
		Channel: n.Channel,
		To:      n.Recipient,
		Subject: n.Subject,
		Body:    n.Body,
		Ref:     "notification-" + strconv.FormatInt(n.ID, 10),
	})
	if err != nil {
		return err
	}
	backoff := retry.WithMaxRetries(g.attempts, retry.NewExponential(g.baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("gateway returned status %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("%w: gateway rejected notification with status %d", ErrPermanent, resp.StatusCode)
		}
		return nil
	})
}

// SenderConfig selects the outbound transports.
type SenderConfig struct {
	SMTPHost   string
	SMTPPort   int
	SMTPFrom   string
	GatewayURL string
}

// NewSenders builds the per-channel senders. Unconfigured transports fall back to the log.
func NewSenders(cfg SenderConfig, logger *slog.Logger) map[Channel]Sender {
	fallback := LogSender{Logger: logger}
	senders := map[Channel]Sender{
		ChannelInApp: InApp,
		ChannelEmail: fallback,
		ChannelSMS:   fallback,
		ChannelPush:  fallback,
	}
	if cfg.SMTPHost != "" {
		senders[ChannelEmail] = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	if cfg.GatewayURL != "" {
		gw := NewGatewaySender(cfg.GatewayURL, nil)
		senders[ChannelSMS] = gw
		senders[ChannelPush] = gw
	}
	return senders
}

// Deliverer runs one delivery attempt for a stored notification.
type Deliverer struct {
	repo    Repository
	senders map[Channel]Sender
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeliverer wires the delivery worker logic.
func NewDeliverer(repo Repository, senders map[Channel]Sender, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{repo: repo, senders: senders, logger: logger, now: time.Now}
}

// Deliver sends the notification. lastAttempt marks the final try: a failure
// then leaves the notification failed instead of pending. Already delivered
// notifications are skipped so redelivered tasks are harmless.
func (d *Deliverer) Deliver(ctx context.Context, tenantID, notificationID int64, lastAttempt bool) error {
	n, err := d.repo.GetNotification(ctx, tenantID, notificationID)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}
	if n.Status != NotificationPending {
		return nil
	}
	logger := d.logger.With(slog.Int64("notification_id", n.ID), slog.String("channel", string(n.Channel)))

	sender, ok := d.senders[n.Channel]
	if !ok {
		sender = LogSender{Logger: d.logger}
	}
	sendErr := sender.Send(ctx, n)
	if sendErr != nil {
		final := lastAttempt || errors.Is(sendErr, ErrPermanent)
		logger.Warn("notification delivery failed", slog.Bool("final", final), slog.Any("error", sendErr))
		if err := d.repo.RecordFailure(ctx, tenantID, n.ID, truncate(sendErr.Error(), 500), final); err != nil {
			return err
		}
		if final {
			d.finish(ctx, logger, n)
		}
		return sendErr
	}
	if err := d.repo.MarkSent(ctx, tenantID, n.ID, d.now().UTC()); err != nil {
		return err
	}
	d.finish(ctx, logger, n)
	return nil
}

func (d *Deliverer) finish(ctx context.Context, logger *slog.Logger, n Notification) {
	if n.MessageID == nil {
		return
	}
	status, err := d.repo.FinishMessage(ctx, n.TenantID, *n.MessageID)
	if err != nil {
		logger.Warn("update message status", slog.Any("error", err))
		return
	}
	if status != MessageSending {
		logger.Info("message delivery finished", slog.Int64("message_id", *n.MessageID), slog.String("status", string(status)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
