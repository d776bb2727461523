package communications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(repo *memoryRepo, channels ...Channel) {
	msgID := int64(1)
	repo.messages = append(repo.messages, Message{ID: msgID, TenantID: 1, Status: MessageQueued})
	for _, ch := range channels {
		repo.notifications = append(repo.notifications, Notification{
			ID: int64(len(repo.notifications) + 1), TenantID: 1, MessageID: &msgID, RetailerID: 10,
			Channel: ch, Recipient: "dest", Status: NotificationPending,
		})
	}
}

func TestDeliverMarksSentAndCompletesMessage(t *testing.T) {
	repo := &memoryRepo{}
	seed(repo, ChannelInApp, ChannelEmail)
	d := NewDeliverer(repo, map[Channel]Sender{ChannelInApp: InApp, ChannelEmail: LogSender{}}, nil)

	require.NoError(t, d.Deliver(context.Background(), 1, 1, false))
	assert.Equal(t, MessageSending, repo.messages[0].Status)
	require.NoError(t, d.Deliver(context.Background(), 1, 2, false))
	assert.Equal(t, NotificationSent, repo.notifications[1].Status)
	assert.Equal(t, 1, repo.notifications[1].Attempts)
	assert.Equal(t, MessageCompleted, repo.messages[0].Status)

	require.NoError(t, d.Deliver(context.Background(), 1, 2, false), "redelivery is a no-op")
	assert.Equal(t, 1, repo.notifications[1].Attempts)
}

func TestDeliverRetriesThenFails(t *testing.T) {
	repo := &memoryRepo{}
	seed(repo, ChannelInApp, ChannelSMS)
	flaky := SenderFunc(func(context.Context, Notification) error { return errors.New("gateway timeout") })
	d := NewDeliverer(repo, map[Channel]Sender{ChannelInApp: InApp, ChannelSMS: flaky}, nil)
	ctx := context.Background()

	require.NoError(t, d.Deliver(ctx, 1, 1, false))
	for i := 1; i < MaxAttempts; i++ {
		assert.Error(t, d.Deliver(ctx, 1, 2, false))
	}
	assert.Equal(t, NotificationPending, repo.notifications[1].Status)
	assert.Equal(t, MaxAttempts-1, repo.notifications[1].Attempts)

	assert.Error(t, d.Deliver(ctx, 1, 2, true))
	assert.Equal(t, NotificationFailed, repo.notifications[1].Status)
	assert.Equal(t, "gateway timeout", repo.notifications[1].LastError)
	assert.Equal(t, MessagePartiallyFailed, repo.messages[0].Status)
}

func TestDeliverPermanentFailureStopsEarly(t *testing.T) {
	repo := &memoryRepo{}
	seed(repo, ChannelEmail)
	repo.notifications[0].Recipient = ""
	smtpSender := NewSMTPSender("localhost", 25, "noreply@example.com")
	d := NewDeliverer(repo, map[Channel]Sender{ChannelEmail: smtpSender}, nil)

	err := d.Deliver(context.Background(), 1, 1, false)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, NotificationFailed, repo.notifications[0].Status)

	err = d.Deliver(context.Background(), 1, 99, false)
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestSMTPSenderComposesMail(t *testing.T) {
	s := NewSMTPSender("mail.local", 2525, "noreply@example.com")
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}
	err := s.Send(context.Background(), Notification{Recipient: "shop@example.com", Subject: "Due\nsoon", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"shop@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Due soon\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "line1\r\nline2"))
}

func TestGatewaySenderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req gatewayRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, ChannelSMS, req.Channel)
		assert.Equal(t, "notification-7", req.Ref)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g := NewGatewaySender(srv.URL, srv.Client())
	g.baseDelay = time.Millisecond
	require.NoError(t, g.Send(context.Background(), Notification{ID: 7, Channel: ChannelSMS, Recipient: "+1", Body: "hi"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGatewaySenderClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()
	g := NewGatewaySender(srv.URL, srv.Client())
	err := g.Send(context.Background(), Notification{ID: 1, Channel: ChannelPush, Recipient: "R-1", Body: "hi"})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestNewSendersFallBackToLog(t *testing.T) {
	senders := NewSenders(SenderConfig{}, nil)
	assert.IsType(t, LogSender{}, senders[ChannelEmail])
	assert.IsType(t, LogSender{}, senders[ChannelSMS])

	senders = NewSenders(SenderConfig{SMTPHost: "mail", SMTPPort: 25, GatewayURL: "http://gw"}, nil)
	assert.IsType(t, &SMTPSender{}, senders[ChannelEmail])
	assert.IsType(t, &GatewaySender{}, senders[ChannelPush])
}
