package communications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

var (
	admin    = shared.Actor{TenantID: 1, UserID: 3, Role: shared.RoleAdmin}
	retailer = shared.Actor{TenantID: 1, UserID: 40, Role: shared.RoleRetailer, RetailerID: 10}
)

func newTestService() (*Service, *memoryRepo, *captureQueue) {
	repo := &memoryRepo{}
	queue := &captureQueue{}
	svc := NewService(Deps{
		Repo: repo,
		Retailers: stubRetailers{all: []retailers.Retailer{
			{ID: 10, TenantID: 1, Code: "R-10", Name: "Kiosk One", Email: "one@example.com", Status: retailers.StatusActive, Balance: -120.5, CreditLimit: 1000},
			{ID: 11, TenantID: 1, Code: "R-11", Name: "Kiosk Two", Phone: "+260977", Status: retailers.StatusSuspended},
			{ID: 12, TenantID: 2, Code: "R-12", Name: "Elsewhere", Status: retailers.StatusActive},
		}},
		Queue: queue,
	})
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo, queue
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse("Hi", "Dear {{.RetailerName}}, balance {{.Balance}}")
	require.NoError(t, err)

	_, err = Parse("Hi", "Dear {{.Owner}}")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = Parse("Hi {{", "body")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = Parse("Hi", "  ")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestRenderUsesRetailerFields(t *testing.T) {
	c, err := Parse("Statement for {{.RetailerCode}}", "{{.RetailerName}} owes {{.Balance}} of {{.CreditLimit}}")
	require.NoError(t, err)
	subject, body, err := c.Render(FieldsFor(retailers.Retailer{Code: "R-1", Name: "Shop", Balance: -50, CreditLimit: 500}))
	require.NoError(t, err)
	assert.Equal(t, "Statement for R-1", subject)
	assert.Equal(t, "Shop owes -50.00 of 500.00", body)
}

func TestCreateTemplate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tmpl, err := svc.CreateTemplate(ctx, admin, TemplateInput{
		Name: " Reminder ", Channels: []Channel{ChannelEmail, ChannelEmail, ChannelSMS}, Body: "Pay {{.Balance}}",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reminder", tmpl.Name)
	assert.Equal(t, []Channel{ChannelEmail, ChannelSMS}, tmpl.Channels)

	_, err = svc.CreateTemplate(ctx, admin, TemplateInput{Name: "Reminder", Channels: []Channel{ChannelEmail}, Body: "x"})
	assert.ErrorIs(t, err, ErrDuplicateTemplate)

	_, err = svc.CreateTemplate(ctx, admin, TemplateInput{Name: "Bad", Channels: []Channel{ChannelEmail}, Body: "{{.Nope}}"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	sms, err := svc.Templates(ctx, 1, ChannelSMS)
	require.NoError(t, err)
	assert.Len(t, sms, 1)
	push, err := svc.Templates(ctx, 1, ChannelPush)
	require.NoError(t, err)
	assert.Empty(t, push)
}

func TestBroadcastFansOutPerRecipientAndChannel(t *testing.T) {
	svc, repo, queue := newTestService()
	msg, err := svc.Broadcast(context.Background(), admin, BroadcastInput{
		Subject:  "Hello {{.RetailerCode}}",
		Body:     "Dear {{.RetailerName}}",
		Channels: []Channel{ChannelInApp, ChannelEmail},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, msg.RecipientCount)
	assert.Equal(t, MessageQueued, msg.Status)
	assert.Equal(t, 4, msg.Delivery.Pending)
	require.Len(t, repo.notifications, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, queue.ids)
	assert.Equal(t, "Hello R-10", repo.notifications[0].Subject)
	assert.Equal(t, "one@example.com", repo.notifications[1].Recipient)
	assert.Equal(t, "Dear Kiosk Two", repo.notifications[2].Body)
}

func TestBroadcastAudienceAndTemplate(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Broadcast(ctx, admin, BroadcastInput{
		Body: "x", Channels: []Channel{ChannelSMS},
		Audience: retailers.Audience{RetailerIDs: []int64{12}},
	})
	assert.ErrorIs(t, err, ErrNoRecipients, "other tenants are never recipients")

	_, err = svc.Broadcast(ctx, admin, BroadcastInput{Channels: []Channel{ChannelSMS}})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Broadcast(ctx, admin, BroadcastInput{TemplateID: ptr(int64(9)), Channels: []Channel{ChannelSMS}})
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	tmpl, err := svc.CreateTemplate(ctx, admin, TemplateInput{Name: "Suspended", Channels: []Channel{ChannelSMS}, Subject: "Account", Body: "{{.RetailerName}} is suspended"})
	require.NoError(t, err)
	msg, err := svc.Broadcast(ctx, admin, BroadcastInput{
		TemplateID: &tmpl.ID, Channels: []Channel{ChannelSMS},
		Audience: retailers.Audience{Statuses: []retailers.Status{retailers.StatusSuspended}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, msg.RecipientCount)
	assert.Equal(t, tmpl.ID, *msg.TemplateID)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, "Kiosk Two is suspended", repo.notifications[0].Body)
	assert.Equal(t, "+260977", repo.notifications[0].Recipient)
}

func TestBroadcastSurvivesQueueOutage(t *testing.T) {
	svc, repo, queue := newTestService()
	queue.err = errors.New("redis down")
	msg, err := svc.Broadcast(context.Background(), admin, BroadcastInput{Body: "x", Channels: []Channel{ChannelInApp}})
	require.NoError(t, err)
	assert.Equal(t, 2, msg.RecipientCount)
	assert.Len(t, repo.notifications, 2)
}

func TestSendAndInbox(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Send(ctx, admin, SendInput{RetailerID: 12, Body: "x", Channels: []Channel{ChannelInApp}})
	assert.ErrorIs(t, err, retailers.ErrNotFound)

	sent, err := svc.Send(ctx, admin, SendInput{RetailerID: 10, Body: "Balance {{.Balance}}", Channels: []Channel{ChannelInApp, ChannelEmail}})
	require.NoError(t, err)
	require.Len(t, sent.Notifications, 2)
	assert.Nil(t, sent.Notifications[0].MessageID)
	assert.Equal(t, "Balance -120.50", sent.Notifications[0].Body)
	assert.Empty(t, repo.messages)

	inbox, err := svc.Inbox(ctx, retailer, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, ChannelInApp, inbox.Notifications[0].Channel)

	read, err := svc.MarkRead(ctx, retailer, inbox.Notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, NotificationRead, read.Status)
	require.NotNil(t, read.ReadAt)

	unread, err := svc.Inbox(ctx, retailer, true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, unread.Notifications)

	_, err = svc.MarkRead(ctx, retailer, sent.Notifications[1].ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound, "email notifications are not in the inbox")

	other := retailer
	other.RetailerID = 11
	_, err = svc.MarkRead(ctx, other, inbox.Notifications[0].ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	_, err = svc.Inbox(ctx, admin, false, 1, 20)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestMessagesIncludeDeliveryCounts(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Broadcast(ctx, admin, BroadcastInput{Body: "x", Channels: []Channel{ChannelInApp}})
	require.NoError(t, err)
	repo.notifications[0].Status = NotificationSent

	result, err := svc.Messages(ctx, 1, MessageFilter{Page: 1, Limit: 500})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, DeliveryCounts{Pending: 1, Sent: 1}, result.Messages[0].Delivery)
	assert.Equal(t, shared.DefaultPerPage, result.Pagination.PerPage)
}

func withActor(actor shared.Actor, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func TestHandlerBroadcastValidation(t *testing.T) {
	svc, _, _ := newTestService()
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	h := withActor(admin, r)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"body":"hi","channels":["fax"]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"body":"hi","channels":["sms"],"audience":{"retailer_ids":[999]}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"body":"hi {{.RetailerName}}","channels":["in_app"]}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var msg Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, 2, msg.RecipientCount)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func ptr[T any](v T) *T { return &v }
