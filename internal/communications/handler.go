package communications

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-b2b/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

// Handler serves the admin communications endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/messages", h.Messages)
	r.Get("/templates", h.Templates)
	r.Post("/templates", h.CreateTemplate)
	r.Post("/broadcast", h.Broadcast)
	r.Post("/notifications", h.Send)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.PageFromQuery(q)
	filter := MessageFilter{Page: page.Page, Limit: page.Limit}
	if raw := q.Get("status"); raw != "" {
		switch s := MessageStatus(raw); s {
		case MessageQueued, MessageSending, MessageCompleted, MessagePartiallyFailed:
			filter.Status = s
		default:
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid status filter")
			return
		}
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.Messages(r.Context(), actor.TenantID, filter)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list messages failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	channel := Channel(r.URL.Query().Get("channel"))
	switch channel {
	case "", ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid channel filter")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.Templates(r.Context(), actor.TenantID, channel)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list templates failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in TemplateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	t, err := h.service.CreateTemplate(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create template failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var in BroadcastInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	msg, err := h.service.Broadcast(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "broadcast failed", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, msg)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var in SendInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	out, err := h.service.Send(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "send notification failed", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, out)
}

// InboxHandler serves the retailer's in-app notifications.
type InboxHandler struct {
	logger  *slog.Logger
	service *Service
}

func NewInboxHandler(logger *slog.Logger, service *Service) *InboxHandler {
	return &InboxHandler{logger: logger, service: service}
}

func (h *InboxHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/read", h.MarkRead)
}

func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.PageFromQuery(q)
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.Inbox(r.Context(), actor, q.Get("unread") == "true", page.Page, page.Limit)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list inbox failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid notification ID")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	n, err := h.service.MarkRead(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "mark notification read failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}
