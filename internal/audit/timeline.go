// Package audit exposes the tenant audit trail written by shared.AuditLogger.
package audit

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 50
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// ErrInvalidRange is returned for inverted or oversized date windows.
var ErrInvalidRange = fmt.Errorf("%w: audit range must be ordered and at most 90 days", shared.ErrValidation)

// TimelineFilters narrows the audit trail. To is inclusive by day.
type TimelineFilters struct {
	TenantID int64
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta"`
}

// PagingInfo carries look-ahead pagination.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
