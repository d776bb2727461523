package suppliers

import (
	"time"
)

// Status of a supplier.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"-"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	ContactName    string    `json:"contact_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	Category       string    `json:"category"`
	Status         Status    `json:"status"`
	CommissionRate float64   `json:"commission_rate"`
	PaymentTerms   int       `json:"payment_terms"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListFilter narrows supplier listings. Limit 0 means unbounded.
type ListFilter struct {
	Search   string
	Status   Status
	Category string
	Page     int
	Limit    int
	SortBy   string
	Desc     bool
}

// BulkChange is applied to every selected supplier. Nil fields are untouched.
type BulkChange struct {
	IDs            []int64
	Status         *Status
	Category       *string
	CommissionRate *float64
}

// DeleteResult tells the caller what Delete actually did.
type DeleteResult struct {
	Deleted     bool `json:"deleted"`
	Deactivated bool `json:"deactivated"`
}
