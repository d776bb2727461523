package retailers

import "time"

// Status of a retailer account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Retailer is a storefront customer. A negative balance is money owed.
type Retailer struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"-"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	OwnerName   string    `json:"owner_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	City        string    `json:"city"`
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	CreditLimit float64   `json:"credit_limit"`
	Balance     float64   `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is a retailer with its derived credit figures.
type View struct {
	Retailer
	Credit Credit `json:"credit"`
}

// ListFilter narrows retailer listings.
type ListFilter struct {
	Search string
	Status Status
	City   string
	Tier   Tier
	Page   int
	Limit  int
	SortBy string
	Desc   bool
}

// Audience selects broadcast recipients. Empty fields match everything.
type Audience struct {
	Statuses    []Status `json:"statuses,omitempty" validate:"omitempty,dive,oneof=active suspended inactive"`
	Cities      []string `json:"cities,omitempty"`
	Tiers       []Tier   `json:"tiers,omitempty" validate:"omitempty,dive,oneof=good low medium high over"`
	RetailerIDs []int64  `json:"retailer_ids,omitempty" validate:"omitempty,dive,gt=0"`
}

// Portfolio aggregates credit exposure across a tenant's retailers.
type Portfolio struct {
	RetailerCount    int          `json:"retailer_count"`
	TotalCreditLimit float64      `json:"total_credit_limit"`
	TotalOutstanding float64      `json:"total_outstanding"`
	Utilization      float64      `json:"utilization"`
	ByTier           map[Tier]int `json:"by_tier"`
}
