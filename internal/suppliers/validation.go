package suppliers

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
)

const (
	defaultPaymentTerms = 30
	maxBulkIDs          = 500
	// MaxExportRows caps CSV exports.
	MaxExportRows = 10000
)

// Input is the create/update payload.
type Input struct {
	Code           string  `json:"code" validate:"required,max=32"`
	Name           string  `json:"name" validate:"required,max=200"`
	ContactName    string  `json:"contact_name" validate:"max=200"`
	Email          string  `json:"email" validate:"omitempty,email"`
	Phone          string  `json:"phone" validate:"max=50"`
	Address        string  `json:"address" validate:"max=500"`
	City           string  `json:"city" validate:"max=100"`
	Category       string  `json:"category" validate:"max=100"`
	Status         Status  `json:"status" validate:"omitempty,oneof=active inactive"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
	PaymentTerms   *int    `json:"payment_terms" validate:"omitempty,gte=0,lte=365"`
	Notes          string  `json:"notes" validate:"max=2000"`
}

// BulkUpdateInput is the bulk-update payload.
type BulkUpdateInput struct {
	IDs            []int64  `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Status         *Status  `json:"status" validate:"omitempty,oneof=active inactive"`
	Category       *string  `json:"category" validate:"omitempty,max=100"`
	CommissionRate *float64 `json:"commission_rate" validate:"omitempty,gte=0,lte=100"`
}

func (in Input) toSupplier() Supplier {
	terms := defaultPaymentTerms
	if in.PaymentTerms != nil {
		terms = *in.PaymentTerms
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	return Supplier{
		Code:           strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:           strings.TrimSpace(in.Name),
		ContactName:    strings.TrimSpace(in.ContactName),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		City:           strings.TrimSpace(in.City),
		Category:       strings.TrimSpace(in.Category),
		Status:         status,
		CommissionRate: shared.RoundCents(in.CommissionRate),
		PaymentTerms:   terms,
		Notes:          in.Notes,
	}
}

func (s *Service) validate(sup Supplier) error {
	if sup.Code == "" {
		return fmt.Errorf("%w: code is required", shared.ErrValidation)
	}
	if sup.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	return nil
}

func (in BulkUpdateInput) toChange() (BulkChange, error) {
	if in.Status == nil && in.Category == nil && in.CommissionRate == nil {
		return BulkChange{}, fmt.Errorf("%w: at least one of status, category or commission_rate is required", shared.ErrValidation)
	}
	if len(in.IDs) == 0 || len(in.IDs) > maxBulkIDs {
		return BulkChange{}, fmt.Errorf("%w: ids must contain between 1 and %d entries", shared.ErrValidation, maxBulkIDs)
	}
	seen := make(map[int64]struct{}, len(in.IDs))
	ids := make([]int64, 0, len(in.IDs))
	for _, id := range in.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	change := BulkChange{IDs: ids, Status: in.Status, CommissionRate: in.CommissionRate}
	if in.Category != nil {
		c := strings.TrimSpace(*in.Category)
		change.Category = &c
	}
	return change, nil
}
