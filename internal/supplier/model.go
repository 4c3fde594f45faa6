// Package supplier provides the supplier directory consumed when a purchase
// order is assembled. A supplier may carry a default currency and a free-text
// exchange-rate declaration that seeds the working order state.
package supplier

import (
	"errors"
	"time"
)

// Supplier is a directory entry.
type Supplier struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	ContactPerson    string    `json:"contact_person,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty"`
	City             string    `json:"city,omitempty"`
	Country          string    `json:"country,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	ExchangeRateText string    `json:"exchange_rate_text,omitempty"`
	PaymentTerms     string    `json:"payment_terms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ErrNotFound indicates the supplier does not exist.
var ErrNotFound = errors.New("supplier: not found")

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("supplier: invalid input")
