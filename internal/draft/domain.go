// Package draft persists working cart state so an order being assembled
// survives navigation and restarts. Named drafts accumulate in Postgres;
// each editing session additionally owns a single autosave slot in Redis
// that expires on its own.
package draft

import (
	"errors"
	"time"

	"github.com/karibu-erp/karibu-erp/internal/purchase"
)

// Kind distinguishes deliberately saved drafts from autosave snapshots.
type Kind string

const (
	KindManual Kind = "manual"
	KindAuto   Kind = "auto"
)

// Draft is a snapshot of a cart plus the order header fields entered so far.
// Loading a draft replaces the working cart wholesale; it never merges.
type Draft struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Kind             Kind                `json:"kind"`
	Currency         string              `json:"currency"`
	Items            []purchase.CartItem `json:"items"`
	SupplierID       int64               `json:"supplier_id,omitempty"`
	PaymentTerms     string              `json:"payment_terms,omitempty"`
	ExpectedDelivery *time.Time          `json:"expected_delivery,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	ExchangeRateText string              `json:"exchange_rate_text,omitempty"`
	SavedAt          time.Time           `json:"saved_at"`
}

// RestoreCart rebuilds the working cart from the snapshot. Line identity and
// ordering are preserved exactly as saved.
func (d Draft) RestoreCart() *purchase.Cart {
	cart := purchase.NewCart(d.Currency)
	cart.Items = append([]purchase.CartItem(nil), d.Items...)
	return cart
}

// ErrNotFound indicates the draft or autosave slot does not exist.
var ErrNotFound = errors.New("draft: not found")
