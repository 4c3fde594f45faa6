// Package purchase implements the purchase order computation and lifecycle
// engine: cart aggregation, pre-commit validation, commit with a locked
// exchange rate, and the status workflow through receiving.
package purchase

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/karibu-erp/karibu-erp/internal/fx"
	"github.com/karibu-erp/karibu-erp/internal/money"
)

// OrderStatus enumerates the purchase order lifecycle.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "DRAFT"
	StatusSent      OrderStatus = "SENT"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipping  OrderStatus = "SHIPPING"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusReceived  OrderStatus = "RECEIVED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// transitions is the forward transition table. Cancellation is handled by
// CanCancel since it fans in from several states.
var transitions = map[OrderStatus][]OrderStatus{
	StatusDraft:     {StatusSent, StatusConfirmed, StatusCancelled},
	StatusSent:      {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipping, StatusReceived, StatusCancelled},
	StatusShipping:  {StatusShipped, StatusReceived},
	StatusShipped:   {StatusReceived},
	StatusReceived:  {},
	StatusCancelled: {},
}

// IsValid checks the status is one of the enumerated values.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether advancing to the target status is allowed.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CanEdit reports whether item quantities and prices may still change.
func (s OrderStatus) CanEdit() bool {
	return s == StatusDraft
}

// CanCancel reports whether the order may still be cancelled. Once shipping
// has begun the order must be received or otherwise reconciled instead, so
// in-transit goods are never orphaned.
func (s OrderStatus) CanCancel() bool {
	return s == StatusDraft || s == StatusSent || s == StatusConfirmed
}

// CanAssignShipping reports whether carrier metadata may be attached.
func (s OrderStatus) CanAssignShipping() bool {
	return s == StatusDraft || s == StatusSent || s == StatusConfirmed
}

// CanReceive reports whether goods may be recorded against the order.
func (s OrderStatus) CanReceive() bool {
	return s == StatusConfirmed || s == StatusShipping || s == StatusShipped
}

// IsTerminal reports whether no further transitions are permitted.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// OrderItem is a committed purchase order line. Quantity and cost become
// read-only once the order leaves DRAFT; ReceivedQuantity is the only field
// advanced by receiving.
type OrderItem struct {
	ID               int64       `json:"id"`
	OrderID          int64       `json:"order_id"`
	ProductID        string      `json:"product_id"`
	VariantID        string      `json:"variant_id"`
	Quantity         int         `json:"quantity"`
	CostPrice        money.Money `json:"cost_price"`
	ReceivedQuantity int         `json:"received_quantity"`
	MinimumOrderQty  int         `json:"minimum_order_qty,omitempty"`
	Notes            string      `json:"notes,omitempty"`
}

// Remaining is the quantity still expected from the supplier.
func (i OrderItem) Remaining() int {
	return i.Quantity - i.ReceivedQuantity
}

// PurchaseOrder is the committed, immutable snapshot of a cart. Totals are
// recomputed from items, never edited independently.
type PurchaseOrder struct {
	ID               int64           `json:"id"`
	OrderNumber      string          `json:"order_number"`
	SupplierID       int64           `json:"supplier_id"`
	Currency         string          `json:"currency"`
	BaseCurrency     string          `json:"base_currency"`
	ExchangeRate     fx.RateInfo     `json:"exchange_rate"`
	Items            []OrderItem     `json:"items"`
	TotalAmount      money.Money     `json:"total_amount"`
	TotalAmountBase  money.Money     `json:"total_amount_base_currency"`
	Status           OrderStatus     `json:"status"`
	PaymentTerms     string          `json:"payment_terms"`
	ExpectedDelivery *time.Time      `json:"expected_delivery,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Shipping         json.RawMessage `json:"shipping_info,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FullyReceived reports whether every line has reached its ordered quantity.
// Completion is always computed from the items, never from a flag.
func (o PurchaseOrder) FullyReceived() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.ReceivedQuantity < item.Quantity {
			return false
		}
	}
	return true
}

var (
	// ErrNotFound indicates the order or draft does not exist.
	ErrNotFound = errors.New("purchase: not found")
	// ErrItemNotFound indicates a line id is not on the order or cart.
	ErrItemNotFound = errors.New("purchase: line not found")
	// ErrInvalidQuantity indicates a quantity at or below zero.
	ErrInvalidQuantity = errors.New("purchase: quantity must be greater than zero")
	// ErrNegativePrice indicates a cost price below zero.
	ErrNegativePrice = errors.New("purchase: cost price must not be negative")
	// ErrClearNotConfirmed occurs when a cart clear arrives without the
	// caller's explicit confirmation signal.
	ErrClearNotConfirmed = errors.New("purchase: cart clear requires confirmation")
	// ErrShippingLocked occurs when shipping metadata is assigned after
	// shipping has begun.
	ErrShippingLocked = errors.New("purchase: shipping info is locked once shipping has begun")
	// ErrOrderLocked rejects item edits once the order has left DRAFT.
	ErrOrderLocked = errors.New("purchase: order items are read-only outside draft")
	// ErrDuplicateOrderNumber indicates the generated order number collided.
	ErrDuplicateOrderNumber = errors.New("purchase: duplicate order number")
)

// TransitionError reports a lifecycle move the transition table forbids. The
// order is always returned unmodified alongside this error.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchase: invalid transition from %s to %s", e.From, e.To)
}

// OverReceiptError reports a receipt exceeding the remaining quantity of a
// line. Excess is rejected, never silently truncated.
type OverReceiptError struct {
	ItemID    int64
	Requested int
	Remaining int
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("purchase: over-receipt on line %d: requested %d, remaining %d", e.ItemID, e.Requested, e.Remaining)
}

// StockDelta is the inventory movement produced by one receipt line. The
// engine emits deltas; it never mutates stock itself.
type StockDelta struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Delta     int    `json:"delta"`
}

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in one pass so a caller can
// present all problems at once.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("purchase: validation failed with %d violation(s)", len(e.Violations))
}
