// Package inventory tracks on-hand stock per product variant. It is the
// downstream consumer of the stock deltas goods receiving emits; nothing in
// here decides when stock moves, it only records that it did.
package inventory

import (
	"errors"
	"time"
)

// Movement is one recorded stock change, always tied to the document that
// caused it.
type Movement struct {
	ID        int64     `json:"id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Delta     int       `json:"delta"`
	Ref       string    `json:"ref"`
	Note      string    `json:"note,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}

// Balance is the current on-hand quantity for a variant.
type Balance struct {
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNegativeStock triggered when a movement would drive quantity below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero delta.
	ErrInvalidQuantity = errors.New("inventory: delta must be non zero")
)
