package purchase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karibu-erp/karibu-erp/internal/money"
)

// costPriceFallbackFactor prices a variant with no recorded cost at 70% of
// its list price instead of silently dropping the line.
var costPriceFallbackFactor = decimal.RequireFromString("0.7")

// ProductRef is the catalog snapshot needed to add a product to the cart.
type ProductRef struct {
	ID        string
	Name      string
	Category  string
	ListPrice decimal.Decimal
}

// VariantRef identifies the concrete variant being purchased.
type VariantRef struct {
	ID            string
	Name          string
	SKU           string
	CostPrice     decimal.Decimal
	StockQuantity int
}

// CartItem is a working, pre-commit line. Its line total is always derived
// from unit cost and quantity, never stored independently.
type CartItem struct {
	ID           string      `json:"id"`
	ProductID    string      `json:"product_id"`
	VariantID    string      `json:"variant_id"`
	Name         string      `json:"name"`
	VariantName  string      `json:"variant_name,omitempty"`
	SKU          string      `json:"sku"`
	UnitCost     money.Money `json:"unit_cost"`
	Quantity     int         `json:"quantity"`
	CurrentStock int         `json:"current_stock"`
	Category     string      `json:"category,omitempty"`
}

// LineTotal is unit cost times quantity, rounded to the currency minor unit.
func (i CartItem) LineTotal() money.Money {
	return money.Scale(i.UnitCost, decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the working state of an order being assembled. Currency is a
// cart-level attribute; lines never carry mixed currencies.
type Cart struct {
	Currency string     `json:"currency"`
	Items    []CartItem `json:"items"`
}

// NewCart builds an empty cart priced in the given currency.
func NewCart(currency string) *Cart {
	return &Cart{Currency: currency}
}

// AddItem merges the product/variant pair into the cart. An existing line
// with the same (product, variant) key gains quantity instead of a duplicate
// line appearing.
func (c *Cart) AddItem(product ProductRef, variant VariantRef, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for idx := range c.Items {
		if c.Items[idx].ProductID == product.ID && c.Items[idx].VariantID == variant.ID {
			c.Items[idx].Quantity += qty
			return nil
		}
	}
	unitCost := variant.CostPrice
	if unitCost.IsZero() {
		unitCost = product.ListPrice.Mul(costPriceFallbackFactor)
	}
	c.Items = append(c.Items, CartItem{
		ID:           uuid.NewString(),
		ProductID:    product.ID,
		VariantID:    variant.ID,
		Name:         product.Name,
		VariantName:  variant.Name,
		SKU:          variant.SKU,
		UnitCost:     money.New(unitCost, c.Currency),
		Quantity:     qty,
		CurrentStock: variant.StockQuantity,
		Category:     product.Category,
	})
	return nil
}

// AddLine merges a pre-priced line into the cart, used when rebuilding a
// cart from a submitted payload or a draft. The same (product, variant) merge
// rule as AddItem applies.
func (c *Cart) AddLine(item CartItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.UnitCost.IsNegative() {
		return ErrNegativePrice
	}
	for idx := range c.Items {
		if c.Items[idx].ProductID == item.ProductID && c.Items[idx].VariantID == item.VariantID {
			c.Items[idx].Quantity += item.Quantity
			return nil
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UnitCost.Currency = c.Currency
	c.Items = append(c.Items, item)
	return nil
}

// UpdateQuantity changes a line's quantity. Zero or less removes the line;
// this is the removal path quantity edits go through.
func (c *Cart) UpdateQuantity(itemID string, qty int) error {
	idx := c.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return nil
	}
	c.Items[idx].Quantity = qty
	return nil
}

// UpdateCostPrice replaces a line's unit cost. Negative prices are rejected.
func (c *Cart) UpdateCostPrice(itemID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativePrice
	}
	idx := c.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items[idx].UnitCost = money.New(price, c.Currency)
	return nil
}

// RemoveItem drops a line from the cart.
func (c *Cart) RemoveItem(itemID string) error {
	idx := c.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return nil
}

// Clear empties the cart. The confirmation signal comes from the caller; the
// engine never prompts.
func (c *Cart) Clear(confirmed bool) error {
	if !confirmed {
		return ErrClearNotConfirmed
	}
	c.Items = nil
	return nil
}

// Subtotal sums every line total exactly.
func (c *Cart) Subtotal() (money.Money, error) {
	total := money.Zero(c.Currency)
	for _, item := range c.Items {
		line := item.LineTotal()
		if line.Currency != c.Currency {
			return money.Money{}, fmt.Errorf("%w: line %s carries %s in a %s cart",
				money.ErrCurrencyMismatch, item.ID, line.Currency, c.Currency)
		}
		var err error
		total, err = money.Add(total, line)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.Items)
}

// Clone returns a deep copy, used when snapshotting to a draft.
func (c *Cart) Clone() *Cart {
	out := &Cart{Currency: c.Currency, Items: make([]CartItem, len(c.Items))}
	copy(out.Items, c.Items)
	return out
}

func (c *Cart) indexOf(itemID string) int {
	for idx := range c.Items {
		if c.Items[idx].ID == itemID {
			return idx
		}
	}
	return -1
}
