package purchase

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karibu-erp/karibu-erp/internal/money"
)

// commitRequest is the JSON payload submitted when committing a cart.
type commitRequest struct {
	SupplierID       int64             `json:"supplier_id" validate:"required,gt=0"`
	Currency         string            `json:"currency" validate:"required,len=3"`
	PaymentTerms     string            `json:"payment_terms" validate:"required"`
	ExpectedDelivery *time.Time        `json:"expected_delivery,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	ExchangeRateText string            `json:"exchange_rate_text,omitempty"`
	Items            []commitItemInput `json:"items" validate:"required,min=1,dive"`
}

type commitItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitCost  string `json:"unit_cost" validate:"required"`
}

// toCart rebuilds a cart from the submitted lines. Cost strings are decimal
// text, never floats.
func (req commitRequest) toCart() (*Cart, error) {
	cart := NewCart(req.Currency)
	for _, line := range req.Items {
		cost, err := decimal.NewFromString(line.UnitCost)
		if err != nil {
			return nil, &ValidationError{Violations: []Violation{{Field: "items.unit_cost", Message: "unit cost must be a decimal number"}}}
		}
		item := CartItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitCost:  money.Money{Amount: cost, Currency: req.Currency},
		}
		if err := cart.AddLine(item); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type receiveRequest struct {
	Receipts []receiptInput `json:"receipts" validate:"required,min=1,dive"`
}

type receiptInput struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

type assignShippingRequest struct {
	Shipping json.RawMessage `json:"shipping" validate:"required"`
}

type orderResponse struct {
	ID               int64               `json:"id"`
	OrderNumber      string              `json:"order_number"`
	SupplierID       int64               `json:"supplier_id"`
	Currency         string              `json:"currency"`
	BaseCurrency     string              `json:"base_currency"`
	ExchangeRate     string              `json:"exchange_rate"`
	RateSource       string              `json:"rate_source"`
	TotalAmount      string              `json:"total_amount"`
	TotalAmountBase  string              `json:"total_amount_base"`
	Status           OrderStatus         `json:"status"`
	Editable         bool                `json:"editable"`
	Terminal         bool                `json:"terminal"`
	PaymentTerms     string              `json:"payment_terms,omitempty"`
	ExpectedDelivery *time.Time          `json:"expected_delivery,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	Shipping         json.RawMessage     `json:"shipping,omitempty"`
	FullyReceived    bool                `json:"fully_received"`
	Items            []orderItemResponse `json:"items,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID               int64  `json:"id"`
	ProductID        string `json:"product_id"`
	VariantID        string `json:"variant_id,omitempty"`
	Quantity         int    `json:"quantity"`
	CostPrice        string `json:"cost_price"`
	ReceivedQuantity int    `json:"received_quantity"`
	Remaining        int    `json:"remaining"`
	Notes            string `json:"notes,omitempty"`
}

func toOrderResponse(order PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		SupplierID:       order.SupplierID,
		Currency:         order.Currency,
		BaseCurrency:     order.BaseCurrency,
		ExchangeRate:     order.ExchangeRate.Rate.String(),
		RateSource:       string(order.ExchangeRate.Source),
		TotalAmount:      order.TotalAmount.Amount.String(),
		TotalAmountBase:  order.TotalAmountBase.Amount.String(),
		Status:           order.Status,
		Editable:         order.Status.CanEdit(),
		Terminal:         order.Status.IsTerminal(),
		PaymentTerms:     order.PaymentTerms,
		ExpectedDelivery: order.ExpectedDelivery,
		Notes:            order.Notes,
		Shipping:         order.Shipping,
		FullyReceived:    order.FullyReceived(),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			VariantID:        item.VariantID,
			Quantity:         item.Quantity,
			CostPrice:        item.CostPrice.Amount.String(),
			ReceivedQuantity: item.ReceivedQuantity,
			Remaining:        item.Remaining(),
			Notes:            item.Notes,
		})
	}
	return resp
}
