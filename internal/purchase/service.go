package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karibu-erp/karibu-erp/internal/fx"
	"github.com/karibu-erp/karibu-erp/internal/money"
	"github.com/karibu-erp/karibu-erp/internal/shared"
	"github.com/karibu-erp/karibu-erp/internal/supplier"
)

// RepositoryPort describes repository operations used by Service. Status is
// always re-read through the store before gating a transition; the service
// never trusts a cached copy.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error)
}

// InventoryPort receives the stock deltas emitted by receiving. The engine
// itself never mutates inventory.
type InventoryPort interface {
	CurrentStock(ctx context.Context, productID, variantID string) (int, error)
	ApplyDeltas(ctx context.Context, ref string, deltas []StockDelta) error
}

// SupplierPort exposes the supplier directory lookup used at commit time.
type SupplierPort interface {
	Get(ctx context.Context, id int64) (supplier.Supplier, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against duplicate submissions of the same commit.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key string) error
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
}

// ServiceConfig tunes workflow behaviour.
type ServiceConfig struct {
	// BaseCurrency overrides the process-wide home currency.
	BaseCurrency string
	// SkipSentStep approves orders straight to CONFIRMED, for tenants
	// without a separate send-to-supplier step.
	SkipSentStep bool
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	suppliers   SupplierPort
	audit       AuditPort
	idempotency IdempotencyPort
	cfg         ServiceConfig
}

// NewService constructs the lifecycle service. audit and idempotency may be
// nil; the corresponding guards are then skipped.
func NewService(repo RepositoryPort, inventory InventoryPort, suppliers SupplierPort, audit AuditPort, idempotency IdempotencyPort, cfg ServiceConfig) *Service {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = money.DefaultBaseCurrency
	}
	return &Service{repo: repo, inventory: inventory, suppliers: suppliers, audit: audit, idempotency: idempotency, cfg: cfg}
}

// BaseCurrency returns the configured home-reporting currency.
func (s *Service) BaseCurrency() string {
	return s.cfg.BaseCurrency
}

// CommitInput describes the submission payload accompanying a cart.
type CommitInput struct {
	SupplierID       int64
	PaymentTerms     string
	ExpectedDelivery *time.Time
	Notes            string
	// ExchangeRateText is the user-entered declaration. When empty the
	// supplier record's declaration is consulted instead.
	ExchangeRateText string
	// IdempotencyKey deduplicates retried submissions when set.
	IdempotencyKey string
	ActorID        int64
}

// Commit turns a validated cart into an immutable purchase order in DRAFT,
// locking the exchange rate at this instant.
func (s *Service) Commit(ctx context.Context, cart *Cart, input CommitInput) (PurchaseOrder, error) {
	if violations := ValidateForCommit(cart, input.SupplierID, input.PaymentTerms); len(violations) > 0 {
		return PurchaseOrder{}, &ValidationError{Violations: violations}
	}
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "purchase"); err != nil {
			return PurchaseOrder{}, err
		}
	}
	// Once the key is claimed, a failed commit must release it so the
	// caller can retry with the same key.
	failCommit := func(err error) (PurchaseOrder, error) {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Release(ctx, input.IdempotencyKey)
		}
		return PurchaseOrder{}, err
	}

	sup, err := s.suppliers.Get(ctx, input.SupplierID)
	if err != nil {
		return failCommit(err)
	}

	rateInfo := s.lockRate(cart.Currency, input.ExchangeRateText, sup.ExchangeRateText)

	subtotal, err := cart.Subtotal()
	if err != nil {
		return failCommit(err)
	}
	now := time.Now()
	order := PurchaseOrder{
		OrderNumber:      generateNumber("PO"),
		SupplierID:       input.SupplierID,
		Currency:         cart.Currency,
		BaseCurrency:     s.cfg.BaseCurrency,
		ExchangeRate:     rateInfo,
		TotalAmount:      subtotal,
		TotalAmountBase:  money.Convert(subtotal, rateInfo.Rate, s.cfg.BaseCurrency),
		Status:           StatusDraft,
		PaymentTerms:     input.PaymentTerms,
		ExpectedDelivery: input.ExpectedDelivery,
		Notes:            input.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, line := range cart.Items {
		order.Items = append(order.Items, OrderItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			CostPrice: line.UnitCost,
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for idx := range order.Items {
			order.Items[idx].OrderID = orderID
			itemID, err := tx.InsertItem(ctx, order.Items[idx])
			if err != nil {
				return err
			}
			order.Items[idx].ID = itemID
		}
		return nil
	})
	if err != nil {
		return failCommit(err)
	}
	s.recordAudit(ctx, input.ActorID, "PO_COMMIT", order.ID, map[string]any{
		"number":      order.OrderNumber,
		"total":       order.TotalAmount.String(),
		"rate_source": string(rateInfo.Source),
	})
	return order, nil
}

// lockRate resolves the exchange rate to the base currency, tagging its
// provenance. Resolution failure against the base currency falls back to 1.0
// so an unparseable declaration never blocks recording an order.
func (s *Service) lockRate(orderCurrency, manualText, supplierText string) fx.RateInfo {
	text, source := strings.TrimSpace(manualText), fx.SourceManual
	if text == "" {
		text, source = strings.TrimSpace(supplierText), fx.SourceSupplier
	}
	rate, ok := fx.Resolve(text, orderCurrency, s.cfg.BaseCurrency)
	if !ok {
		rate, source = decimal.NewFromInt(1), fx.SourceDefault
	} else if text == "" {
		// from == to resolves without any declaration to credit.
		source = fx.SourceDefault
	}
	return fx.RateInfo{
		Rate:         rate,
		FromCurrency: orderCurrency,
		ToCurrency:   s.cfg.BaseCurrency,
		Source:       source,
		ResolvedAt:   time.Now(),
	}
}

// Approve advances a draft order into the supplier-facing flow: SENT by
// default, or straight to CONFIRMED when the workflow skips that step.
func (s *Service) Approve(ctx context.Context, orderID int64, actorID int64) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	target := StatusSent
	if s.cfg.SkipSentStep {
		target = StatusConfirmed
	}
	if !order.Status.CanTransition(target) {
		return order, &TransitionError{From: order.Status, To: target}
	}
	var violations []Violation
	for idx, item := range order.Items {
		if item.Quantity <= 0 {
			violations = append(violations, Violation{Field: fmt.Sprintf("items[%d].quantity", idx), Message: "quantity must be greater than zero"})
		}
		if item.CostPrice.IsNegative() {
			violations = append(violations, Violation{Field: fmt.Sprintf("items[%d].cost_price", idx), Message: "cost price must not be negative"})
		}
	}
	if len(violations) > 0 {
		return order, &ValidationError{Violations: violations}
	}
	return s.advance(ctx, order, target, actorID, "PO_APPROVE")
}

// Confirm marks a sent order as confirmed by the supplier.
func (s *Service) Confirm(ctx context.Context, orderID int64, actorID int64) (PurchaseOrder, error) {
	return s.transitionFromStore(ctx, orderID, StatusConfirmed, actorID, "PO_CONFIRM")
}

// Ship moves a confirmed order into transit.
func (s *Service) Ship(ctx context.Context, orderID int64, actorID int64) (PurchaseOrder, error) {
	return s.transitionFromStore(ctx, orderID, StatusShipping, actorID, "PO_SHIP")
}

// MarkShipped records that the carrier reported delivery hand-off.
func (s *Service) MarkShipped(ctx context.Context, orderID int64, actorID int64) (PurchaseOrder, error) {
	return s.transitionFromStore(ctx, orderID, StatusShipped, actorID, "PO_SHIPPED")
}

// Cancel terminates an order that has not begun shipping.
func (s *Service) Cancel(ctx context.Context, orderID int64, actorID int64) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !order.Status.CanCancel() {
		return order, &TransitionError{From: order.Status, To: StatusCancelled}
	}
	return s.advance(ctx, order, StatusCancelled, actorID, "PO_CANCEL")
}

// AssignShipping attaches opaque carrier metadata. It preserves status and is
// only permitted before shipping begins. The engine checks existence of the
// payload, nothing more.
func (s *Service) AssignShipping(ctx context.Context, orderID int64, info json.RawMessage, actorID int64) (PurchaseOrder, error) {
	if len(info) == 0 {
		return PurchaseOrder{}, &ValidationError{Violations: []Violation{{Field: "shipping_info", Message: "shipping info is required"}}}
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !order.Status.CanAssignShipping() {
		return order, ErrShippingLocked
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetShippingInfo(ctx, orderID, info)
	})
	if err != nil {
		return order, err
	}
	order.Shipping = info
	order.UpdatedAt = time.Now()
	s.recordAudit(ctx, actorID, "PO_ASSIGN_SHIPPING", orderID, map[string]any{"number": order.OrderNumber})
	return order, nil
}

// ReceiptInput records delivered units against one order line.
type ReceiptInput struct {
	ItemID   int64
	Quantity int
}

// Receive applies receipts to an order. The operation is all-or-nothing: any
// invalid receipt rejects the whole batch before a single quantity moves.
// When every line reaches its ordered quantity the order flips to RECEIVED;
// a partial receipt leaves the status untouched, modelling staggered
// deliveries. Each applied receipt emits a stock delta to the inventory
// collaborator.
func (s *Service) Receive(ctx context.Context, orderID int64, receipts []ReceiptInput, actorID int64) (PurchaseOrder, []StockDelta, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	if !order.Status.CanReceive() {
		return order, nil, &TransitionError{From: order.Status, To: StatusReceived}
	}
	if len(receipts) == 0 {
		return order, nil, &ValidationError{Violations: []Violation{{Field: "receipts", Message: "at least one receipt line is required"}}}
	}

	itemsByID := make(map[int64]*OrderItem, len(order.Items))
	for idx := range order.Items {
		itemsByID[order.Items[idx].ID] = &order.Items[idx]
	}

	// Guard pass: no mutation happens until every receipt is acceptable.
	pending := make(map[int64]int, len(receipts))
	for _, receipt := range receipts {
		if receipt.Quantity <= 0 {
			return order, nil, ErrInvalidQuantity
		}
		item, ok := itemsByID[receipt.ItemID]
		if !ok {
			return order, nil, ErrItemNotFound
		}
		requested := pending[receipt.ItemID] + receipt.Quantity
		if requested > item.Remaining() {
			return order, nil, &OverReceiptError{
				ItemID:    receipt.ItemID,
				Requested: requested,
				Remaining: item.Remaining(),
			}
		}
		pending[receipt.ItemID] = requested
	}

	var deltas []StockDelta
	for itemID, qty := range pending {
		item := itemsByID[itemID]
		item.ReceivedQuantity += qty
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, VariantID: item.VariantID, Delta: qty})
	}
	completed := order.FullyReceived()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for itemID := range pending {
			if err := tx.UpdateItemReceived(ctx, itemID, itemsByID[itemID].ReceivedQuantity); err != nil {
				return err
			}
		}
		if completed {
			if err := tx.UpdateOrderStatus(ctx, orderID, StatusReceived); err != nil {
				return err
			}
		}
		if s.inventory != nil {
			if err := s.inventory.ApplyDeltas(ctx, order.OrderNumber, deltas); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Reload so the caller never sees the speculatively mutated copy.
		fresh, loadErr := s.repo.GetOrder(ctx, orderID)
		if loadErr == nil {
			order = fresh
		}
		return order, nil, err
	}
	if completed {
		order.Status = StatusReceived
	}
	order.UpdatedAt = time.Now()
	s.recordAudit(ctx, actorID, "PO_RECEIVE", orderID, map[string]any{
		"number":    order.OrderNumber,
		"lines":     len(deltas),
		"completed": completed,
	})
	return order, deltas, nil
}

// UpdateItemQuantity changes an ordered quantity while the order is still a
// draft, recomputing both totals under the locked rate. Orders past DRAFT
// are read-only.
func (s *Service) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int, actorID int64) (PurchaseOrder, error) {
	if quantity <= 0 {
		return PurchaseOrder{}, ErrInvalidQuantity
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !order.Status.CanEdit() {
		return order, ErrOrderLocked
	}
	idx := -1
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return order, ErrItemNotFound
	}
	order.Items[idx].Quantity = quantity

	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.CostPrice.Amount.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	order.TotalAmount = money.Money{Amount: subtotal, Currency: order.Currency}
	order.TotalAmountBase = money.Convert(order.TotalAmount, order.ExchangeRate.Rate, order.BaseCurrency)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}
		return tx.UpdateOrderTotals(ctx, orderID, order.TotalAmount, order.TotalAmountBase)
	})
	if err != nil {
		fresh, loadErr := s.repo.GetOrder(ctx, orderID)
		if loadErr == nil {
			order = fresh
		}
		return order, err
	}
	order.UpdatedAt = time.Now()
	s.recordAudit(ctx, actorID, "PO_EDIT_ITEM", orderID, map[string]any{
		"number":   order.OrderNumber,
		"item_id":  itemID,
		"quantity": quantity,
	})
	return order, nil
}

// CurrentStock reports the on-hand quantity for a product variant, used when
// assembling cart lines.
func (s *Service) CurrentStock(ctx context.Context, productID, variantID string) (int, error) {
	if s.inventory == nil {
		return 0, nil
	}
	return s.inventory.CurrentStock(ctx, productID, variantID)
}

// GetOrder fetches an order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListOrders returns a filtered page of orders with the total count.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// transitionFromStore re-reads current status and applies a single forward
// transition.
func (s *Service) transitionFromStore(ctx context.Context, orderID int64, to OrderStatus, actorID int64, action string) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !order.Status.CanTransition(to) {
		return order, &TransitionError{From: order.Status, To: to}
	}
	return s.advance(ctx, order, to, actorID, action)
}

func (s *Service) advance(ctx context.Context, order PurchaseOrder, to OrderStatus, actorID int64, action string) (PurchaseOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, order.ID, to)
	})
	if err != nil {
		return order, err
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	s.recordAudit(ctx, actorID, action, order.ID, map[string]any{"number": order.OrderNumber, "status": string(to)})
	return order, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
