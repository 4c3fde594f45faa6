package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karibu-erp/karibu-erp/internal/fx"
	"github.com/karibu-erp/karibu-erp/internal/money"
	"github.com/karibu-erp/karibu-erp/internal/shared"
	"github.com/karibu-erp/karibu-erp/internal/supplier"
)

type memoryOrderRepo struct {
	orders map[int64]PurchaseOrder
	nextID int64
	// commitErr simulates a transaction that fails at commit time.
	commitErr error
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

// deltaStageKey carries the staged inventory writes of an open transaction,
// mirroring how the pgx repositories share one transaction through ctx.
type deltaStageKey struct{}

type deltaStage struct {
	applies []func()
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[int64]PurchaseOrder)}
}

func (r *memoryOrderRepo) snapshot() map[int64]PurchaseOrder {
	snap := make(map[int64]PurchaseOrder, len(r.orders))
	for id, order := range r.orders {
		order.Items = append([]OrderItem(nil), order.Items...)
		snap[id] = order
	}
	return snap
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	stage := &deltaStage{}
	if err := fn(context.WithValue(ctx, deltaStageKey{}, stage), &memoryOrderTx{repo: r}); err != nil {
		r.orders = before
		return err
	}
	if r.commitErr != nil {
		r.orders = before
		return r.commitErr
	}
	for _, apply := range stage.applies {
		apply()
	}
	return nil
}

func (r *memoryOrderRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	order.Items = append([]OrderItem(nil), order.Items...)
	return order, nil
}

func (r *memoryOrderRepo) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	var orders []PurchaseOrder
	for _, order := range r.orders {
		if filters.Status != "" && string(order.Status) != filters.Status {
			continue
		}
		if filters.SupplierID != 0 && order.SupplierID != filters.SupplierID {
			continue
		}
		orders = append(orders, order)
	}
	return orders, len(orders), nil
}

func (tx *memoryOrderTx) allocID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryOrderTx) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	id := tx.allocID()
	order.ID = id
	order.Items = nil
	tx.repo.orders[id] = order
	return id, nil
}

func (tx *memoryOrderTx) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	order, ok := tx.repo.orders[item.OrderID]
	if !ok {
		return 0, ErrNotFound
	}
	item.ID = tx.allocID()
	order.Items = append(order.Items, item)
	tx.repo.orders[item.OrderID] = order
	return item.ID, nil
}

func (tx *memoryOrderTx) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	order, ok := tx.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	tx.repo.orders[orderID] = order
	return nil
}

func (tx *memoryOrderTx) UpdateItemReceived(ctx context.Context, itemID int64, received int) error {
	for orderID, order := range tx.repo.orders {
		for idx := range order.Items {
			if order.Items[idx].ID == itemID {
				order.Items[idx].ReceivedQuantity = received
				tx.repo.orders[orderID] = order
				return nil
			}
		}
	}
	return ErrItemNotFound
}

func (tx *memoryOrderTx) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	for orderID, order := range tx.repo.orders {
		for idx := range order.Items {
			if order.Items[idx].ID == itemID {
				order.Items[idx].Quantity = quantity
				tx.repo.orders[orderID] = order
				return nil
			}
		}
	}
	return ErrItemNotFound
}

func (tx *memoryOrderTx) UpdateOrderTotals(ctx context.Context, orderID int64, total, totalBase money.Money) error {
	order, ok := tx.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.TotalAmount = total
	order.TotalAmountBase = totalBase
	tx.repo.orders[orderID] = order
	return nil
}

func (tx *memoryOrderTx) SetShippingInfo(ctx context.Context, orderID int64, info json.RawMessage) error {
	order, ok := tx.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Shipping = info
	tx.repo.orders[orderID] = order
	return nil
}

type stubSupplierDir struct {
	suppliers map[int64]supplier.Supplier
}

func (s *stubSupplierDir) Get(ctx context.Context, id int64) (supplier.Supplier, error) {
	sup, ok := s.suppliers[id]
	if !ok {
		return supplier.Supplier{}, supplier.ErrNotFound
	}
	return sup, nil
}

type stubInventory struct {
	refs   []string
	deltas [][]StockDelta
	stock  map[string]int
}

func (s *stubInventory) CurrentStock(ctx context.Context, productID, variantID string) (int, error) {
	if qty, ok := s.stock[productID+"/"+variantID]; ok {
		return qty, nil
	}
	return 100, nil
}

func (s *stubInventory) ApplyDeltas(ctx context.Context, ref string, deltas []StockDelta) error {
	record := func() {
		s.refs = append(s.refs, ref)
		s.deltas = append(s.deltas, deltas)
	}
	// Inside an open order transaction the stock write only lands if
	// that transaction commits.
	if stage, ok := ctx.Value(deltaStageKey{}).(*deltaStage); ok {
		stage.applies = append(stage.applies, record)
		return nil
	}
	record()
	return nil
}

func newTestService(cfg ServiceConfig) (*Service, *memoryOrderRepo, *stubInventory) {
	repo := newMemoryOrderRepo()
	inv := &stubInventory{}
	suppliers := &stubSupplierDir{suppliers: map[int64]supplier.Supplier{
		7: {ID: 7, Name: "Kilimanjaro Traders", Currency: "USD", ExchangeRateText: "1 USD = 2600 TZS", PaymentTerms: "NET 30"},
		8: {ID: 8, Name: "Dar Wholesale", Currency: "TZS"},
	}}
	return NewService(repo, inv, suppliers, nil, nil, cfg), repo, inv
}

func usdCart(t *testing.T) *Cart {
	t.Helper()
	cart := NewCart("USD")
	require.NoError(t, cart.AddItem(
		ProductRef{ID: "prod-1", Name: "Sukari"},
		VariantRef{ID: "var-1", SKU: "SUK-1KG", CostPrice: dec("50")}, 2))
	return cart
}

func commitTestOrder(t *testing.T, svc *Service, cart *Cart) PurchaseOrder {
	t.Helper()
	order, err := svc.Commit(context.Background(), cart, CommitInput{
		SupplierID:   7,
		PaymentTerms: "NET 30",
		ActorID:      1,
	})
	require.NoError(t, err)
	return order
}

func TestCommitCreatesDraftWithLockedRate(t *testing.T) {
	svc, repo, _ := newTestService(ServiceConfig{})

	order := commitTestOrder(t, svc, usdCart(t))

	require.Equal(t, StatusDraft, order.Status)
	require.True(t, strings.HasPrefix(order.OrderNumber, "PO-"))
	require.True(t, order.TotalAmount.Amount.Equal(dec("100")))
	require.Equal(t, "USD", order.TotalAmount.Currency)
	require.True(t, order.TotalAmountBase.Amount.Equal(dec("260000")), "got %s", order.TotalAmountBase.Amount)
	require.Equal(t, "TZS", order.TotalAmountBase.Currency)
	require.Equal(t, fx.SourceSupplier, order.ExchangeRate.Source)
	require.True(t, order.ExchangeRate.Rate.Equal(dec("2600")))

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, 2, stored.Items[0].Quantity)
	require.NotZero(t, stored.Items[0].ID)
}

func TestCommitManualRateOverridesSupplier(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})

	order, err := svc.Commit(context.Background(), usdCart(t), CommitInput{
		SupplierID:       7,
		PaymentTerms:     "NET 30",
		ExchangeRateText: "1 USD = 2500 TZS",
	})
	require.NoError(t, err)
	require.Equal(t, fx.SourceManual, order.ExchangeRate.Source)
	require.True(t, order.ExchangeRate.Rate.Equal(dec("2500")))
	require.True(t, order.TotalAmountBase.Amount.Equal(dec("250000")))
}

func TestCommitUnparseableRateFallsBackToOne(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})

	order, err := svc.Commit(context.Background(), usdCart(t), CommitInput{
		SupplierID:       7,
		PaymentTerms:     "NET 30",
		ExchangeRateText: "ask accounting",
	})
	require.NoError(t, err)
	require.Equal(t, fx.SourceDefault, order.ExchangeRate.Source)
	require.True(t, order.ExchangeRate.Rate.Equal(dec("1")))
}

func TestCommitSameCurrencyNeedsNoDeclaration(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	cart := NewCart("TZS")
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-1"}, VariantRef{ID: "var-1", CostPrice: dec("500")}, 3))

	order, err := svc.Commit(context.Background(), cart, CommitInput{SupplierID: 8, PaymentTerms: "COD"})
	require.NoError(t, err)
	require.True(t, order.ExchangeRate.Rate.Equal(dec("1")))
	require.Equal(t, fx.SourceDefault, order.ExchangeRate.Source)
	require.True(t, order.TotalAmount.Amount.Equal(order.TotalAmountBase.Amount))
}

func TestCommitRejectsInvalidCart(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})

	_, err := svc.Commit(context.Background(), NewCart("USD"), CommitInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.NotEmpty(t, validationErr.Violations)
}

func TestApproveMovesDraftToSent(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	order := commitTestOrder(t, svc, usdCart(t))

	approved, err := svc.Approve(context.Background(), order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSent, approved.Status)

	_, err = svc.Approve(context.Background(), order.ID, 1)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusSent, transitionErr.From)
}

func TestApproveSkipsSentWhenConfigured(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{SkipSentStep: true})
	order := commitTestOrder(t, svc, usdCart(t))

	approved, err := svc.Approve(context.Background(), order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, approved.Status)
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, _, inv := newTestService(ServiceConfig{})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))

	order, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	order, err = svc.Confirm(ctx, order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, order.Status)
	order, err = svc.Ship(ctx, order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusShipping, order.Status)
	order, err = svc.MarkShipped(ctx, order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, order.Status)

	order, deltas, err := svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: order.Items[0].ID, Quantity: 2}}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, order.Status)
	require.True(t, order.FullyReceived())
	require.Len(t, deltas, 1)
	require.Equal(t, 2, deltas[0].Delta)
	require.Len(t, inv.deltas, 1)
	require.Equal(t, order.OrderNumber, inv.refs[0])
}

func TestCancelBlockedOnceShipping(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))

	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Ship(ctx, order.ID, 1)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, order.ID, 1)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusShipping, transitionErr.From)

	_, err = svc.MarkShipped(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, order.ID, 1)
	require.ErrorAs(t, err, &transitionErr)
}

func TestCancelDraftIsTerminal(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))

	cancelled, err := svc.Cancel(ctx, order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Approve(ctx, order.ID, 1)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestAssignShippingBeforeShippingPreservesStatus(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	info := json.RawMessage(`{"carrier":"Bolloré","tracking":"ABC123"}`)
	updated, err := svc.AssignShipping(ctx, order.ID, info, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSent, updated.Status)
	require.JSONEq(t, string(info), string(updated.Shipping))
}

func TestAssignShippingLockedInTransit(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Ship(ctx, order.ID, 1)
	require.NoError(t, err)

	_, err = svc.AssignShipping(ctx, order.ID, json.RawMessage(`{"carrier":"DHL"}`), 1)
	require.ErrorIs(t, err, ErrShippingLocked)
}

func TestReceiveStaggeredDeliveries(t *testing.T) {
	svc, repo, _ := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()

	cart := NewCart("USD")
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-1"}, VariantRef{ID: "var-1", CostPrice: dec("10")}, 5))
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-2"}, VariantRef{ID: "var-2", CostPrice: dec("20")}, 3))
	order := commitTestOrder(t, svc, cart)
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	lineA, lineB := stored.Items[0].ID, stored.Items[1].ID

	updated, deltas, err := svc.Receive(ctx, order.ID, []ReceiptInput{
		{ItemID: lineA, Quantity: 5},
		{ItemID: lineB, Quantity: 2},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, updated.Status)
	require.False(t, updated.FullyReceived())
	require.Len(t, deltas, 2)

	updated, _, err = svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: lineB, Quantity: 1}}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, updated.Status)
	require.True(t, updated.FullyReceived())
}

func TestReceiveOverReceiptRejectsWholeBatch(t *testing.T) {
	svc, repo, inv := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()

	cart := NewCart("USD")
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-1"}, VariantRef{ID: "var-1", CostPrice: dec("10")}, 5))
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-2"}, VariantRef{ID: "var-2", CostPrice: dec("20")}, 3))
	order := commitTestOrder(t, svc, cart)
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	_, _, err = svc.Receive(ctx, order.ID, []ReceiptInput{
		{ItemID: stored.Items[0].ID, Quantity: 5},
		{ItemID: stored.Items[1].ID, Quantity: 4},
	}, 1)
	var overErr *OverReceiptError
	require.ErrorAs(t, err, &overErr)
	require.Equal(t, stored.Items[1].ID, overErr.ItemID)
	require.Equal(t, 4, overErr.Requested)
	require.Equal(t, 3, overErr.Remaining)

	after, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	for _, item := range after.Items {
		require.Zero(t, item.ReceivedQuantity)
	}
	require.Equal(t, StatusConfirmed, after.Status)
	require.Empty(t, inv.deltas)
}

func TestReceiveAggregatesRepeatedLines(t *testing.T) {
	svc, repo, _ := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()

	cart := NewCart("USD")
	require.NoError(t, cart.AddItem(ProductRef{ID: "prod-1"}, VariantRef{ID: "var-1", CostPrice: dec("10")}, 3))
	order := commitTestOrder(t, svc, cart)
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	lineID := stored.Items[0].ID

	_, _, err = svc.Receive(ctx, order.ID, []ReceiptInput{
		{ItemID: lineID, Quantity: 2},
		{ItemID: lineID, Quantity: 2},
	}, 1)
	var overErr *OverReceiptError
	require.ErrorAs(t, err, &overErr)
	require.Equal(t, 4, overErr.Requested)
}

func TestReceiveFailedCommitLeavesStockUntouched(t *testing.T) {
	svc, repo, inv := newTestService(ServiceConfig{SkipSentStep: true})
	ctx := context.Background()

	order := commitTestOrder(t, svc, usdCart(t))
	_, err := svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	repo.commitErr = errors.New("connection reset during commit")
	_, _, err = svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: stored.Items[0].ID, Quantity: 2}}, 1)
	require.Error(t, err)

	// Stock and order rows move together or not at all.
	require.Empty(t, inv.refs)
	require.Empty(t, inv.deltas)
	after, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Zero(t, after.Items[0].ReceivedQuantity)
	require.Equal(t, StatusConfirmed, after.Status)

	repo.commitErr = nil
	updated, deltas, err := svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: stored.Items[0].ID, Quantity: 2}}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, updated.Status)
	require.Len(t, deltas, 1)
	require.Len(t, inv.deltas, 1)
}

func TestUpdateItemQuantityRecomputesTotals(t *testing.T) {
	svc, repo, _ := newTestService(ServiceConfig{})
	ctx := context.Background()

	order := commitTestOrder(t, svc, usdCart(t))
	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateItemQuantity(ctx, order.ID, stored.Items[0].ID, 5, 1)
	require.NoError(t, err)
	require.Equal(t, 5, updated.Items[0].Quantity)
	require.True(t, updated.TotalAmount.Amount.Equal(dec("250")))
	require.True(t, updated.TotalAmountBase.Amount.Equal(dec("650000")), "got %s", updated.TotalAmountBase.Amount)
}

func TestUpdateItemQuantityLockedOutsideDraft(t *testing.T) {
	svc, repo, _ := newTestService(ServiceConfig{})
	ctx := context.Background()

	order := commitTestOrder(t, svc, usdCart(t))
	stored, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(ctx, order.ID, stored.Items[0].ID, 5, 1)
	require.ErrorIs(t, err, ErrOrderLocked)
}

func TestUpdateItemQuantityGuards(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))

	_, err := svc.UpdateItemQuantity(ctx, order.ID, 9999, 5, 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.UpdateItemQuantity(ctx, order.ID, 1, 0, 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCurrentStockDelegatesToInventory(t *testing.T) {
	svc, _, inv := newTestService(ServiceConfig{})
	inv.stock = map[string]int{"prod-1/var-1": 42}

	qty, err := svc.CurrentStock(context.Background(), "prod-1", "var-1")
	require.NoError(t, err)
	require.Equal(t, 42, qty)
}

func TestReceiveGuards(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	ctx := context.Background()
	order := commitTestOrder(t, svc, usdCart(t))

	_, _, err := svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: 1, Quantity: 1}}, 1)
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusDraft, transitionErr.From)

	_, err = svc.Approve(ctx, order.ID, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, order.ID, 1)
	require.NoError(t, err)

	_, _, err = svc.Receive(ctx, order.ID, []ReceiptInput{{ItemID: 9999, Quantity: 1}}, 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, _, err = svc.Receive(ctx, order.ID, nil, 1)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

type fakeIdempotency struct {
	seen map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = true
	return nil
}

func (f *fakeIdempotency) Release(ctx context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

func TestCommitDeduplicatesByIdempotencyKey(t *testing.T) {
	repo := newMemoryOrderRepo()
	suppliers := &stubSupplierDir{suppliers: map[int64]supplier.Supplier{
		7: {ID: 7, Name: "Kilimanjaro Traders", Currency: "USD"},
	}}
	svc := NewService(repo, &stubInventory{}, suppliers, nil, &fakeIdempotency{}, ServiceConfig{})
	ctx := context.Background()

	input := CommitInput{SupplierID: 7, PaymentTerms: "NET 30", IdempotencyKey: "req-1"}
	_, err := svc.Commit(ctx, usdCart(t), input)
	require.NoError(t, err)

	_, err = svc.Commit(ctx, usdCart(t), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.orders, 1)
}

func TestCommitFailureReleasesIdempotencyKey(t *testing.T) {
	repo := newMemoryOrderRepo()
	suppliers := &stubSupplierDir{suppliers: map[int64]supplier.Supplier{
		7: {ID: 7, Name: "Kilimanjaro Traders", Currency: "USD"},
	}}
	svc := NewService(repo, &stubInventory{}, suppliers, nil, &fakeIdempotency{}, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Commit(ctx, usdCart(t), CommitInput{SupplierID: 99, PaymentTerms: "NET 30", IdempotencyKey: "req-2"})
	require.ErrorIs(t, err, supplier.ErrNotFound)

	// The failed attempt must not burn the key.
	_, err = svc.Commit(ctx, usdCart(t), CommitInput{SupplierID: 7, PaymentTerms: "NET 30", IdempotencyKey: "req-2"})
	require.NoError(t, err)
	require.Len(t, repo.orders, 1)
}

func TestGetOrderMissing(t *testing.T) {
	svc, _, _ := newTestService(ServiceConfig{})
	_, err := svc.GetOrder(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
