package draft

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/karibu-erp/karibu-erp/internal/purchase"
)

type memoryDraftRepo struct {
	drafts map[string]Draft
}

func newMemoryDraftRepo() *memoryDraftRepo {
	return &memoryDraftRepo{drafts: make(map[string]Draft)}
}

func (r *memoryDraftRepo) Save(ctx context.Context, d Draft) error {
	r.drafts[d.ID] = d
	return nil
}

func (r *memoryDraftRepo) Get(ctx context.Context, id string) (Draft, error) {
	d, ok := r.drafts[id]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (r *memoryDraftRepo) List(ctx context.Context) ([]Draft, error) {
	drafts := make([]Draft, 0, len(r.drafts))
	for _, d := range r.drafts {
		drafts = append(drafts, d)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].SavedAt.After(drafts[j].SavedAt) })
	return drafts, nil
}

func (r *memoryDraftRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(r.drafts, id)
	return nil
}

func (r *memoryDraftRepo) DeleteSavedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for id, d := range r.drafts {
		if d.SavedAt.Before(cutoff) {
			delete(r.drafts, id)
			removed++
		}
	}
	return removed, nil
}

func newTestStore(t *testing.T) (*Store, *memoryDraftRepo, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	repo := newMemoryDraftRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(logger, repo, client, time.Hour), repo, mini
}

func testCart(t *testing.T) *purchase.Cart {
	t.Helper()
	cart := purchase.NewCart("USD")
	require.NoError(t, cart.AddItem(
		purchase.ProductRef{ID: "prod-1", Name: "Sukari"},
		purchase.VariantRef{ID: "var-1", SKU: "SUK-1KG", CostPrice: decimal.RequireFromString("50")}, 2))
	return cart
}

func TestSaveManualAccumulates(t *testing.T) {
	store, repo, _ := newTestStore(t)
	ctx := context.Background()
	cart := testCart(t)

	first, err := store.SaveManual(ctx, "jumatatu", cart, Meta{SupplierID: 7, PaymentTerms: "NET 30"})
	require.NoError(t, err)
	second, err := store.SaveManual(ctx, "jumanne", cart, Meta{SupplierID: 7})
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, repo.drafts, 2)
	require.Equal(t, KindManual, first.Kind)
}

func TestDraftRoundTripRestoresCart(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	cart := testCart(t)

	saved, err := store.SaveManual(ctx, "weekly order", cart, Meta{
		SupplierID:       7,
		PaymentTerms:     "NET 30",
		ExchangeRateText: "1 USD = 2600 TZS",
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7), loaded.SupplierID)
	require.Equal(t, "1 USD = 2600 TZS", loaded.ExchangeRateText)

	restored := loaded.RestoreCart()
	require.Equal(t, cart.Currency, restored.Currency)
	require.Equal(t, cart.Len(), restored.Len())
	require.Equal(t, cart.Items[0].ID, restored.Items[0].ID)
	require.Equal(t, cart.Items[0].Quantity, restored.Items[0].Quantity)
	require.True(t, cart.Items[0].UnitCost.Amount.Equal(restored.Items[0].UnitCost.Amount))
}

func TestLoadReplacesNotMerges(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveManual(ctx, "order A", testCart(t), Meta{})
	require.NoError(t, err)

	working := purchase.NewCart("USD")
	require.NoError(t, working.AddItem(
		purchase.ProductRef{ID: "prod-9"},
		purchase.VariantRef{ID: "var-9", CostPrice: decimal.RequireFromString("5")}, 10))

	loaded, err := store.Load(ctx, saved.ID)
	require.NoError(t, err)
	working = loaded.RestoreCart()

	require.Equal(t, 1, working.Len())
	require.Equal(t, "prod-1", working.Items[0].ProductID)
}

func TestAutosaveSingleSlotPerSession(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.Autosave(ctx, "sess-1", testCart(t), Meta{SupplierID: 7})

	bigger := testCart(t)
	require.NoError(t, bigger.AddItem(
		purchase.ProductRef{ID: "prod-2"},
		purchase.VariantRef{ID: "var-2", CostPrice: decimal.RequireFromString("20")}, 1))
	store.Autosave(ctx, "sess-1", bigger, Meta{SupplierID: 7})

	loaded, err := store.LoadAutosave(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, KindAuto, loaded.Kind)
	require.Len(t, loaded.Items, 2)
}

func TestAutosaveExpires(t *testing.T) {
	store, _, mini := newTestStore(t)
	ctx := context.Background()

	store.Autosave(ctx, "sess-1", testCart(t), Meta{})
	mini.FastForward(2 * time.Hour)

	_, err := store.LoadAutosave(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAutosaveFailureIsSilent(t *testing.T) {
	store, _, mini := newTestStore(t)
	mini.Close()

	// Must not panic or propagate; editing continues without autosave.
	store.Autosave(context.Background(), "sess-1", testCart(t), Meta{})
}

func TestDiscardAutosave(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.Autosave(ctx, "sess-1", testCart(t), Meta{})
	require.NoError(t, store.DiscardAutosave(ctx, "sess-1"))

	_, err := store.LoadAutosave(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Discarding an empty slot is not an error.
	require.NoError(t, store.DiscardAutosave(ctx, "sess-1"))
}

func TestUpdateKeepsIdentity(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveManual(ctx, "order A", testCart(t), Meta{SupplierID: 7})
	require.NoError(t, err)

	cart := testCart(t)
	require.NoError(t, cart.UpdateQuantity(cart.Items[0].ID, 9))
	updated, err := store.Update(ctx, saved.ID, cart, Meta{SupplierID: 8})
	require.NoError(t, err)

	require.Equal(t, saved.ID, updated.ID)
	require.Equal(t, "order A", updated.Name)
	require.Equal(t, int64(8), updated.SupplierID)
	require.Equal(t, 9, updated.Items[0].Quantity)
}

func TestPurgeStale(t *testing.T) {
	store, repo, _ := newTestStore(t)
	ctx := context.Background()

	old, err := store.SaveManual(ctx, "stale", testCart(t), Meta{})
	require.NoError(t, err)
	stale := repo.drafts[old.ID]
	stale.SavedAt = time.Now().Add(-48 * time.Hour)
	repo.drafts[old.ID] = stale

	_, err = store.SaveManual(ctx, "fresh", testCart(t), Meta{})
	require.NoError(t, err)

	removed, err := store.PurgeStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.Len(t, repo.drafts, 1)
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	calls := make(chan struct{}, 10)
	d := NewDebouncer(30*time.Millisecond, func() { calls <- struct{}{} })

	d.Trigger()
	d.Trigger()
	d.Trigger()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	select {
	case <-calls:
		t.Fatal("burst produced more than one call")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerStopCancels(t *testing.T) {
	calls := make(chan struct{}, 1)
	d := NewDebouncer(20*time.Millisecond, func() { calls <- struct{}{} })

	d.Trigger()
	d.Stop()

	select {
	case <-calls:
		t.Fatal("stopped debouncer still fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	calls := make(chan struct{}, 1)
	d := NewDebouncer(time.Hour, func() { calls <- struct{}{} })

	d.Trigger()
	d.Flush()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("flush did not run the callback")
	}
}
