package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for manual drafts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts the draft row, items serialized as JSON.
func (r *Repository) Save(ctx context.Context, d Draft) error {
	items, err := json.Marshal(d.Items)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO purchase_order_drafts
(id, name, kind, currency, items, supplier_id, payment_terms, expected_delivery, notes, exchange_rate_text, saved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 name=EXCLUDED.name, currency=EXCLUDED.currency, items=EXCLUDED.items,
 supplier_id=EXCLUDED.supplier_id, payment_terms=EXCLUDED.payment_terms,
 expected_delivery=EXCLUDED.expected_delivery, notes=EXCLUDED.notes,
 exchange_rate_text=EXCLUDED.exchange_rate_text, saved_at=EXCLUDED.saved_at`,
		d.ID, d.Name, string(d.Kind), d.Currency, items, nullInt(d.SupplierID),
		d.PaymentTerms, nullTime(d.ExpectedDelivery), d.Notes, d.ExchangeRateText, d.SavedAt)
	return err
}

// Get fetches one draft.
func (r *Repository) Get(ctx context.Context, id string) (Draft, error) {
	var (
		d     Draft
		kind  string
		items []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, currency, items, COALESCE(supplier_id,0),
COALESCE(payment_terms,''), expected_delivery, COALESCE(notes,''), COALESCE(exchange_rate_text,''), saved_at
FROM purchase_order_drafts WHERE id=$1`, id).Scan(
		&d.ID, &d.Name, &kind, &d.Currency, &items, &d.SupplierID,
		&d.PaymentTerms, &d.ExpectedDelivery, &d.Notes, &d.ExchangeRateText, &d.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, err
	}
	d.Kind = Kind(kind)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &d.Items); err != nil {
			return Draft{}, err
		}
	}
	return d, nil
}

// List returns all drafts, newest first. Items are included so a draft list
// can show line counts without a second fetch.
func (r *Repository) List(ctx context.Context) ([]Draft, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, currency, items, COALESCE(supplier_id,0),
COALESCE(payment_terms,''), expected_delivery, COALESCE(notes,''), COALESCE(exchange_rate_text,''), saved_at
FROM purchase_order_drafts ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drafts []Draft
	for rows.Next() {
		var (
			d     Draft
			kind  string
			items []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &kind, &d.Currency, &items, &d.SupplierID,
			&d.PaymentTerms, &d.ExpectedDelivery, &d.Notes, &d.ExchangeRateText, &d.SavedAt); err != nil {
			return nil, err
		}
		d.Kind = Kind(kind)
		if len(items) > 0 {
			if err := json.Unmarshal(items, &d.Items); err != nil {
				return nil, err
			}
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drafts, nil
}

// Delete removes a draft.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_order_drafts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSavedBefore purges drafts last saved before cutoff.
func (r *Repository) DeleteSavedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_order_drafts WHERE saved_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}
