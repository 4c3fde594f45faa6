package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karibu-erp/karibu-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpsertBalance(ctx context.Context, productID, variantID string, delta int) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. A transaction
// already carried in ctx is joined, so stock writes triggered inside a
// purchase receive commit or roll back with the order rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(db.NewContext(ctx, tx), &txRepo{tx: tx})
	})
}

// Balance returns the current quantity for a variant, zero when unseen.
func (r *Repository) Balance(ctx context.Context, productID, variantID string) (Balance, error) {
	balance := Balance{ProductID: productID, VariantID: variantID}
	err := r.pool.QueryRow(ctx, `SELECT quantity, updated_at FROM stock_balances
WHERE product_id=$1 AND variant_id=$2`, productID, variantID).Scan(&balance.Quantity, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ProductID: productID, VariantID: variantID}, nil
		}
		return Balance{}, err
	}
	return balance, nil
}

// Movements returns recent movement rows for a variant.
func (r *Repository) Movements(ctx context.Context, productID, variantID string, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, COALESCE(variant_id,''), delta, ref, COALESCE(note,''), posted_at
FROM stock_movements WHERE product_id=$1 AND variant_id=$2 ORDER BY posted_at DESC LIMIT $3`, productID, variantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariantID, &m.Delta, &m.Ref, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (tx *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, variant_id, delta, ref, note, posted_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, m.ProductID, m.VariantID, m.Delta, m.Ref, m.Note, m.PostedAt).Scan(&id)
	return id, err
}

func (tx *txRepo) UpsertBalance(ctx context.Context, productID, variantID string, delta int) (int, error) {
	var quantity int
	err := tx.tx.QueryRow(ctx, `INSERT INTO stock_balances (product_id, variant_id, quantity, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (product_id, variant_id) DO UPDATE SET quantity = stock_balances.quantity + $3, updated_at = NOW()
RETURNING quantity`, productID, variantID, delta).Scan(&quantity)
	return quantity, err
}
