package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/karibu-erp/karibu-erp/internal/fx"
	"github.com/karibu-erp/karibu-erp/internal/money"
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
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error
	UpdateItemReceived(ctx context.Context, itemID int64, received int) error
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error
	UpdateOrderTotals(ctx context.Context, orderID int64, total, totalBase money.Money) error
	SetShippingInfo(ctx context.Context, orderID int64, info json.RawMessage) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. The callback's
// context carries the transaction so collaborators invoked inside it join
// the same transaction instead of committing independently.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(db.NewContext(ctx, tx), &txRepo{tx: tx})
	})
}

// GetOrder returns order header with items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var (
		order                         PurchaseOrder
		totalStr, totalBaseStr        string
		rateStr                       string
		rateSource                    string
		shipping                      []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, order_number, supplier_id, currency, base_currency,
rate::text, rate_source, rate_resolved_at,
total_amount::text, total_amount_base::text,
status, COALESCE(payment_terms,''), expected_delivery, COALESCE(notes,''), shipping_info, created_at, updated_at
FROM purchase_orders WHERE id=$1`, id).Scan(
		&order.ID, &order.OrderNumber, &order.SupplierID, &order.Currency, &order.BaseCurrency,
		&rateStr, &rateSource, &order.ExchangeRate.ResolvedAt,
		&totalStr, &totalBaseStr,
		&order.Status, &order.PaymentTerms, &order.ExpectedDelivery, &order.Notes, &shipping, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	order.ExchangeRate.FromCurrency = order.Currency
	order.ExchangeRate.ToCurrency = order.BaseCurrency
	order.ExchangeRate.Source = fx.Source(rateSource)
	if order.ExchangeRate.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return PurchaseOrder{}, fmt.Errorf("purchase: parse rate: %w", err)
	}
	if order.TotalAmount, err = parseMoney(totalStr, order.Currency); err != nil {
		return PurchaseOrder{}, err
	}
	if order.TotalAmountBase, err = parseMoney(totalBaseStr, order.BaseCurrency); err != nil {
		return PurchaseOrder{}, err
	}
	order.Shipping = json.RawMessage(shipping)

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, COALESCE(variant_id,''), quantity, cost_price::text,
received_quantity, minimum_order_qty, COALESCE(notes,'')
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item    OrderItem
			costStr string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID, &item.Quantity, &costStr,
			&item.ReceivedQuantity, &item.MinimumOrderQty, &item.Notes); err != nil {
			return PurchaseOrder{}, err
		}
		if item.CostPrice, err = parseMoney(costStr, order.Currency); err != nil {
			return PurchaseOrder{}, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// ListOrders returns a filtered page of order headers and the total count.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR supplier_id = $2) AND ($3 = '' OR order_number ILIKE '%' || $3 || '%')`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders `+where,
		filters.Status, filters.SupplierID, filters.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_number, supplier_id, currency, base_currency,
rate::text, rate_source, rate_resolved_at,
total_amount::text, total_amount_base::text,
status, COALESCE(payment_terms,''), expected_delivery, COALESCE(notes,''), created_at, updated_at
FROM purchase_orders `+where+` ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		filters.Status, filters.SupplierID, filters.Search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		var (
			order                  PurchaseOrder
			totalStr, totalBaseStr string
			rateStr, rateSource    string
		)
		if err := rows.Scan(&order.ID, &order.OrderNumber, &order.SupplierID, &order.Currency, &order.BaseCurrency,
			&rateStr, &rateSource, &order.ExchangeRate.ResolvedAt,
			&totalStr, &totalBaseStr,
			&order.Status, &order.PaymentTerms, &order.ExpectedDelivery, &order.Notes, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, err
		}
		order.ExchangeRate.FromCurrency = order.Currency
		order.ExchangeRate.ToCurrency = order.BaseCurrency
		order.ExchangeRate.Source = fx.Source(rateSource)
		if order.ExchangeRate.Rate, err = decimal.NewFromString(rateStr); err != nil {
			return nil, 0, fmt.Errorf("purchase: parse rate: %w", err)
		}
		if order.TotalAmount, err = parseMoney(totalStr, order.Currency); err != nil {
			return nil, 0, err
		}
		if order.TotalAmountBase, err = parseMoney(totalBaseStr, order.BaseCurrency); err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (tx *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(order_number, supplier_id, currency, base_currency, rate, rate_source, rate_resolved_at,
 total_amount, total_amount_base, status, payment_terms, expected_delivery, notes, shipping_info, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW()) RETURNING id`,
		order.OrderNumber, order.SupplierID, order.Currency, order.BaseCurrency,
		order.ExchangeRate.Rate.String(), string(order.ExchangeRate.Source), order.ExchangeRate.ResolvedAt,
		order.TotalAmount.Amount.String(), order.TotalAmountBase.Amount.String(),
		order.Status, order.PaymentTerms, nullTime(order.ExpectedDelivery), order.Notes, nullJSON(order.Shipping)).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateOrderNumber
	}
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(order_id, product_id, variant_id, quantity, cost_price, received_quantity, minimum_order_qty, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.OrderID, item.ProductID, nullString(item.VariantID), item.Quantity,
		item.CostPrice.Amount.String(), item.ReceivedQuantity, item.MinimumOrderQty, item.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, orderID)
	return err
}

func (tx *txRepo) UpdateItemReceived(ctx context.Context, itemID int64, received int) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity=$1 WHERE id=$2`, received, itemID)
	return err
}

func (tx *txRepo) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_order_items SET quantity=$1 WHERE id=$2`, quantity, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (tx *txRepo) UpdateOrderTotals(ctx context.Context, orderID int64, total, totalBase money.Money) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET total_amount=$1, total_amount_base=$2, updated_at=NOW() WHERE id=$3`,
		total.Amount.String(), totalBase.Amount.String(), orderID)
	return err
}

func (tx *txRepo) SetShippingInfo(ctx context.Context, orderID int64, info json.RawMessage) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET shipping_info=$1, updated_at=NOW() WHERE id=$2`, []byte(info), orderID)
	return err
}

func parseMoney(text, currency string) (money.Money, error) {
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return money.Money{}, fmt.Errorf("purchase: parse amount %q: %w", text, err)
	}
	return money.Money{Amount: amount, Currency: currency}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
