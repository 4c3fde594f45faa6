package supplier

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for suppliers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a supplier by id.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(contact_person,''), COALESCE(phone,''), COALESCE(email,''),
COALESCE(city,''), COALESCE(country,''), COALESCE(currency,''), COALESCE(exchange_rate_text,''), COALESCE(payment_terms,''),
created_at, updated_at FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.City, &s.Country,
			&s.Currency, &s.ExchangeRateText, &s.PaymentTerms, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

// List returns suppliers ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(contact_person,''), COALESCE(phone,''), COALESCE(email,''),
COALESCE(city,''), COALESCE(country,''), COALESCE(currency,''), COALESCE(exchange_rate_text,''), COALESCE(payment_terms,''),
created_at, updated_at FROM suppliers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.City, &s.Country,
			&s.Currency, &s.ExchangeRateText, &s.PaymentTerms, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a supplier and returns its id.
func (r *Repository) Create(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, contact_person, phone, email, city, country, currency, exchange_rate_text, payment_terms, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		s.Name, s.ContactPerson, s.Phone, s.Email, s.City, s.Country, s.Currency, s.ExchangeRateText, s.PaymentTerms).
		Scan(&id)
	return id, err
}

// Update replaces the mutable fields of a supplier.
func (r *Repository) Update(ctx context.Context, s Supplier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET name=$2, contact_person=$3, phone=$4, email=$5, city=$6, country=$7,
currency=$8, exchange_rate_text=$9, payment_terms=$10, updated_at=NOW() WHERE id=$1`,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Email, s.City, s.Country, s.Currency, s.ExchangeRateText, s.PaymentTerms)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
