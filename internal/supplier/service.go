package supplier

import (
	"context"
	"strings"

	"github.com/karibu-erp/karibu-erp/internal/money"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Supplier, error)
	List(ctx context.Context, limit, offset int) ([]Supplier, error)
	Create(ctx context.Context, s Supplier) (int64, error)
	Update(ctx context.Context, s Supplier) error
}

// Service exposes the supplier directory.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a supplier by id.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of suppliers.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Supplier, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

// Create validates and stores a new supplier.
func (s *Service) Create(ctx context.Context, sup Supplier) (Supplier, error) {
	if err := validate(&sup); err != nil {
		return Supplier{}, err
	}
	id, err := s.repo.Create(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	return sup, nil
}

// Update validates and replaces a supplier.
func (s *Service) Update(ctx context.Context, sup Supplier) error {
	if sup.ID == 0 {
		return ErrNotFound
	}
	if err := validate(&sup); err != nil {
		return err
	}
	return s.repo.Update(ctx, sup)
}

func validate(sup *Supplier) error {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return ErrValidation
	}
	sup.Currency = strings.ToUpper(strings.TrimSpace(sup.Currency))
	if sup.Currency != "" && !money.ValidCode(sup.Currency) {
		return ErrValidation
	}
	return nil
}
