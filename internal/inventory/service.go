package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/karibu-erp/karibu-erp/internal/purchase"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Balance(ctx context.Context, productID, variantID string) (Balance, error)
	Movements(ctx context.Context, productID, variantID string, limit int) ([]Movement, error)
}

// Service applies stock movements and answers balance queries.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService constructs the inventory service.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// CurrentStock returns the on-hand quantity for a variant. An unknown
// variant simply has zero stock.
func (s *Service) CurrentStock(ctx context.Context, productID, variantID string) (int, error) {
	balance, err := s.repo.Balance(ctx, productID, variantID)
	if err != nil {
		return 0, err
	}
	return balance.Quantity, nil
}

// ApplyDeltas posts a batch of stock changes atomically, recording one
// movement row per delta and updating balances. A delta that would drive a
// balance negative rolls back the whole batch.
func (s *Service) ApplyDeltas(ctx context.Context, ref string, deltas []purchase.StockDelta) error {
	for _, delta := range deltas {
		if delta.Delta == 0 {
			return ErrInvalidQuantity
		}
	}
	now := time.Now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, delta := range deltas {
			if _, err := tx.InsertMovement(ctx, Movement{
				ProductID: delta.ProductID,
				VariantID: delta.VariantID,
				Delta:     delta.Delta,
				Ref:       ref,
				PostedAt:  now,
			}); err != nil {
				return err
			}
			quantity, err := tx.UpsertBalance(ctx, delta.ProductID, delta.VariantID, delta.Delta)
			if err != nil {
				return err
			}
			if quantity < 0 {
				return ErrNegativeStock
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("stock deltas applied", slog.String("ref", ref), slog.Int("lines", len(deltas)))
	return nil
}

// Adjust posts a single manual correction.
func (s *Service) Adjust(ctx context.Context, productID, variantID string, delta int, note string) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertMovement(ctx, Movement{
			ProductID: productID,
			VariantID: variantID,
			Delta:     delta,
			Ref:       "ADJUST",
			Note:      note,
			PostedAt:  time.Now(),
		}); err != nil {
			return err
		}
		quantity, err := tx.UpsertBalance(ctx, productID, variantID, delta)
		if err != nil {
			return err
		}
		if quantity < 0 {
			return ErrNegativeStock
		}
		return nil
	})
}

// History returns the most recent movements for a variant.
func (s *Service) History(ctx context.Context, productID, variantID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Movements(ctx, productID, variantID, limit)
}
