package draft

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/karibu-erp/karibu-erp/internal/purchase"
)

// RepositoryPort describes manual draft persistence.
type RepositoryPort interface {
	Save(ctx context.Context, d Draft) error
	Get(ctx context.Context, id string) (Draft, error)
	List(ctx context.Context) ([]Draft, error)
	Delete(ctx context.Context, id string) error
	DeleteSavedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Meta carries the header fields snapshotted alongside the cart.
type Meta struct {
	SupplierID       int64
	PaymentTerms     string
	ExpectedDelivery *time.Time
	Notes            string
	ExchangeRateText string
}

// Store coordinates the two draft tiers. Manual saves go to the repository
// and their failures are surfaced; autosaves go to a per-session Redis slot
// and their failures are logged but never interrupt editing.
type Store struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
}

// NewStore builds a draft store. ttl bounds how long an untouched autosave
// slot survives.
func NewStore(logger *slog.Logger, repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{logger: logger, repo: repo, cache: cache, ttl: ttl}
}

// SaveManual snapshots the cart under a user-chosen name. Manual drafts
// accumulate; each call creates a new draft.
func (s *Store) SaveManual(ctx context.Context, name string, cart *purchase.Cart, meta Meta) (Draft, error) {
	d := s.snapshot(cart, meta)
	d.ID = uuid.NewString()
	d.Name = name
	d.Kind = KindManual
	if err := s.repo.Save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Update overwrites an existing manual draft in place.
func (s *Store) Update(ctx context.Context, id string, cart *purchase.Cart, meta Meta) (Draft, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	d := s.snapshot(cart, meta)
	d.ID = existing.ID
	d.Name = existing.Name
	d.Kind = existing.Kind
	if err := s.repo.Save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Autosave overwrites the session's single autosave slot. There is exactly
// one slot per session: a newer snapshot always replaces the older one. A
// storage failure is reported in the log and otherwise swallowed, so a cache
// outage never blocks the user's editing.
func (s *Store) Autosave(ctx context.Context, sessionID string, cart *purchase.Cart, meta Meta) {
	d := s.snapshot(cart, meta)
	d.ID = sessionID
	d.Kind = KindAuto
	payload, err := json.Marshal(d)
	if err != nil {
		s.logger.Warn("autosave encode", slog.Any("error", err), slog.String("session", sessionID))
		return
	}
	if err := s.cache.Set(ctx, autosaveKey(sessionID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("autosave write", slog.Any("error", err), slog.String("session", sessionID))
	}
}

// LoadAutosave fetches the session's autosave slot.
func (s *Store) LoadAutosave(ctx context.Context, sessionID string) (Draft, error) {
	payload, err := s.cache.Get(ctx, autosaveKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// DiscardAutosave clears the session's autosave slot, typically right after
// the cart was committed into an order.
func (s *Store) DiscardAutosave(ctx context.Context, sessionID string) error {
	err := s.cache.Del(ctx, autosaveKey(sessionID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Load fetches a manual draft by id.
func (s *Store) Load(ctx context.Context, id string) (Draft, error) {
	return s.repo.Get(ctx, id)
}

// List returns all manual drafts, newest first.
func (s *Store) List(ctx context.Context) ([]Draft, error) {
	return s.repo.List(ctx)
}

// Delete removes a manual draft.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// PurgeStale removes manual drafts untouched for longer than retention.
// Autosave slots expire on their own through the cache TTL.
func (s *Store) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteSavedBefore(ctx, time.Now().Add(-retention))
}

func (s *Store) snapshot(cart *purchase.Cart, meta Meta) Draft {
	snap := cart.Clone()
	return Draft{
		Currency:         snap.Currency,
		Items:            snap.Items,
		SupplierID:       meta.SupplierID,
		PaymentTerms:     meta.PaymentTerms,
		ExpectedDelivery: meta.ExpectedDelivery,
		Notes:            meta.Notes,
		ExchangeRateText: meta.ExchangeRateText,
		SavedAt:          time.Now(),
	}
}

func autosaveKey(sessionID string) string {
	return "draft:auto:" + sessionID
}
