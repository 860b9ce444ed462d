package markdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Sweeper recomputes expiry markdowns for the whole catalog and saves them
// to a Store. It also serves them to the pricing engine.
type Sweeper struct {
	catalog  pricing.Catalog
	store    Store
	policy   pricing.Policy
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu sync.Mutex
}

type SweeperDeps struct {
	Catalog  pricing.Catalog
	Store    Store
	Policy   *pricing.Policy
	Interval time.Duration
	Now      func() time.Time
	Logger   *zerolog.Logger
}

var _ pricing.MarkdownSource = (*Sweeper)(nil)

func NewSweeper(deps SweeperDeps) (*Sweeper, error) {
	if deps.Catalog == nil {
		return nil, errors.New("markdown sweeper: catalog is required")
	}
	if deps.Store == nil {
		return nil, errors.New("markdown sweeper: store is required")
	}
	policy := pricing.DefaultPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
		if err := policy.Validate(); err != nil {
			return nil, err
		}
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &Sweeper{
		catalog:  deps.Catalog,
		store:    deps.Store,
		policy:   policy,
		interval: deps.Interval,
		now:      deps.Now,
		logger:   logger.With().Str("component", "markdown_sweeper").Logger(),
	}, nil
}

// Sweep reads every active product's nearest batch, computes its markdown
// and replaces the stored snapshot.
func (s *Sweeper) Sweep(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	products, err := s.catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}

	dated := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.StockQuantity <= 0 {
			continue
		}
		batch, err := s.catalog.NearestBatch(ctx, p.ID)
		if err != nil {
			if errors.Is(err, database.ErrBatchNotFound) {
				continue
			}
			return nil, fmt.Errorf("nearest batch of product %d: %w", p.ID, err)
		}
		batchID := batch.ID
		p.NearestBatchID = &batchID
		p.ExpiresAt = batch.ExpiresAt
		p.UnitCost = decimal.NullDecimal{Decimal: batch.UnitCost, Valid: true}
		dated = append(dated, p)
	}

	snap := Snapshot{
		GeneratedAt: now.UTC(),
		Markdowns:   pricing.GenerateMarkdowns(s.policy, dated, now),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("products", len(products)).
		Int("markdowns", len(snap.Markdowns)).
		Msg("markdown sweep completed")

	return &snap, nil
}

// Markdowns returns the stored markdowns, sweeping first when there is no
// snapshot or it was generated on an earlier UTC day than the sweeper clock.
// Snapshots always describe the current day; asOf does not move them.
func (s *Sweeper) Markdowns(ctx context.Context, asOf time.Time) (map[int64]pricing.Markdown, error) {
	snap, err := s.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}
	if snap == nil || pricing.DaysUntil(snap.GeneratedAt, s.now()) > 0 {
		snap, err = s.Sweep(ctx)
		if err != nil {
			return nil, err
		}
	}
	if snap.Markdowns == nil {
		return map[int64]pricing.Markdown{}, nil
	}
	return snap.Markdowns, nil
}

// Run sweeps once and then on every interval until ctx is done. Failed
// sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("markdown sweep failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("markdown sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("markdown sweep failed")
			}
		}
	}
}
