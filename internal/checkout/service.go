package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/events"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Evaluator prices a cart. *pricing.Engine implements it.
type Evaluator interface {
	EvaluateCart(ctx context.Context, req pricing.EvaluateRequest) (*pricing.CartResult, error)
}

// SaleWriter persists a priced cart as a sale. *store.Repository implements it.
type SaleWriter interface {
	FinalizeSale(ctx context.Context, cart *pricing.CartResult, paymentMethod string) (*models.Sale, error)
}

// closedCartRetention is how long completed and abandoned carts stay
// readable before they are pruned.
const closedCartRetention = time.Hour

// publishTimeout bounds a single sale event publish.
const publishTimeout = 10 * time.Second

type Service struct {
	engine    Evaluator
	sales     SaleWriter
	publisher events.Publisher
	carts     *Registry
	now       func() time.Time
	logger    zerolog.Logger
	pending   sync.WaitGroup
}

type ServiceDeps struct {
	Engine Evaluator
	Sales  SaleWriter
	// Publisher is optional; completed sales are not announced without it.
	Publisher events.Publisher
	Registry  *Registry
	Now       func() time.Time
	Logger    *zerolog.Logger
}

func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Engine == nil {
		return nil, errors.New("checkout service: engine is required")
	}
	if deps.Sales == nil {
		return nil, errors.New("checkout service: sale writer is required")
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &Service{
		engine:    deps.Engine,
		sales:     deps.Sales,
		publisher: publisher,
		carts:     registry,
		now:       now,
		logger:    logger.With().Str("component", "checkout").Logger(),
	}, nil
}

// Open starts an empty cart, optionally for a known customer.
func (s *Service) Open(ctx context.Context, customerID *int64) (*Cart, error) {
	if n := s.carts.Prune(s.now().Add(-closedCartRetention)); n > 0 {
		s.logger.Debug().Int("carts", n).Msg("pruned closed carts")
	}

	now := s.now()
	cart := &Cart{
		id:         ulid.Make().String(),
		service:    s,
		status:     StatusOpen,
		lines:      []pricing.CartLine{},
		customerID: customerID,
		codes:      []string{},
		createdAt:  now,
		updatedAt:  now,
	}

	result, err := s.evaluate(ctx, cart.snapshotLocked())
	if err != nil {
		return nil, err
	}
	cart.result = result
	s.carts.Put(cart)

	s.logger.Debug().Str("cart_id", cart.id).Int("carts", s.carts.Len()).Msg("cart opened")
	return cart, nil
}

func (s *Service) Cart(id string) (*Cart, error) {
	cart, ok := s.carts.Get(id)
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", id, ErrCartNotFound)
	}
	return cart, nil
}

// Evaluate prices lines that are not kept in a cart.
func (s *Service) Evaluate(ctx context.Context, req pricing.EvaluateRequest) (*pricing.CartResult, error) {
	return s.engine.EvaluateCart(ctx, req)
}

func (s *Service) evaluate(ctx context.Context, st state) (*pricing.CartResult, error) {
	return s.engine.EvaluateCart(ctx, pricing.EvaluateRequest{
		Lines:      st.lines,
		CustomerID: st.customerID,
		PromoCodes: st.codes,
	})
}

// saleCompleted announces a sale in the background. The sale is already
// committed, so a publish failure is only logged.
func (s *Service) saleCompleted(ctx context.Context, cartID string, sale *models.Sale) {
	log := s.logger.With().Str("cart_id", cartID).Int64("sale_id", sale.ID).Logger()
	log.Info().
		Str("sale_number", sale.SaleNumber).
		Str("total", sale.Total.StringFixed(2)).
		Msg("sale completed")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.publisher.PublishSaleCompleted(ctx, sale); err != nil {
			log.Error().Err(err).Msg("publish sale completed")
		}
	}()
}

// Wait blocks until every sale event handed to the publisher has been sent
// or has failed. Call it before closing the publisher.
func (s *Service) Wait() {
	s.pending.Wait()
}
