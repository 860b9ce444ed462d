package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Catalog reads products and their batches.
type Catalog interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	NearestBatch(ctx context.Context, productID int64) (*models.Batch, error)
}

// OfferSource reads offers and their redemption counters.
type OfferSource interface {
	ActiveOffers(ctx context.Context, asOf time.Time) ([]models.Offer, error)
	OfferApplications(ctx context.Context, offerID int64) ([]models.OfferApplication, error)
	CustomerRedemptions(ctx context.Context, offerID, customerID int64) (int, error)
}

// CustomerSource looks up the customer a cart is priced for.
type CustomerSource interface {
	CustomerByID(ctx context.Context, id int64) (*models.Customer, error)
}

// MarkdownSource returns the precomputed expiry markdowns keyed by product id.
type MarkdownSource interface {
	Markdowns(ctx context.Context, asOf time.Time) (map[int64]Markdown, error)
}

// Engine prices carts: it resolves offers and markdowns against the cart
// lines and settles the totals under its policy. It is safe for concurrent
// use.
type Engine struct {
	catalog   Catalog
	offers    OfferSource
	customers CustomerSource
	markdowns MarkdownSource
	policy    Policy
	now       func() time.Time
	logger    zerolog.Logger
}

// EngineDeps lists the ports an Engine reads from. Policy, Now and Logger
// fall back to DefaultPolicy, time.Now and a no-op logger.
type EngineDeps struct {
	Catalog   Catalog
	Offers    OfferSource
	Customers CustomerSource
	// Markdowns is optional; without it markdowns are derived from the
	// products' nearest batch on every evaluation.
	Markdowns MarkdownSource
	Policy    *Policy
	Now       func() time.Time
	Logger    *zerolog.Logger
}

// NewEngine checks that the required ports are set and validates the policy.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: catalog is required")
	}
	if deps.Offers == nil {
		return nil, errors.New("pricing engine: offer source is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("pricing engine: customer source is required")
	}
	policy := DefaultPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
		if err := policy.Validate(); err != nil {
			return nil, err
		}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &Engine{
		catalog:   deps.Catalog,
		offers:    deps.Offers,
		customers: deps.Customers,
		markdowns: deps.Markdowns,
		policy:    policy,
		now: func() time.Time {
			return now().UTC()
		},
		logger: logger.With().Str("component", "pricing").Logger(),
	}, nil
}

func (e *Engine) Policy() Policy {
	return e.policy
}

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type EvaluateRequest struct {
	Lines      []CartLine `json:"lines"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	PromoCodes []string   `json:"promo_codes,omitempty"`
	// AsOf defaults to the engine clock.
	AsOf time.Time `json:"as_of,omitempty"`
}

type LineResult struct {
	ProductID         int64           `json:"product_id"`
	Name              string          `json:"name"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ListTotal         decimal.Decimal `json:"list_total"`
	Discount          decimal.Decimal `json:"discount"`
	ComputedUnitPrice decimal.Decimal `json:"computed_unit_price"`
	Total             decimal.Decimal `json:"total"`
	Offers            []string        `json:"offers,omitempty"`
}

// AppliedOffer is one offer that discounted the cart. OfferID is nil for
// expiry markdowns.
type AppliedOffer struct {
	OfferID        *int64          `json:"offer_id,omitempty"`
	Source         string          `json:"source"`
	Description    string          `json:"description"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ProductIDs     []int64         `json:"product_ids"`
}

type CartResult struct {
	CustomerID    *int64         `json:"customer_id,omitempty"`
	Lines         []LineResult   `json:"lines"`
	AppliedOffers []AppliedOffer `json:"applied_offers"`
	Totals
	EvaluatedAt time.Time `json:"evaluated_at"`
}

type candidate struct {
	offer       models.Offer
	source      string
	description string
	matches     []Match
}

// EvaluateCart prices the cart: it loads products and customer, selects the
// eligible offers, resolves conflicts between them and settles the totals.
// It reads only; nothing is persisted.
func (e *Engine) EvaluateCart(ctx context.Context, req EvaluateRequest) (*CartResult, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = e.now()
	}

	cartLines, err := mergeLines(req.Lines)
	if err != nil {
		return nil, err
	}

	var customer *models.Customer
	if req.CustomerID != nil {
		customer, err = e.customers.CustomerByID(ctx, *req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("load customer %d: %w", *req.CustomerID, err)
		}
	}

	lines := make([]Line, 0, len(cartLines))
	for i, cl := range cartLines {
		product, err := e.catalog.ProductByID(ctx, cl.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", cl.ProductID, err)
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %d", ErrProductInactive, cl.ProductID)
		}
		lines = append(lines, Line{Index: i, Product: *product, Quantity: cl.Quantity})
	}

	result := &CartResult{
		CustomerID:    req.CustomerID,
		Lines:         make([]LineResult, 0, len(lines)),
		AppliedOffers: []AppliedOffer{},
		EvaluatedAt:   asOf,
	}
	if len(lines) == 0 {
		result.Totals = Settle(e.policy, nil, customer)
		return result, nil
	}

	candidates, err := e.offerCandidates(ctx, lines, customer, req.PromoCodes, asOf)
	if err != nil {
		return nil, err
	}
	markdowns, err := e.markdownCandidates(ctx, lines, asOf)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, markdowns...)

	perLine, err := e.resolve(candidates, lines)
	if err != nil {
		return nil, err
	}

	applied := make(map[int]*AppliedOffer)
	var order []int
	for _, line := range lines {
		lr := LineResult{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice(),
			ListTotal: line.ListTotal(),
		}
		for _, c := range perLine[line.Index] {
			lr.Discount = lr.Discount.Add(c.amount)
			cand := candidates[c.cand]
			lr.Offers = append(lr.Offers, cand.description)

			ao, ok := applied[c.cand]
			if !ok {
				ao = &AppliedOffer{Source: cand.source, Description: cand.description}
				if cand.source == models.SourceOffer {
					id := cand.offer.ID
					ao.OfferID = &id
				}
				applied[c.cand] = ao
				order = append(order, c.cand)
			}
			ao.DiscountAmount = ao.DiscountAmount.Add(c.amount)
			ao.ProductIDs = append(ao.ProductIDs, line.Product.ID)
		}
		lr.Total = lr.ListTotal.Sub(lr.Discount)
		lr.ComputedUnitPrice = lr.Total.Div(decimal.NewFromInt(int64(line.Quantity)))
		result.Lines = append(result.Lines, lr)
	}

	sort.Ints(order)
	for _, idx := range order {
		result.AppliedOffers = append(result.AppliedOffers, *applied[idx])
	}
	result.Totals = Settle(e.policy, result.Lines, customer)

	e.logger.Debug().
		Int("lines", len(result.Lines)).
		Int("applied_offers", len(result.AppliedOffers)).
		Str("total", result.Total.String()).
		Msg("cart evaluated")
	return result, nil
}

func (e *Engine) offerCandidates(ctx context.Context, lines []Line, customer *models.Customer, codes []string, asOf time.Time) ([]candidate, error) {
	offers, err := e.offers.ActiveOffers(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load active offers: %w", err)
	}

	var out []candidate
	for _, offer := range offers {
		if !IsOfferActive(offer, asOf.In(e.policy.location())) {
			continue
		}
		if !IsCustomerEligible(e.policy, offer, customer, asOf) {
			continue
		}
		if !codeMatches(offer, codes) {
			continue
		}
		if offer.MaxPerCustomer != nil && customer != nil {
			used, err := e.offers.CustomerRedemptions(ctx, offer.ID, customer.ID)
			if err != nil {
				return nil, fmt.Errorf("load redemptions of offer %d: %w", offer.ID, err)
			}
			if used >= *offer.MaxPerCustomer {
				e.logger.Debug().Int64("offer_id", offer.ID).Int64("customer_id", customer.ID).Msg("per-customer cap reached")
				continue
			}
		}
		if offer.Applications == nil {
			apps, err := e.offers.OfferApplications(ctx, offer.ID)
			if err != nil {
				return nil, fmt.Errorf("load applications of offer %d: %w", offer.ID, err)
			}
			offer.Applications = apps
		}

		matches := MatchLines(offer, lines, customer)
		if len(matches) == 0 {
			continue
		}
		out = append(out, candidate{
			offer:       offer,
			source:      models.SourceOffer,
			description: offerDescription(offer),
			matches:     matches,
		})
	}
	return out, nil
}

func (e *Engine) markdownCandidates(ctx context.Context, lines []Line, asOf time.Time) ([]candidate, error) {
	var stored map[int64]Markdown
	if e.markdowns != nil {
		var err error
		stored, err = e.markdowns.Markdowns(ctx, asOf)
		if err != nil {
			return nil, fmt.Errorf("load markdowns: %w", err)
		}
	}

	var out []candidate
	for _, line := range lines {
		var (
			m  Markdown
			ok bool
		)
		if stored != nil {
			m, ok = stored[line.Product.ID]
			if ok {
				// the price or cost may have moved since the sweep
				m.Percent = CostFloor(m.Percent, line.Product.Price, line.Product.UnitCost)
				ok = m.Percent.IsPositive()
			}
		} else {
			m, ok = MarkdownFor(e.policy, line.Product, asOf)
		}
		if !ok {
			continue
		}
		offer := m.Offer(e.policy.MarkdownPriority)
		out = append(out, candidate{
			offer:       offer,
			source:      models.SourceExpiryMarkdown,
			description: m.Description(),
			matches:     MatchLines(offer, []Line{line}, nil),
		})
	}
	return out, nil
}

type contribution struct {
	cand   int
	amount decimal.Decimal
}

// resolve applies the candidates in precedence order and returns the
// contributions per line index. A non-combinable offer only takes lines no
// earlier offer discounted and then locks them; combinable offers stack on
// any line that is not locked.
func (e *Engine) resolve(candidates []candidate, lines []Line) (map[int][]contribution, error) {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		if ca.offer.Priority != cb.offer.Priority {
			return ca.offer.Priority > cb.offer.Priority
		}
		if ca.source != cb.source {
			return ca.source == models.SourceOffer
		}
		if !ca.offer.CreatedAt.Equal(cb.offer.CreatedAt) {
			return ca.offer.CreatedAt.Before(cb.offer.CreatedAt)
		}
		return ca.offer.ID < cb.offer.ID
	})

	locked := make(map[int]bool)
	touched := make(map[int]bool)
	perLine := make(map[int][]contribution)
	for _, idx := range order {
		c := candidates[idx]
		available := make([]Match, 0, len(c.matches))
		for _, m := range c.matches {
			if locked[m.Line.Index] {
				continue
			}
			if !c.offer.Combinable && touched[m.Line.Index] {
				continue
			}
			available = append(available, m)
		}
		if len(available) == 0 {
			continue
		}

		d, err := Calculate(c.offer, available)
		if err != nil {
			return nil, fmt.Errorf("offer %d: %w", c.offer.ID, err)
		}
		for _, ld := range d.Lines {
			touched[ld.Index] = true
			if !c.offer.Combinable {
				locked[ld.Index] = true
			}
			perLine[ld.Index] = append(perLine[ld.Index], contribution{cand: idx, amount: ld.Amount})
		}
	}

	for _, line := range lines {
		contribs := perLine[line.Index]
		sum := decimal.Zero
		for _, c := range contribs {
			sum = sum.Add(c.amount)
		}
		limit := line.ListTotal()
		if !sum.GreaterThan(limit) {
			continue
		}
		weights := make([]decimal.Decimal, len(contribs))
		for i, c := range contribs {
			weights[i] = c.amount
		}
		scaled := allocateByWeight(limit, weights)
		for i := range contribs {
			contribs[i].amount = scaled[i]
		}
		e.logger.Info().
			Int64("product_id", line.Product.ID).
			Str("discount", sum.String()).
			Str("line_total", limit.String()).
			Msg("stacked discounts exceed line total, scaled down")
	}
	return perLine, nil
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(in []CartLine) ([]CartLine, error) {
	out := make([]CartLine, 0, len(in))
	pos := make(map[int64]int, len(in))
	for i, l := range in {
		if l.ProductID <= 0 {
			return nil, fmt.Errorf("%w: line %d has no product", ErrInvalidCart, i)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidCart, i)
		}
		if j, ok := pos[l.ProductID]; ok {
			out[j].Quantity += l.Quantity
			continue
		}
		pos[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}
