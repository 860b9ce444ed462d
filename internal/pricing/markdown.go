package pricing

import (
	"fmt"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

// Markdown is the automatic discount granted to a product whose next batch
// is close to expiry.
type Markdown struct {
	ProductID int64           `json:"product_id"`
	BatchID   *int64          `json:"batch_id,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
	DaysLeft  int             `json:"days_left"`
	Percent   decimal.Decimal `json:"percent"`
}

// DaysUntil counts calendar days, in UTC, from now to expiresAt. A product
// expiring today has 0 days left.
func DaysUntil(now, expiresAt time.Time) int {
	return int(utcDate(expiresAt).Sub(utcDate(now)).Hours() / 24)
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TierPercent returns the percentage of the first tier covering daysLeft.
func (p Policy) TierPercent(daysLeft int) (decimal.Decimal, bool) {
	if daysLeft < 0 || daysLeft > p.MarkdownHorizonDays {
		return decimal.Zero, false
	}
	for _, t := range p.MarkdownTiers {
		if daysLeft <= t.MaxDays {
			return t.Percent, true
		}
	}
	return decimal.Zero, false
}

// CostFloor caps pct so the discounted price stays at or above cost. An
// absent cost leaves pct untouched.
func CostFloor(pct, price decimal.Decimal, cost decimal.NullDecimal) decimal.Decimal {
	if !cost.Valid || !price.IsPositive() {
		return pct
	}
	margin := decimal.NewFromInt(1).Sub(cost.Decimal.Div(price)).Mul(hundred)
	if margin.IsNegative() {
		margin = decimal.Zero
	}
	return decimal.Min(pct, margin)
}

// MarkdownFor computes the markdown of a product from its nearest batch
// (ExpiresAt and UnitCost). The second result is false when no markdown applies.
func MarkdownFor(policy Policy, product models.Product, now time.Time) (Markdown, bool) {
	if product.ExpiresAt == nil || !product.Price.IsPositive() {
		return Markdown{}, false
	}
	days := DaysUntil(now, *product.ExpiresAt)
	pct, ok := policy.TierPercent(days)
	if !ok {
		return Markdown{}, false
	}
	pct = CostFloor(pct, product.Price, product.UnitCost)
	if !pct.IsPositive() {
		return Markdown{}, false
	}
	return Markdown{
		ProductID: product.ID,
		BatchID:   product.NearestBatchID,
		ExpiresAt: *product.ExpiresAt,
		DaysLeft:  days,
		Percent:   pct,
	}, true
}

// GenerateMarkdowns returns the markdowns of every product that qualifies at now.
func GenerateMarkdowns(policy Policy, products []models.Product, now time.Time) map[int64]Markdown {
	out := make(map[int64]Markdown)
	for _, p := range products {
		if !p.Active || p.StockQuantity <= 0 {
			continue
		}
		if m, ok := MarkdownFor(policy, p, now); ok {
			out[p.ID] = m
		}
	}
	return out
}

// Offer expresses the markdown as a combinable flat percentage offer on its product.
func (m Markdown) Offer(priority int) models.Offer {
	return models.Offer{
		Name:          "Expiry markdown",
		Type:          models.OfferTypeFlatDiscount,
		DiscountKind:  models.DiscountPercentage,
		DiscountValue: m.Percent,
		Audience:      models.AudienceGeneral,
		Combinable:    true,
		Priority:      priority,
		Active:        true,
		Applications: []models.OfferApplication{
			{Target: models.TargetProduct, TargetID: m.ProductID},
		},
	}
}

func (m Markdown) Description() string {
	return fmt.Sprintf("Expiry markdown %s%% off (%d days left)", m.Percent.String(), m.DaysLeft)
}
