package pricing

import (
	"strings"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

// Line is a cart line priced at the product's list price.
type Line struct {
	Index    int
	Product  models.Product
	Quantity int
}

func (l Line) UnitPrice() decimal.Decimal {
	return l.Product.Price
}

func (l Line) ListTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Match ties a line to the offer applications that selected it. Application
// is the first one and carries the effective thresholds for the line.
type Match struct {
	Line        Line
	Application models.OfferApplication
	// AppIndexes lists every application (by position in offer.Applications) that selected the line.
	AppIndexes []int
}

// BuyPay returns the N and M in effect for the match.
func (m Match) BuyPay(offer models.Offer) (int, int) {
	buy, pay := m.Application.BuyQuantity, m.Application.PayQuantity
	if buy == 0 {
		buy = offer.BuyQuantity
	}
	if pay == 0 {
		pay = offer.PayQuantity
	}
	return buy, pay
}

// MatchLines returns the lines offer applies to, or nil when the offer-level
// thresholds are not met.
func MatchLines(offer models.Offer, lines []Line, customer *models.Customer) []Match {
	if len(offer.Applications) == 0 {
		return nil
	}

	var matches []Match
	quantity := 0
	for _, line := range lines {
		var m *Match
		for i, app := range offer.Applications {
			if !applies(app, line, customer) {
				continue
			}
			if line.Quantity < app.MinQuantity {
				continue
			}
			if m == nil {
				m = &Match{Line: line, Application: app}
			}
			m.AppIndexes = append(m.AppIndexes, i)
		}
		if m != nil {
			matches = append(matches, *m)
			quantity += line.Quantity
		}
	}
	if len(matches) == 0 {
		return nil
	}

	if quantity < offer.MinQuantity {
		return nil
	}
	if offer.MinPurchase.IsPositive() {
		subtotal := decimal.Zero
		for _, line := range lines {
			subtotal = subtotal.Add(line.ListTotal())
		}
		if subtotal.LessThan(offer.MinPurchase) {
			return nil
		}
	}
	return matches
}

func applies(app models.OfferApplication, line Line, customer *models.Customer) bool {
	switch app.Target {
	case models.TargetProduct:
		return app.TargetID == line.Product.ID
	case models.TargetCategory:
		return sameName(app.TargetName, line.Product.Category)
	case models.TargetBrand:
		return sameName(app.TargetName, line.Product.Brand)
	case models.TargetCustomer:
		return customer != nil && customer.ID == app.TargetID
	case models.TargetAll:
		return true
	default:
		return false
	}
}

func sameName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
