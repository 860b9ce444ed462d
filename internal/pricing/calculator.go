package pricing

import (
	"fmt"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

// LineDiscount is the amount an offer takes off one cart line.
type LineDiscount struct {
	Index     int
	ProductID int64
	Amount    decimal.Decimal
}

// Discount is the outcome of applying one offer to its matched lines.
type Discount struct {
	Lines []LineDiscount
}

func (d Discount) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

// Calculate computes the per-line discount of offer over matches. Amounts
// are taken from the list price and clamped to [0, line total]; lines with
// a zero amount are omitted.
func Calculate(offer models.Offer, matches []Match) (Discount, error) {
	var d Discount
	switch offer.Type {
	case models.OfferTypeFlatDiscount:
		for _, m := range matches {
			var amount decimal.Decimal
			if offer.DiscountKind == models.DiscountFixed {
				amount = offer.DiscountValue.Mul(decimal.NewFromInt(int64(m.Line.Quantity)))
			} else {
				amount = m.Line.ListTotal().Mul(offer.DiscountValue).Div(hundred)
			}
			d.add(m.Line, amount)
		}

	case models.OfferTypeSpecialPrice:
		for _, m := range matches {
			if !offer.DiscountValue.LessThan(m.Line.UnitPrice()) {
				continue
			}
			amount := m.Line.UnitPrice().Sub(offer.DiscountValue).Mul(decimal.NewFromInt(int64(m.Line.Quantity)))
			d.add(m.Line, amount)
		}

	case models.OfferTypeNForM:
		for _, m := range matches {
			buy, pay := m.BuyPay(offer)
			if !validNForM(buy, pay) {
				continue
			}
			sets := m.Line.Quantity / buy
			free := int64(sets * (buy - pay))
			d.add(m.Line, m.Line.UnitPrice().Mul(decimal.NewFromInt(free)))
		}

	case models.OfferTypeBundle:
		if !bundleComplete(offer, matches) {
			return Discount{}, nil
		}
		combined := decimal.Zero
		weights := make([]decimal.Decimal, len(matches))
		for i, m := range matches {
			weights[i] = m.Line.ListTotal()
			combined = combined.Add(weights[i])
		}
		var amounts []decimal.Decimal
		if offer.DiscountKind == models.DiscountFixed {
			amounts = allocateByWeight(decimal.Min(offer.DiscountValue, combined), weights)
		} else {
			amounts = make([]decimal.Decimal, len(matches))
			for i, w := range weights {
				amounts[i] = w.Mul(offer.DiscountValue).Div(hundred)
			}
		}
		for i, m := range matches {
			d.add(m.Line, amounts[i])
		}

	default:
		return Discount{}, fmt.Errorf("%w: %q", ErrUnknownOfferType, offer.Type)
	}
	return d, nil
}

func (d *Discount) add(line Line, amount decimal.Decimal) {
	amount = clamp(amount, line.ListTotal())
	if !amount.IsPositive() {
		return
	}
	d.Lines = append(d.Lines, LineDiscount{Index: line.Index, ProductID: line.Product.ID, Amount: amount})
}

func clamp(amount, max decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(max) {
		return max
	}
	return amount
}

// bundleComplete reports whether every application of the offer can be
// filled by its own cart line. One line never satisfies two applications.
func bundleComplete(offer models.Offer, matches []Match) bool {
	if len(offer.Applications) == 0 {
		return false
	}
	// owner[app] is the match index currently holding that application.
	owner := make([]int, len(offer.Applications))
	for i := range owner {
		owner[i] = -1
	}
	var assign func(m int, seen []bool) bool
	assign = func(m int, seen []bool) bool {
		for _, app := range matches[m].AppIndexes {
			if app < 0 || app >= len(owner) || seen[app] {
				continue
			}
			seen[app] = true
			if owner[app] < 0 || assign(owner[app], seen) {
				owner[app] = m
				return true
			}
		}
		return false
	}
	filled := 0
	for m := range matches {
		if assign(m, make([]bool, len(owner))) {
			filled++
		}
	}
	return filled == len(offer.Applications)
}

func flatLabel(offer models.Offer) string {
	if offer.DiscountKind == models.DiscountFixed {
		if offer.Type == models.OfferTypeBundle {
			return "$" + offer.DiscountValue.StringFixed(2) + " off"
		}
		return "$" + offer.DiscountValue.StringFixed(2) + " off per unit"
	}
	return offer.DiscountValue.String() + "% off"
}

// allocateByWeight splits amount across weights proportionally. The last
// positive weight absorbs the remainder so the shares sum to amount exactly.
func allocateByWeight(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	allocations := make([]decimal.Decimal, len(weights))
	for i := range allocations {
		allocations[i] = decimal.Zero
	}
	if len(weights) == 0 || !amount.IsPositive() {
		return allocations
	}

	total := decimal.Zero
	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			total = total.Add(w)
			last = i
		}
	}
	if last < 0 {
		return allocations
	}

	distributed := decimal.Zero
	for i, w := range weights {
		if !w.IsPositive() {
			continue
		}
		if i == last {
			allocations[i] = amount.Sub(distributed)
			break
		}
		share := amount.Mul(w).Div(total)
		allocations[i] = share
		distributed = distributed.Add(share)
	}
	return allocations
}

// offerDescription is the label shown on receipts for an applied offer.
func offerDescription(offer models.Offer) string {
	var label string
	switch offer.Type {
	case models.OfferTypeFlatDiscount:
		label = flatLabel(offer)
	case models.OfferTypeSpecialPrice:
		label = "special price $" + offer.DiscountValue.StringFixed(2)
	case models.OfferTypeNForM:
		label = fmt.Sprintf("%d for %d", offer.BuyQuantity, offer.PayQuantity)
	case models.OfferTypeBundle:
		label = "bundle " + flatLabel(offer)
	}
	if offer.Name == "" {
		return label
	}
	if label == "" {
		return offer.Name
	}
	return offer.Name + " (" + label + ")"
}
