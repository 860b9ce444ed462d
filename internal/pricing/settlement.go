package pricing

import (
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

// Totals is the settlement of a priced cart.
type Totals struct {
	ListSubtotal        decimal.Decimal `json:"list_subtotal"`
	OfferDiscount       decimal.Decimal `json:"offer_discount"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	VIPDiscount         decimal.Decimal `json:"vip_discount"`
	DiscountTotal       decimal.Decimal `json:"discount_total"`
	Tax                 decimal.Decimal `json:"tax"`
	Total               decimal.Decimal `json:"total"`
	LoyaltyPointsEarned int             `json:"loyalty_points_earned"`
}

// Settle applies the VIP discount, tax and loyalty accrual on top of the
// per-line offer results. The VIP discount comes after offers and tax is
// charged on the amount left after every discount.
func Settle(policy Policy, lines []LineResult, customer *models.Customer) Totals {
	var t Totals
	for _, l := range lines {
		t.ListSubtotal = t.ListSubtotal.Add(l.ListTotal)
		t.OfferDiscount = t.OfferDiscount.Add(l.Discount)
	}
	t.Subtotal = t.ListSubtotal.Sub(t.OfferDiscount)

	if customer != nil && customer.IsVIP {
		t.VIPDiscount = t.Subtotal.Mul(policy.VIPRate)
	}
	taxable := t.Subtotal.Sub(t.VIPDiscount)
	t.Tax = taxable.Mul(policy.TaxRate)
	t.Total = taxable.Add(t.Tax)
	t.DiscountTotal = t.OfferDiscount.Add(t.VIPDiscount)

	if customer != nil {
		t.LoyaltyPointsEarned = int(t.Total.Mul(policy.PointsRate).Floor().IntPart())
	}
	return t
}
