package pricing

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateOffer checks an offer definition before it is persisted. Every
// problem found is returned, joined; each one is a *ValidationError.
func ValidateOffer(offer models.Offer) error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(offer.Name) == "" {
		fail("name", "is required")
	}

	switch offer.Type {
	case models.OfferTypeFlatDiscount, models.OfferTypeBundle:
		switch offer.DiscountKind {
		case models.DiscountPercentage:
			if !offer.DiscountValue.IsPositive() || offer.DiscountValue.GreaterThan(hundred) {
				fail("discount_value", "percentage must be greater than 0 and at most 100")
			}
		case models.DiscountFixed:
			if !offer.DiscountValue.IsPositive() {
				fail("discount_value", "fixed amount must be greater than 0")
			}
		default:
			fail("discount_kind", "must be percentage or fixed")
		}
	case models.OfferTypeSpecialPrice:
		if offer.DiscountValue.IsNegative() {
			fail("discount_value", "special price cannot be negative")
		}
	case models.OfferTypeNForM:
		if !validNForM(offer.BuyQuantity, offer.PayQuantity) {
			fail("buy_quantity", "n_for_m requires buy > pay >= 1")
		}
	default:
		fail("type", "unknown offer type "+string(offer.Type))
	}

	if offer.StartsAt.IsZero() || offer.EndsAt.IsZero() {
		fail("starts_at", "validity window is required")
	} else if offer.EndsAt.Before(offer.StartsAt) {
		fail("ends_at", "must not be before starts_at")
	}

	if offer.RequiresCode && strings.TrimSpace(offer.PromoCode) == "" {
		fail("promo_code", "is required when requires_code is set")
	}
	if offer.MinQuantity < 0 {
		fail("min_quantity", "cannot be negative")
	}
	if offer.MinPurchase.IsNegative() {
		fail("min_purchase", "cannot be negative")
	}
	if offer.MaxRedemptions != nil && *offer.MaxRedemptions < 1 {
		fail("max_redemptions", "must be at least 1 when set")
	}
	if offer.MaxPerCustomer != nil && *offer.MaxPerCustomer < 1 {
		fail("max_per_customer", "must be at least 1 when set")
	}

	if sch := offer.Schedule; sch != nil {
		start, startErr := ParseClock(sch.Start)
		end, endErr := ParseClock(sch.End)
		switch {
		case startErr != nil:
			fail("schedule.start", startErr.Error())
		case endErr != nil:
			fail("schedule.end", endErr.Error())
		case start == end:
			fail("schedule.end", "must differ from start")
		}
		for i, d := range sch.Days {
			if d < time.Sunday || d > time.Saturday {
				fail("schedule.days", "weekday must be 0 (Sunday) to 6 (Saturday)")
				break
			}
			if slices.Contains(sch.Days[:i], d) {
				fail("schedule.days", "repeats "+d.String())
				break
			}
		}
	}

	if len(offer.Applications) == 0 {
		fail("applications", "at least one target is required")
	}
	if offer.Type == models.OfferTypeBundle && len(offer.Applications) < 2 {
		fail("applications", "a bundle needs at least two targets")
	}
	seen := make(map[string]bool, len(offer.Applications))
	for _, app := range offer.Applications {
		key := fmt.Sprintf("%s:%d:%s", app.Target, app.TargetID, strings.ToLower(strings.TrimSpace(app.TargetName)))
		if seen[key] {
			fail("applications", "duplicate target "+string(app.Target))
		}
		seen[key] = true
		switch app.Target {
		case models.TargetProduct, models.TargetCustomer:
			if app.TargetID <= 0 {
				fail("applications.target_id", "is required for "+string(app.Target)+" targets")
			}
		case models.TargetCategory, models.TargetBrand:
			if strings.TrimSpace(app.TargetName) == "" {
				fail("applications.target_name", "is required for "+string(app.Target)+" targets")
			}
		case models.TargetAll:
			if offer.Type == models.OfferTypeBundle {
				fail("applications.target", "a bundle cannot target every product")
			}
		default:
			fail("applications.target", "unknown target "+string(app.Target))
		}
		if app.MinQuantity < 0 {
			fail("applications.min_quantity", "cannot be negative")
		}
		if offer.Type == models.OfferTypeNForM && (app.BuyQuantity != 0 || app.PayQuantity != 0) {
			buy, pay := app.BuyQuantity, app.PayQuantity
			if buy == 0 {
				buy = offer.BuyQuantity
			}
			if pay == 0 {
				pay = offer.PayQuantity
			}
			if !validNForM(buy, pay) {
				fail("applications.buy_quantity", "n_for_m requires buy > pay >= 1")
			}
		}
	}

	return errors.Join(errs...)
}

func validNForM(buy, pay int) bool {
	return pay >= 1 && buy > pay
}
