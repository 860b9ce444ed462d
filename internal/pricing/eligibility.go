package pricing

import (
	"strings"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
)

// IsOfferActive reports whether offer can be applied at now: enabled, inside
// its validity window and recurring schedule, and below its global
// redemption cap.
func IsOfferActive(offer models.Offer, now time.Time) bool {
	if !offer.Active {
		return false
	}
	if now.Before(offer.StartsAt) || now.After(offer.EndsAt) {
		return false
	}
	if !InSchedule(offer.Schedule, now) {
		return false
	}
	if offer.MaxRedemptions != nil && offer.CurrentRedemptions >= *offer.MaxRedemptions {
		return false
	}
	return true
}

// IsCustomerEligible checks the offer audience against the customer. A nil
// customer is an anonymous sale and only qualifies for general offers.
// Audiences outside the known set are let through.
func IsCustomerEligible(policy Policy, offer models.Offer, customer *models.Customer, now time.Time) bool {
	switch offer.Audience {
	case models.AudienceGeneral, "":
		return true
	case models.AudiencePremium:
		return customer != nil && customer.MembershipLevel == models.MembershipPremium
	case models.AudienceLoyalty:
		if customer == nil {
			return false
		}
		level := customer.MembershipLevel
		if level != "" && level != policy.LowestTier {
			return true
		}
		return customer.LoyaltyPoints > policy.LoyaltyPointsThreshold
	case models.AudienceNewCustomer:
		if customer == nil || customer.RegisteredAt.IsZero() {
			return false
		}
		return now.Sub(customer.RegisteredAt) <= policy.NewCustomerWindow
	default:
		return true
	}
}

// codeMatches reports whether a code-gated offer was unlocked by one of codes.
func codeMatches(offer models.Offer, codes []string) bool {
	if !offer.RequiresCode {
		return true
	}
	want := strings.TrimSpace(offer.PromoCode)
	if want == "" {
		return false
	}
	for _, c := range codes {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}
