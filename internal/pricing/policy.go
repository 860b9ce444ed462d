package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Policy holds the store-wide constants the engine depends on. The values
// changed between releases of the store software, so they live in a policy
// table rather than in code.
type Policy struct {
	TaxRate                decimal.Decimal
	VIPRate                decimal.Decimal
	PointsRate             decimal.Decimal
	LowestTier             models.MembershipLevel
	LoyaltyPointsThreshold int
	// LoyaltyLevels is sorted by MinPoints ascending.
	LoyaltyLevels       []LoyaltyLevel
	NewCustomerWindow   time.Duration
	MarkdownHorizonDays int
	MarkdownPriority    int
	// Location is the store's wall clock, used for offer schedules.
	Location *time.Location
	// MarkdownTiers is sorted by MaxDays ascending.
	MarkdownTiers []MarkdownTier
}

// LoyaltyLevel is the membership level a customer reaches once their
// balance is at least MinPoints.
type LoyaltyLevel struct {
	Level     models.MembershipLevel
	MinPoints int
}

// MarkdownTier grants Percent off to products expiring within MaxDays days.
type MarkdownTier struct {
	MaxDays int
	Percent decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:                decimal.RequireFromString("0.16"),
		VIPRate:                decimal.RequireFromString("0.05"),
		PointsRate:             decimal.RequireFromString("0.1"),
		LowestTier:             models.MembershipBronze,
		LoyaltyPointsThreshold: 500,
		LoyaltyLevels: []LoyaltyLevel{
			{Level: models.MembershipBronze, MinPoints: 0},
			{Level: models.MembershipSilver, MinPoints: 500},
			{Level: models.MembershipGold, MinPoints: 1500},
		},
		NewCustomerWindow:   30 * 24 * time.Hour,
		MarkdownHorizonDays: 30,
		MarkdownPriority:    0,
		Location:            time.UTC,
		MarkdownTiers: []MarkdownTier{
			{MaxDays: 10, Percent: decimal.NewFromInt(30)},
			{MaxDays: 20, Percent: decimal.NewFromInt(20)},
			{MaxDays: 30, Percent: decimal.NewFromInt(10)},
		},
	}
}

type policyFile struct {
	TaxRate    *string `yaml:"tax_rate"`
	VIPRate    *string `yaml:"vip_rate"`
	PointsRate *string `yaml:"points_rate"`
	Loyalty    struct {
		LowestTier      *string `yaml:"lowest_tier"`
		PointsThreshold *int    `yaml:"points_threshold"`
		Levels          []struct {
			Level     string `yaml:"level"`
			MinPoints int    `yaml:"min_points"`
		} `yaml:"levels"`
	} `yaml:"loyalty"`
	NewCustomerDays *int    `yaml:"new_customer_days"`
	TimeZone        *string `yaml:"time_zone"`
	Markdown        struct {
		HorizonDays *int `yaml:"horizon_days"`
		Priority    *int `yaml:"priority"`
		Tiers       []struct {
			MaxDays int    `yaml:"max_days"`
			Percent string `yaml:"percent"`
		} `yaml:"tiers"`
	} `yaml:"markdown"`
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep their
// DefaultPolicy value. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (Policy, error) {
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	p := DefaultPolicy()
	rates := []struct {
		name string
		src  *string
		dst  *decimal.Decimal
	}{
		{"tax_rate", raw.TaxRate, &p.TaxRate},
		{"vip_rate", raw.VIPRate, &p.VIPRate},
		{"points_rate", raw.PointsRate, &p.PointsRate},
	}
	for _, r := range rates {
		if r.src == nil {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(*r.src))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, r.name, err)
		}
		*r.dst = v
	}

	if raw.Loyalty.LowestTier != nil {
		p.LowestTier = models.MembershipLevel(strings.ToLower(strings.TrimSpace(*raw.Loyalty.LowestTier)))
	}
	if raw.Loyalty.PointsThreshold != nil {
		p.LoyaltyPointsThreshold = *raw.Loyalty.PointsThreshold
	}
	if len(raw.Loyalty.Levels) > 0 {
		levels := make([]LoyaltyLevel, 0, len(raw.Loyalty.Levels))
		for _, l := range raw.Loyalty.Levels {
			levels = append(levels, LoyaltyLevel{
				Level:     models.MembershipLevel(strings.ToLower(strings.TrimSpace(l.Level))),
				MinPoints: l.MinPoints,
			})
		}
		p.LoyaltyLevels = levels
	}
	if raw.NewCustomerDays != nil {
		p.NewCustomerWindow = time.Duration(*raw.NewCustomerDays) * 24 * time.Hour
	}
	if raw.TimeZone != nil {
		loc, err := time.LoadLocation(strings.TrimSpace(*raw.TimeZone))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: time_zone: %v", ErrInvalidPolicy, err)
		}
		p.Location = loc
	}
	if raw.Markdown.HorizonDays != nil {
		p.MarkdownHorizonDays = *raw.Markdown.HorizonDays
	}
	if raw.Markdown.Priority != nil {
		p.MarkdownPriority = *raw.Markdown.Priority
	}
	if len(raw.Markdown.Tiers) > 0 {
		tiers := make([]MarkdownTier, 0, len(raw.Markdown.Tiers))
		for _, t := range raw.Markdown.Tiers {
			pct, err := decimal.NewFromString(strings.TrimSpace(t.Percent))
			if err != nil {
				return Policy{}, fmt.Errorf("%w: markdown tier %d days: %v", ErrInvalidPolicy, t.MaxDays, err)
			}
			tiers = append(tiers, MarkdownTier{MaxDays: t.MaxDays, Percent: pct})
		}
		p.MarkdownTiers = tiers
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks ranges and sorts the loyalty levels and markdown tiers.
func (p *Policy) Validate() error {
	one := decimal.NewFromInt(1)
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(one) {
		return fmt.Errorf("%w: tax_rate must be within [0, 1]", ErrInvalidPolicy)
	}
	if p.VIPRate.IsNegative() || p.VIPRate.GreaterThan(one) {
		return fmt.Errorf("%w: vip_rate must be within [0, 1]", ErrInvalidPolicy)
	}
	if p.PointsRate.IsNegative() {
		return fmt.Errorf("%w: points_rate cannot be negative", ErrInvalidPolicy)
	}
	if p.NewCustomerWindow < 0 {
		return fmt.Errorf("%w: new_customer_days cannot be negative", ErrInvalidPolicy)
	}
	if p.MarkdownHorizonDays < 0 {
		return fmt.Errorf("%w: markdown horizon cannot be negative", ErrInvalidPolicy)
	}
	seen := make(map[models.MembershipLevel]bool, len(p.LoyaltyLevels))
	for _, l := range p.LoyaltyLevels {
		switch l.Level {
		case models.MembershipBronze, models.MembershipSilver, models.MembershipGold, models.MembershipPremium:
		default:
			return fmt.Errorf("%w: unknown loyalty level %q", ErrInvalidPolicy, l.Level)
		}
		if seen[l.Level] {
			return fmt.Errorf("%w: loyalty level %s listed twice", ErrInvalidPolicy, l.Level)
		}
		seen[l.Level] = true
		if l.MinPoints < 0 {
			return fmt.Errorf("%w: loyalty level min_points cannot be negative", ErrInvalidPolicy)
		}
	}
	sort.SliceStable(p.LoyaltyLevels, func(i, j int) bool {
		return p.LoyaltyLevels[i].MinPoints < p.LoyaltyLevels[j].MinPoints
	})
	for i := 1; i < len(p.LoyaltyLevels); i++ {
		if p.LoyaltyLevels[i].MinPoints == p.LoyaltyLevels[i-1].MinPoints {
			return fmt.Errorf("%w: loyalty levels %s and %s share min_points %d", ErrInvalidPolicy,
				p.LoyaltyLevels[i-1].Level, p.LoyaltyLevels[i].Level, p.LoyaltyLevels[i].MinPoints)
		}
	}
	for _, t := range p.MarkdownTiers {
		if t.MaxDays < 0 {
			return fmt.Errorf("%w: markdown tier max_days cannot be negative", ErrInvalidPolicy)
		}
		if t.Percent.IsNegative() || t.Percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: markdown tier percent must be within [0, 100]", ErrInvalidPolicy)
		}
	}
	sort.SliceStable(p.MarkdownTiers, func(i, j int) bool {
		return p.MarkdownTiers[i].MaxDays < p.MarkdownTiers[j].MaxDays
	})
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// LevelFor returns the level a customer at current holding points belongs
// on. Levels only move up the ladder. A current level that is not on the
// ladder, such as a premium membership granted by hand, is kept.
func LevelFor(levels []LoyaltyLevel, current models.MembershipLevel, points int) models.MembershipLevel {
	rank := -1
	for i, l := range levels {
		if l.Level == current {
			rank = i
		}
	}
	if rank < 0 && current != "" {
		return current
	}
	next := current
	for i, l := range levels {
		if points >= l.MinPoints && i > rank {
			next = l.Level
		}
	}
	return next
}
