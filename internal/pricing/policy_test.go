package pricing

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/stretchr/testify/require"
)

func TestParsePolicyOverridesDefaults(t *testing.T) {
	p, err := ParsePolicy([]byte(`
tax_rate: "0.08"
loyalty:
  lowest_tier: Silver
  points_threshold: 1000
new_customer_days: 7
markdown:
  horizon_days: 15
  priority: 4
  tiers:
    - max_days: 15
      percent: "10"
    - max_days: 5
      percent: "25"
`))
	require.NoError(t, err)
	require.True(t, p.TaxRate.Equal(dec("0.08")))
	require.True(t, p.VIPRate.Equal(dec("0.05")), "unset keys keep defaults")
	require.Equal(t, models.MembershipSilver, p.LowestTier)
	require.Equal(t, 1000, p.LoyaltyPointsThreshold)
	require.Equal(t, 7*24*time.Hour, p.NewCustomerWindow)
	require.Equal(t, 15, p.MarkdownHorizonDays)
	require.Equal(t, 4, p.MarkdownPriority)
	require.Equal(t, 5, p.MarkdownTiers[0].MaxDays, "tiers are sorted")

	pct, ok := p.TierPercent(3)
	require.True(t, ok)
	require.True(t, pct.Equal(dec("25")))
}

func TestParsePolicyRejectsBadValues(t *testing.T) {
	_, err := ParsePolicy([]byte(`tax_rate: "abc"`))
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = ParsePolicy([]byte(`vip_rate: "1.5"`))
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = ParsePolicy([]byte("markdown:\n  tiers:\n    - max_days: 5\n      percent: \"150\"\n"))
	require.ErrorIs(t, err, ErrInvalidPolicy)

	for _, levels := range []string{
		"    - {level: platinum, min_points: 3000}\n",
		"    - {level: silver, min_points: 500}\n    - {level: silver, min_points: 900}\n",
		"    - {level: silver, min_points: 500}\n    - {level: gold, min_points: 500}\n",
		"    - {level: silver, min_points: -1}\n",
	} {
		_, err = ParsePolicy([]byte("loyalty:\n  levels:\n" + levels))
		require.ErrorIs(t, err, ErrInvalidPolicy, levels)
	}
}

func TestParsePolicyTimeZone(t *testing.T) {
	p, err := ParsePolicy([]byte(`time_zone: America/Bogota`))
	require.NoError(t, err)
	require.Equal(t, "America/Bogota", p.Location.String())
	require.Equal(t, time.UTC, DefaultPolicy().Location)

	_, err = ParsePolicy([]byte(`time_zone: Mars/Olympus`))
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestParsePolicyLoyaltyLevels(t *testing.T) {
	p, err := ParsePolicy([]byte(`
loyalty:
  levels:
    - level: Premium
      min_points: 3000
    - level: bronze
      min_points: 0
    - level: gold
      min_points: 1000
`))
	require.NoError(t, err)
	require.Equal(t, []LoyaltyLevel{
		{Level: models.MembershipBronze, MinPoints: 0},
		{Level: models.MembershipGold, MinPoints: 1000},
		{Level: models.MembershipPremium, MinPoints: 3000},
	}, p.LoyaltyLevels)
}

func TestLevelFor(t *testing.T) {
	ladder := DefaultPolicy().LoyaltyLevels

	tests := []struct {
		name    string
		current models.MembershipLevel
		points  int
		want    models.MembershipLevel
	}{
		{"stays below next step", models.MembershipBronze, 499, models.MembershipBronze},
		{"reaches silver", models.MembershipBronze, 500, models.MembershipSilver},
		{"skips straight to gold", models.MembershipBronze, 2000, models.MembershipGold},
		{"never demotes", models.MembershipGold, 10, models.MembershipGold},
		{"keeps level off the ladder", models.MembershipPremium, 5000, models.MembershipPremium},
		{"unset level joins the ladder", "", 700, models.MembershipSilver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, LevelFor(ladder, tt.current, tt.points))
		})
	}

	require.Equal(t, models.MembershipSilver, LevelFor(nil, models.MembershipSilver, 99999))
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	require.True(t, p.TaxRate.Equal(dec("0.16")))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`vip_rate: "0.1"`), 0o600))
	p, err = LoadPolicy(path)
	require.NoError(t, err)
	require.True(t, p.VIPRate.Equal(dec("0.1")))

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestExamplePolicyMatchesDefaults(t *testing.T) {
	p, err := LoadPolicy(filepath.Join("..", "..", "policy.example.yaml"))
	require.NoError(t, err)

	def := DefaultPolicy()
	require.True(t, p.TaxRate.Equal(def.TaxRate))
	require.True(t, p.VIPRate.Equal(def.VIPRate))
	require.True(t, p.PointsRate.Equal(def.PointsRate))
	require.Equal(t, def.LowestTier, p.LowestTier)
	require.Equal(t, def.LoyaltyPointsThreshold, p.LoyaltyPointsThreshold)
	require.Equal(t, def.NewCustomerWindow, p.NewCustomerWindow)
	require.Equal(t, def.MarkdownHorizonDays, p.MarkdownHorizonDays)
	require.Equal(t, def.LoyaltyLevels, p.LoyaltyLevels)
	require.Len(t, p.MarkdownTiers, len(def.MarkdownTiers))
	for i := range def.MarkdownTiers {
		require.Equal(t, def.MarkdownTiers[i].MaxDays, p.MarkdownTiers[i].MaxDays)
		require.True(t, p.MarkdownTiers[i].Percent.Equal(def.MarkdownTiers[i].Percent))
	}
}
