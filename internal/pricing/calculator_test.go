package pricing

import (
	"testing"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCalculateFlatPercentage(t *testing.T) {
	p := product(1, "65.99")
	o := percentOff(1, "25", 1)

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(p, 1)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("16.4975")), d.Total().String())

	d, err = Calculate(o, MatchLines(o, []Line{lineOf(p, 3)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("49.4925")), d.Total().String())
}

func TestCalculateFlatFixedClampsToLineTotal(t *testing.T) {
	p := product(1, "3.00")
	o := offer(1, models.OfferTypeFlatDiscount, 1)
	o.DiscountKind = models.DiscountFixed
	o.DiscountValue = dec("5")

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(p, 2)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("6")), d.Total().String())
}

func TestCalculateNForM(t *testing.T) {
	p := product(1, "10.00")
	o := offer(1, models.OfferTypeNForM, 1)
	o.BuyQuantity, o.PayQuantity = 2, 1

	tests := []struct {
		qty  int
		want string
	}{
		{5, "20"},
		{4, "20"},
		{1, "0"},
	}
	for _, tt := range tests {
		d, err := Calculate(o, MatchLines(o, []Line{lineOf(p, tt.qty)}, nil))
		require.NoError(t, err)
		require.True(t, d.Total().Equal(dec(tt.want)), "qty %d: got %s", tt.qty, d.Total())
	}
}

func TestCalculateNForMApplicationOverride(t *testing.T) {
	p := product(1, "10.00")
	o := offer(1, models.OfferTypeNForM, 1)
	o.BuyQuantity, o.PayQuantity = 2, 1
	o.Applications[0].BuyQuantity = 3
	o.Applications[0].PayQuantity = 2

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(p, 6)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("20")), d.Total().String())
}

func TestCalculateSpecialPriceNeverRaisesPrice(t *testing.T) {
	cheap := product(1, "8.00")
	dear := product(2, "15.00")
	o := offer(1, models.OfferTypeSpecialPrice, 1, 2)
	o.DiscountValue = dec("10.00")

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(cheap, 2), lineOf(dear, 2)}, nil))
	require.NoError(t, err)
	require.Len(t, d.Lines, 1)
	require.Equal(t, int64(2), d.Lines[0].ProductID)
	require.True(t, d.Total().Equal(dec("10")), d.Total().String())
}

func TestCalculateBundleAllOrNothing(t *testing.T) {
	a := product(1, "30.00")
	b := product(2, "10.00")
	o := offer(1, models.OfferTypeBundle, 1, 2)
	o.DiscountKind = models.DiscountFixed
	o.DiscountValue = dec("8")

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(a, 1)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().IsZero())

	d, err = Calculate(o, MatchLines(o, []Line{lineOf(a, 1), lineOf(b, 1)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("8")), d.Total().String())
	require.Len(t, d.Lines, 2)
	require.True(t, d.Lines[0].Amount.Equal(dec("6")), d.Lines[0].Amount.String())
	require.True(t, d.Lines[1].Amount.Equal(dec("2")), d.Lines[1].Amount.String())
}

func TestCalculateBundlePercentage(t *testing.T) {
	a := product(1, "30.00")
	b := product(2, "10.00")
	o := offer(1, models.OfferTypeBundle, 1, 2)
	o.DiscountKind = models.DiscountPercentage
	o.DiscountValue = dec("10")

	d, err := Calculate(o, MatchLines(o, []Line{lineOf(a, 1), lineOf(b, 2)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("5")), d.Total().String())
}

func TestCalculateBundleNeedsOneLinePerTarget(t *testing.T) {
	whisky := product(1, "30.00")
	other := product(2, "20.00")
	o := offer(1, models.OfferTypeBundle, 1)
	o.Applications = append(o.Applications, models.OfferApplication{OfferID: 1, Target: models.TargetBrand, TargetName: "Acme"})
	o.DiscountKind = models.DiscountPercentage
	o.DiscountValue = dec("50")
	require.NoError(t, ValidateOffer(o))

	// product 1 is also an Acme product but can only fill one slot
	d, err := Calculate(o, MatchLines(o, []Line{lineOf(whisky, 1)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().IsZero(), d.Total().String())

	d, err = Calculate(o, MatchLines(o, []Line{lineOf(whisky, 1), lineOf(other, 1)}, nil))
	require.NoError(t, err)
	require.True(t, d.Total().Equal(dec("25")), d.Total().String())
}

func TestBundleCompleteReassignsLines(t *testing.T) {
	o := offer(1, models.OfferTypeBundle, 1, 2)
	a, b := product(1, "10"), product(2, "10")
	// the first line could fill either slot, the second only the first
	matches := []Match{
		{Line: lineOf(a, 1), AppIndexes: []int{0, 1}},
		{Line: lineOf(b, 1), AppIndexes: []int{0}},
	}
	require.True(t, bundleComplete(o, matches))

	matches[0].AppIndexes = []int{0}
	require.False(t, bundleComplete(o, matches))
}

func TestCalculateUnknownType(t *testing.T) {
	p := product(1, "10")
	o := offer(1, models.OfferType("mystery"), 1)

	_, err := Calculate(o, MatchLines(o, []Line{lineOf(p, 1)}, nil))
	require.ErrorIs(t, err, ErrUnknownOfferType)
}

func TestAllocateByWeight(t *testing.T) {
	got := allocateByWeight(dec("10"), []decimal.Decimal{dec("1"), dec("1"), dec("1")})
	sum := dec("0")
	for _, g := range got {
		sum = sum.Add(g)
	}
	require.True(t, sum.Equal(dec("10")), sum.String())

	got = allocateByWeight(dec("5"), []decimal.Decimal{dec("0"), dec("2")})
	require.True(t, got[0].IsZero())
	require.True(t, got[1].Equal(dec("5")))
}
