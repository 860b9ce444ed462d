package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/shopspring/decimal"
)

func percentOffer(name string, pct int64, productID int64) models.Offer {
	now := time.Now().UTC()
	return models.Offer{
		Name:          name,
		Type:          models.OfferTypeFlatDiscount,
		DiscountKind:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(pct),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(24 * time.Hour),
		Active:        true,
		Applications: []models.OfferApplication{
			{Target: models.TargetProduct, TargetID: productID},
		},
	}
}

func TestCreateOfferRejectsInvalidDefinitions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-OFF-001", "10")

	missingCode := percentOffer("Code only", 10, product.ID)
	missingCode.RequiresCode = true

	inverted := percentOffer("Backwards", 10, product.ID)
	inverted.EndsAt = inverted.StartsAt.Add(-time.Hour)

	unknown := percentOffer("Mystery", 10, product.ID)
	unknown.Type = models.OfferType("mystery")

	for _, o := range []models.Offer{missingCode, inverted, unknown} {
		_, err := CreateOffer(ctx, db, o)
		if !errors.Is(err, pricing.ErrInvalidOffer) {
			t.Errorf("%s: expected validation error, got: %v", o.Name, err)
		}
		var ve *pricing.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected a *ValidationError, got %T", o.Name, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers`).Scan(&count); err != nil {
		t.Fatalf("Count offers: %v", err)
	}
	if count != 0 {
		t.Errorf("Invalid offers must not be stored, found %d", count)
	}
}

func TestCreateOfferAndGetActiveOffers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-OFF-002", "10")

	current, err := CreateOffer(ctx, db, percentOffer("Current", 10, product.ID))
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}
	if len(current.Applications) != 1 || current.Applications[0].ID == 0 {
		t.Fatalf("Expected one stored application, got %+v", current.Applications)
	}
	if current.Audience != models.AudienceGeneral {
		t.Errorf("Expected default audience general, got %s", current.Audience)
	}

	future := percentOffer("Future", 10, product.ID)
	future.StartsAt = time.Now().Add(48 * time.Hour)
	future.EndsAt = time.Now().Add(72 * time.Hour)
	if _, err := CreateOffer(ctx, db, future); err != nil {
		t.Fatalf("Create future offer: %v", err)
	}

	disabled, err := CreateOffer(ctx, db, percentOffer("Disabled", 10, product.ID))
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}
	if err := SetOfferActive(ctx, db, disabled.ID, false); err != nil {
		t.Fatalf("Disable offer: %v", err)
	}

	offers, err := GetActiveOffers(ctx, db, time.Now())
	if err != nil {
		t.Fatalf("Get active offers: %v", err)
	}
	if len(offers) != 1 || offers[0].ID != current.ID {
		t.Fatalf("Expected only offer %d, got %+v", current.ID, offers)
	}
	if len(offers[0].Applications) != 1 || offers[0].Applications[0].TargetID != product.ID {
		t.Errorf("Expected applications to be loaded, got %+v", offers[0].Applications)
	}

	got, err := GetOffer(ctx, db, current.ID)
	if err != nil {
		t.Fatalf("Get offer: %v", err)
	}
	if !got.DiscountValue.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected discount 10, got %s", got.DiscountValue)
	}
}

func TestCreateOfferStoresSchedule(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-OFF-SCH", "10")

	happyHour := percentOffer("Happy hour", 20, product.ID)
	happyHour.Schedule = &models.Schedule{
		Days:  []time.Weekday{time.Friday, time.Saturday},
		Start: "22:00",
		End:   "02:00",
	}
	created, err := CreateOffer(ctx, db, happyHour)
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}

	got, err := GetOffer(ctx, db, created.ID)
	if err != nil {
		t.Fatalf("Get offer: %v", err)
	}
	if got.Schedule == nil {
		t.Fatal("Expected the schedule to be stored")
	}
	if got.Schedule.Start != "22:00" || got.Schedule.End != "02:00" {
		t.Errorf("Expected 22:00-02:00, got %s-%s", got.Schedule.Start, got.Schedule.End)
	}
	if len(got.Schedule.Days) != 2 || got.Schedule.Days[0] != time.Friday || got.Schedule.Days[1] != time.Saturday {
		t.Errorf("Expected Friday and Saturday, got %v", got.Schedule.Days)
	}

	plain, err := CreateOffer(ctx, db, percentOffer("All day", 10, product.ID))
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}
	got, err = GetOffer(ctx, db, plain.ID)
	if err != nil {
		t.Fatalf("Get offer: %v", err)
	}
	if got.Schedule != nil {
		t.Errorf("Expected no schedule, got %+v", got.Schedule)
	}

	badClock := percentOffer("Bad clock", 10, product.ID)
	badClock.Schedule = &models.Schedule{Start: "7pm", End: "23:00"}
	if _, err := CreateOffer(ctx, db, badClock); !errors.Is(err, pricing.ErrInvalidOffer) {
		t.Errorf("Expected validation error for a malformed clock, got: %v", err)
	}
}

func TestIncrementRedemptionsRespectsCapUnderConcurrency(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-OFF-003", "10")
	capped := percentOffer("Capped", 10, product.ID)
	limit := 5
	capped.MaxRedemptions = &limit
	offer, err := CreateOffer(ctx, db, capped)
	if err != nil {
		t.Fatalf("Create offer: %v", err)
	}

	concurrency := 12
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
				_, err := IncrementRedemptions(ctx, tx, offer.ID)
				return err
			})
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrOfferExhausted):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != limit {
		t.Errorf("Expected %d redemptions, got %d", limit, successCount)
	}

	got, err := GetOffer(ctx, db, offer.ID)
	if err != nil {
		t.Fatalf("Get offer: %v", err)
	}
	if got.CurrentRedemptions != limit {
		t.Errorf("Expected counter %d, got %d", limit, got.CurrentRedemptions)
	}
}
