package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/lib/pq"
)

const offerColumns = `id, name, description, type, discount_kind, discount_value, buy_quantity, pay_quantity,
	min_quantity, min_purchase, max_redemptions, max_per_customer, current_redemptions, audience,
	starts_at, ends_at, combinable, priority, requires_code, promo_code, active,
	schedule_days, schedule_start, schedule_end, created_at, updated_at`

func scanOffer(row rowScanner) (*models.Offer, error) {
	var (
		o              models.Offer
		maxRedemptions sql.NullInt64
		maxPerCustomer sql.NullInt64
		promoCode      sql.NullString
		scheduleDays   pq.Int64Array
		scheduleStart  sql.NullString
		scheduleEnd    sql.NullString
	)
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Description,
		&o.Type,
		&o.DiscountKind,
		&o.DiscountValue,
		&o.BuyQuantity,
		&o.PayQuantity,
		&o.MinQuantity,
		&o.MinPurchase,
		&maxRedemptions,
		&maxPerCustomer,
		&o.CurrentRedemptions,
		&o.Audience,
		&o.StartsAt,
		&o.EndsAt,
		&o.Combinable,
		&o.Priority,
		&o.RequiresCode,
		&promoCode,
		&o.Active,
		&scheduleDays,
		&scheduleStart,
		&scheduleEnd,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxRedemptions.Valid {
		v := int(maxRedemptions.Int64)
		o.MaxRedemptions = &v
	}
	if maxPerCustomer.Valid {
		v := int(maxPerCustomer.Int64)
		o.MaxPerCustomer = &v
	}
	o.PromoCode = promoCode.String
	if scheduleStart.Valid {
		o.Schedule = &models.Schedule{Start: scheduleStart.String, End: scheduleEnd.String}
		for _, d := range scheduleDays {
			o.Schedule.Days = append(o.Schedule.Days, time.Weekday(d))
		}
	}
	return &o, nil
}

// scheduleArgs flattens a schedule into the three nullable offer columns.
func scheduleArgs(s *models.Schedule) (pq.Int64Array, sql.NullString, sql.NullString) {
	if s == nil {
		return nil, sql.NullString{}, sql.NullString{}
	}
	var days pq.Int64Array
	for _, d := range s.Days {
		days = append(days, int64(d))
	}
	return days,
		sql.NullString{String: strings.TrimSpace(s.Start), Valid: true},
		sql.NullString{String: strings.TrimSpace(s.End), Valid: true}
}

// CreateOffer validates and stores an offer together with its applications.
// Validation failures are returned as *pricing.ValidationError values.
func CreateOffer(ctx context.Context, db *sql.DB, offer models.Offer) (*models.Offer, error) {
	if offer.Audience == "" {
		offer.Audience = models.AudienceGeneral
	}
	offer.PromoCode = strings.TrimSpace(offer.PromoCode)
	if err := pricing.ValidateOffer(offer); err != nil {
		return nil, err
	}

	var promoCode sql.NullString
	if offer.PromoCode != "" {
		promoCode = sql.NullString{String: offer.PromoCode, Valid: true}
	}

	days, scheduleStart, scheduleEnd := scheduleArgs(offer.Schedule)

	var created *models.Offer
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		created, err = scanOffer(tx.QueryRowContext(ctx,
			`INSERT INTO offers (name, description, type, discount_kind, discount_value, buy_quantity, pay_quantity,
			     min_quantity, min_purchase, max_redemptions, max_per_customer, audience, starts_at, ends_at,
			     combinable, priority, requires_code, promo_code, active, schedule_days, schedule_start, schedule_end,
			     created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22,
			     NOW(), NOW())
			 RETURNING `+offerColumns,
			offer.Name, offer.Description, offer.Type, offer.DiscountKind, offer.DiscountValue,
			offer.BuyQuantity, offer.PayQuantity, offer.MinQuantity, offer.MinPurchase,
			offer.MaxRedemptions, offer.MaxPerCustomer, offer.Audience, offer.StartsAt, offer.EndsAt,
			offer.Combinable, offer.Priority, offer.RequiresCode, promoCode, offer.Active,
			days, scheduleStart, scheduleEnd))
		if err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}

		created.Applications = make([]models.OfferApplication, 0, len(offer.Applications))
		for _, app := range offer.Applications {
			var targetID sql.NullInt64
			if app.TargetID != 0 {
				targetID = sql.NullInt64{Int64: app.TargetID, Valid: true}
			}
			var targetName sql.NullString
			if app.TargetName != "" {
				targetName = sql.NullString{String: app.TargetName, Valid: true}
			}

			app.OfferID = created.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO offer_applications (offer_id, target, target_id, target_name, min_quantity, buy_quantity, pay_quantity)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id`,
				created.ID, app.Target, targetID, targetName, app.MinQuantity, app.BuyQuantity, app.PayQuantity).Scan(&app.ID)
			if err != nil {
				return fmt.Errorf("insert offer application: %w", err)
			}
			created.Applications = append(created.Applications, app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func GetOffer(ctx context.Context, db *sql.DB, id int64) (*models.Offer, error) {
	offer, err := scanOffer(db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOfferNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}

	offer.Applications, err = GetOfferApplications(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return offer, nil
}

// SetOfferActive enables or disables an offer without touching its window.
func SetOfferActive(ctx context.Context, db *sql.DB, id int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE offers SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set offer active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOfferNotFound
	}

	return nil
}

// GetActiveOffers returns the enabled offers whose window contains asOf,
// with their applications loaded.
func GetActiveOffers(ctx context.Context, db *sql.DB, asOf time.Time) ([]models.Offer, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+offerColumns+`
		 FROM offers
		 WHERE active AND starts_at <= $1 AND ends_at >= $1
		 ORDER BY priority DESC, created_at, id`,
		asOf)
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	ids := []int64{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		o.Applications = []models.OfferApplication{}
		offers = append(offers, *o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(offers) == 0 {
		return offers, nil
	}

	apps, err := queryApplications(ctx, db, `WHERE offer_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	pos := make(map[int64]int, len(offers))
	for i, o := range offers {
		pos[o.ID] = i
	}
	for _, app := range apps {
		i := pos[app.OfferID]
		offers[i].Applications = append(offers[i].Applications, app)
	}

	return offers, nil
}

func GetOfferApplications(ctx context.Context, db *sql.DB, offerID int64) ([]models.OfferApplication, error) {
	return queryApplications(ctx, db, `WHERE offer_id = $1`, offerID)
}

func queryApplications(ctx context.Context, db *sql.DB, where string, args ...any) ([]models.OfferApplication, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, offer_id, target, target_id, target_name, min_quantity, buy_quantity, pay_quantity
		 FROM offer_applications `+where+`
		 ORDER BY offer_id, id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list offer applications: %w", err)
	}
	defer rows.Close()

	apps := []models.OfferApplication{}
	for rows.Next() {
		var (
			app        models.OfferApplication
			targetID   sql.NullInt64
			targetName sql.NullString
		)
		err := rows.Scan(
			&app.ID,
			&app.OfferID,
			&app.Target,
			&targetID,
			&targetName,
			&app.MinQuantity,
			&app.BuyQuantity,
			&app.PayQuantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan offer application: %w", err)
		}
		app.TargetID = targetID.Int64
		app.TargetName = targetName.String
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return apps, nil
}

// GetCustomerRedemptions returns how many times customerID has redeemed offerID.
func GetCustomerRedemptions(ctx context.Context, db *sql.DB, offerID, customerID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT redemption_count FROM offer_redemptions WHERE offer_id = $1 AND customer_id = $2`,
		offerID, customerID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get customer redemptions: %w", err)
	}

	return count, nil
}

// IncrementRedemptions counts one use of an offer. The update only matches
// while the offer is below its cap, so concurrent sales cannot overshoot it.
// The offer's per-customer cap is returned for incrementCustomerRedemptions.
func IncrementRedemptions(ctx context.Context, tx *sql.Tx, offerID int64) (*int, error) {
	var maxPerCustomer sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`UPDATE offers
		 SET current_redemptions = current_redemptions + 1, updated_at = NOW()
		 WHERE id = $1
		   AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)
		 RETURNING max_per_customer`,
		offerID).Scan(&maxPerCustomer)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("increment redemptions: %w", err)
		}
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM offers WHERE id = $1)`, offerID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check offer exists: %w", err)
		}
		if !exists {
			return nil, database.ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer %d: %w", offerID, database.ErrOfferExhausted)
	}

	if !maxPerCustomer.Valid {
		return nil, nil
	}
	v := int(maxPerCustomer.Int64)
	return &v, nil
}

func incrementCustomerRedemptions(ctx context.Context, tx *sql.Tx, offerID, customerID int64, max *int) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO offer_redemptions (offer_id, customer_id, redemption_count, last_redeemed_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (offer_id, customer_id) DO UPDATE
		 SET redemption_count = offer_redemptions.redemption_count + 1,
		     last_redeemed_at = NOW()
		 WHERE $3::INTEGER IS NULL OR offer_redemptions.redemption_count < $3::INTEGER`,
		offerID, customerID, max)
	if err != nil {
		return fmt.Errorf("increment customer redemptions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("offer %d for customer %d: %w", offerID, customerID, database.ErrOfferExhausted)
	}

	return nil
}
