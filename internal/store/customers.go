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
)

type CreateCustomerRequest struct {
	Name            string                 `json:"name"`
	Email           string                 `json:"email"`
	MembershipLevel models.MembershipLevel `json:"membership_level"`
	IsVIP           bool                   `json:"is_vip"`
	// RegisteredAt defaults to now.
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}

const customerColumns = `id, name, email, membership_level, loyalty_points, is_vip, registered_at, created_at, updated_at, version`

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.MembershipLevel,
		&c.LoyaltyPoints,
		&c.IsVIP,
		&c.RegisteredAt,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
	return c, err
}

func CreateCustomer(ctx context.Context, db *sql.DB, req CreateCustomerRequest) (*models.Customer, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("create customer: %w: name and email are required", database.ErrInvalidInput)
	}
	level := req.MembershipLevel
	if level == "" {
		level = models.MembershipBronze
	}
	registered := time.Now().UTC()
	if req.RegisteredAt != nil {
		registered = req.RegisteredAt.UTC()
	}

	customer, err := scanCustomer(db.QueryRowContext(ctx,
		`INSERT INTO customers (name, email, membership_level, is_vip, registered_at, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), 1)
		 RETURNING `+customerColumns,
		req.Name, req.Email, level, req.IsVIP, registered))
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, db *sql.DB, id int64) (*models.Customer, error) {
	customer, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

// addLoyaltyPoints credits points and moves the customer up the loyalty
// ladder when the new balance reaches a higher level.
func addLoyaltyPoints(ctx context.Context, tx *sql.Tx, customerID int64, points int, levels []pricing.LoyaltyLevel) error {
	var (
		balance int
		level   models.MembershipLevel
	)
	err := tx.QueryRowContext(ctx,
		`UPDATE customers
		 SET loyalty_points = loyalty_points + $1, updated_at = NOW(), version = version + 1
		 WHERE id = $2
		 RETURNING loyalty_points, membership_level`,
		points, customerID).Scan(&balance, &level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrCustomerNotFound
		}
		return fmt.Errorf("add loyalty points: %w", err)
	}

	next := pricing.LevelFor(levels, level, balance)
	if next == level {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE customers SET membership_level = $1 WHERE id = $2`, next, customerID); err != nil {
		return fmt.Errorf("promote customer to %s: %w", next, err)
	}
	return nil
}
