package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
)

// Repository adapts the store functions to the pricing engine's ports and to
// the checkout sale writer.
type Repository struct {
	db     *sql.DB
	levels []pricing.LoyaltyLevel
}

// NewRepository binds the store to db. Sales written through it promote
// customers along levels.
func NewRepository(db *sql.DB, levels []pricing.LoyaltyLevel) *Repository {
	return &Repository{db: db, levels: levels}
}

var (
	_ pricing.Catalog        = (*Repository)(nil)
	_ pricing.OfferSource    = (*Repository)(nil)
	_ pricing.CustomerSource = (*Repository)(nil)
)

func (r *Repository) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	return GetActiveProducts(ctx, r.db)
}

func (r *Repository) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, r.db, id)
}

func (r *Repository) NearestBatch(ctx context.Context, productID int64) (*models.Batch, error) {
	return GetNearestBatch(ctx, r.db, productID)
}

func (r *Repository) ActiveOffers(ctx context.Context, asOf time.Time) ([]models.Offer, error) {
	return GetActiveOffers(ctx, r.db, asOf)
}

func (r *Repository) OfferApplications(ctx context.Context, offerID int64) ([]models.OfferApplication, error) {
	return GetOfferApplications(ctx, r.db, offerID)
}

func (r *Repository) CustomerRedemptions(ctx context.Context, offerID, customerID int64) (int, error) {
	return GetCustomerRedemptions(ctx, r.db, offerID, customerID)
}

func (r *Repository) CustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	return GetCustomer(ctx, r.db, id)
}

func (r *Repository) FinalizeSale(ctx context.Context, cart *pricing.CartResult, paymentMethod string) (*models.Sale, error) {
	return FinalizeSale(ctx, r.db, FinalizeSaleRequest{
		Cart:          cart,
		PaymentMethod: paymentMethod,
		LoyaltyLevels: r.levels,
	})
}
