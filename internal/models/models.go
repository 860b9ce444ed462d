package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64               `json:"id"`
	SKU           string              `json:"sku"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category"`
	Brand         string              `json:"brand,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	UnitCost      decimal.NullDecimal `json:"unit_cost"`
	StockQuantity int                 `json:"stock_quantity"`
	MinStock      int                 `json:"min_stock"`
	Active        bool                `json:"active"`
	// ExpiresAt and NearestBatchID describe the batch that will be sold next.
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	NearestBatchID *int64     `json:"nearest_batch_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int        `json:"version"`
}

type Batch struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	BatchNumber string          `json:"batch_number"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	ReceivedAt  time.Time       `json:"received_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type MembershipLevel string

const (
	MembershipBronze  MembershipLevel = "bronze"
	MembershipSilver  MembershipLevel = "silver"
	MembershipGold    MembershipLevel = "gold"
	MembershipPremium MembershipLevel = "premium"
)

type Customer struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	MembershipLevel MembershipLevel `json:"membership_level"`
	LoyaltyPoints   int             `json:"loyalty_points"`
	IsVIP           bool            `json:"is_vip"`
	RegisteredAt    time.Time       `json:"registered_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

type OfferType string

const (
	OfferTypeFlatDiscount OfferType = "flat_discount"
	OfferTypeNForM        OfferType = "n_for_m"
	OfferTypeBundle       OfferType = "bundle"
	OfferTypeSpecialPrice OfferType = "special_price"
)

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

type Audience string

const (
	AudienceGeneral     Audience = "general"
	AudiencePremium     Audience = "premium"
	AudienceLoyalty     Audience = "loyalty"
	AudienceNewCustomer Audience = "new_customer"
)

type TargetKind string

const (
	TargetProduct  TargetKind = "product"
	TargetCategory TargetKind = "category"
	TargetBrand    TargetKind = "brand"
	TargetCustomer TargetKind = "customer"
	TargetAll      TargetKind = "all"
)

// Offer is a promotional rule authored through the admin forms.
// For special_price offers DiscountValue holds the fixed unit price.
type Offer struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Type               OfferType          `json:"type"`
	DiscountKind       DiscountKind       `json:"discount_kind"`
	DiscountValue      decimal.Decimal    `json:"discount_value"`
	BuyQuantity        int                `json:"buy_quantity,omitempty"`
	PayQuantity        int                `json:"pay_quantity,omitempty"`
	MinQuantity        int                `json:"min_quantity"`
	MinPurchase        decimal.Decimal    `json:"min_purchase"`
	MaxRedemptions     *int               `json:"max_redemptions,omitempty"`
	MaxPerCustomer     *int               `json:"max_per_customer,omitempty"`
	CurrentRedemptions int                `json:"current_redemptions"`
	Audience           Audience           `json:"audience"`
	StartsAt           time.Time          `json:"starts_at"`
	EndsAt             time.Time          `json:"ends_at"`
	Combinable         bool               `json:"combinable"`
	Priority           int                `json:"priority"`
	RequiresCode       bool               `json:"requires_code"`
	PromoCode          string             `json:"promo_code,omitempty"`
	Active             bool               `json:"active"`
	Schedule           *Schedule          `json:"schedule,omitempty"`
	Applications       []OfferApplication `json:"applications,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Schedule narrows an offer to a recurring window such as a happy hour.
// Start and End are "HH:MM" wall clock times. An End at or before Start
// runs past midnight. Empty Days means every day.
type Schedule struct {
	Days  []time.Weekday `json:"days,omitempty"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// OfferApplication is one target rule of an offer. Zero BuyQuantity and
// PayQuantity inherit the offer's values.
type OfferApplication struct {
	ID          int64      `json:"id"`
	OfferID     int64      `json:"offer_id"`
	Target      TargetKind `json:"target"`
	TargetID    int64      `json:"target_id,omitempty"`
	TargetName  string     `json:"target_name,omitempty"`
	MinQuantity int        `json:"min_quantity"`
	BuyQuantity int        `json:"buy_quantity,omitempty"`
	PayQuantity int        `json:"pay_quantity,omitempty"`
}

type Sale struct {
	ID                  int64              `json:"id"`
	SaleNumber          string             `json:"sale_number"`
	CustomerID          *int64             `json:"customer_id,omitempty"`
	PaymentMethod       string             `json:"payment_method"`
	ListSubtotal        decimal.Decimal    `json:"list_subtotal"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	OfferDiscount       decimal.Decimal    `json:"offer_discount"`
	VIPDiscount         decimal.Decimal    `json:"vip_discount"`
	DiscountTotal       decimal.Decimal    `json:"discount_total"`
	Tax                 decimal.Decimal    `json:"tax"`
	Total               decimal.Decimal    `json:"total"`
	LoyaltyPointsEarned int                `json:"loyalty_points_earned"`
	Status              string             `json:"status"`
	CreatedAt           time.Time          `json:"created_at"`
	Items               []SaleItem         `json:"items,omitempty"`
	AppliedOffers       []SaleAppliedOffer `json:"applied_offers,omitempty"`
}

type SaleItem struct {
	ID                int64           `json:"id"`
	SaleID            int64           `json:"sale_id"`
	ProductID         int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ComputedUnitPrice decimal.Decimal `json:"computed_unit_price"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	Batches           []SaleItemBatch `json:"batches,omitempty"`
}

type SaleItemBatch struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int   `json:"quantity"`
}

type SaleAppliedOffer struct {
	ID             int64           `json:"id"`
	SaleID         int64           `json:"sale_id"`
	OfferID        *int64          `json:"offer_id,omitempty"`
	Source         string          `json:"source"`
	Description    string          `json:"description"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ProductIDs     []int64         `json:"product_ids"`
}

const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

const (
	SourceOffer          = "offer"
	SourceExpiryMarkdown = "expiry_markdown"
)
