package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

var errNotFound = errors.New("not found")

type fakeCatalog struct {
	products map[int64]models.Product
}

func (f *fakeCatalog) ActiveProducts(context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) NearestBatch(context.Context, int64) (*models.Batch, error) {
	return nil, errNotFound
}

type fakeOffers struct {
	offers       []models.Offer
	applications map[int64][]models.OfferApplication
	redemptions  map[[2]int64]int
}

func (f *fakeOffers) ActiveOffers(context.Context, time.Time) ([]models.Offer, error) {
	return f.offers, nil
}

func (f *fakeOffers) OfferApplications(_ context.Context, offerID int64) ([]models.OfferApplication, error) {
	return f.applications[offerID], nil
}

func (f *fakeOffers) CustomerRedemptions(_ context.Context, offerID, customerID int64) (int, error) {
	return f.redemptions[[2]int64{offerID, customerID}], nil
}

type fakeCustomers struct {
	customers map[int64]models.Customer
}

func (f *fakeCustomers) CustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, errNotFound
	}
	return &c, nil
}

type fakeMarkdowns map[int64]Markdown

func (f fakeMarkdowns) Markdowns(context.Context, time.Time) (map[int64]Markdown, error) {
	return f, nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id int64, price string) models.Product {
	return models.Product{
		ID:            id,
		SKU:           "SKU",
		Name:          "Product",
		Category:      "whisky",
		Brand:         "Acme",
		Price:         dec(price),
		StockQuantity: 100,
		Active:        true,
	}
}

func offer(id int64, typ models.OfferType, targets ...int64) models.Offer {
	o := models.Offer{
		ID:       id,
		Name:     "Offer",
		Type:     typ,
		Audience: models.AudienceGeneral,
		StartsAt: testNow.Add(-24 * time.Hour),
		EndsAt:   testNow.Add(24 * time.Hour),
		Active:   true,
	}
	for _, t := range targets {
		o.Applications = append(o.Applications, models.OfferApplication{
			OfferID:  id,
			Target:   models.TargetProduct,
			TargetID: t,
		})
	}
	return o
}

func percentOff(id int64, pct string, targets ...int64) models.Offer {
	o := offer(id, models.OfferTypeFlatDiscount, targets...)
	o.DiscountKind = models.DiscountPercentage
	o.DiscountValue = dec(pct)
	return o
}

func newTestEngine(products []models.Product, offers []models.Offer, customers ...models.Customer) *Engine {
	catalog := &fakeCatalog{products: map[int64]models.Product{}}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	cs := &fakeCustomers{customers: map[int64]models.Customer{}}
	for _, c := range customers {
		cs.customers[c.ID] = c
	}
	e, err := NewEngine(EngineDeps{
		Catalog:   catalog,
		Offers:    &fakeOffers{offers: offers},
		Customers: cs,
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		panic(err)
	}
	return e
}

func lineOf(p models.Product, qty int) Line {
	return Line{Index: int(p.ID), Product: p, Quantity: qty}
}

func int64p(v int64) *int64 { return &v }

func intp(v int) *int { return &v }

func decimal16() decimal.NullDecimal {
	return decimal.NewNullDecimal(dec("16"))
}
