package store

import (
	"context"
	"errors"
	"testing"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/shopspring/decimal"
)

func TestCreateBatchRaisesStockAndTracksNearestBatch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-PRD-001", "20")
	mustBatch(t, db, product.ID, "B-LATE", 10, 40, "12")
	soon := mustBatch(t, db, product.ID, "B-SOON", 5, 5, "16")
	mustBatch(t, db, product.ID, "B-GONE", 7, -3, "10")

	got, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if got.StockQuantity != 22 {
		t.Errorf("Expected stock 22, got %d", got.StockQuantity)
	}
	if got.NearestBatchID == nil || *got.NearestBatchID != soon.ID {
		t.Fatalf("Expected nearest batch %d, got %v", soon.ID, got.NearestBatchID)
	}
	if !got.UnitCost.Valid || !got.UnitCost.Decimal.Equal(decimal.NewFromInt(16)) {
		t.Errorf("Expected unit cost 16, got %v", got.UnitCost)
	}
	if got.ExpiresAt == nil {
		t.Error("Expected an expiry date from the nearest batch")
	}

	nearest, err := GetNearestBatch(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get nearest batch: %v", err)
	}
	if nearest.BatchNumber != "B-SOON" {
		t.Errorf("Expected B-SOON, got %s", nearest.BatchNumber)
	}
}

func TestGetNearestBatchWithoutStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-PRD-002", "20")

	_, err := GetNearestBatch(ctx, db, product.ID)
	if !errors.Is(err, database.ErrBatchNotFound) {
		t.Errorf("Expected batch not found, got: %v", err)
	}

	got, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if got.NearestBatchID != nil || got.UnitCost.Valid || got.ExpiresAt != nil {
		t.Errorf("Product without batches should carry no batch data, got %+v", got)
	}
}

func TestGetProductNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := GetProduct(context.Background(), db, 424242)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}
}

func TestUpdatePriceOptimisticLocking(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustProduct(t, db, "TEST-PRD-003", "20")

	err := UpdatePrice(ctx, db, product.ID, decimal.NewFromInt(25), product.Version)
	if err != nil {
		t.Fatalf("First update should succeed: %v", err)
	}

	err = UpdatePrice(ctx, db, product.ID, decimal.NewFromInt(30), product.Version)
	if !errors.Is(err, database.ErrOptimisticLockFailed) {
		t.Errorf("Expected optimistic lock failure, got: %v", err)
	}

	got, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if !got.Price.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected price 25, got %s", got.Price)
	}
}

func TestListProductsAndActiveProducts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	for _, sku := range []string{"TEST-PRD-010", "TEST-PRD-011", "TEST-PRD-012"} {
		mustProduct(t, db, sku, "10")
	}
	if _, err := db.ExecContext(ctx, `UPDATE products SET active = FALSE WHERE sku = 'TEST-PRD-012'`); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	page, err := ListProducts(ctx, db, 1, 2)
	if err != nil {
		t.Fatalf("List products: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Errorf("Expected 3 products over 2 pages, got %d over %d", page.Total, page.TotalPages)
	}

	active, err := GetActiveProducts(ctx, db)
	if err != nil {
		t.Fatalf("Get active products: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Expected 2 active products, got %d", len(active))
	}
}
