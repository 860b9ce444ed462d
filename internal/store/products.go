package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/shopspring/decimal"
)

type CreateProductRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	MinStock    int             `json:"min_stock"`
}

type CreateBatchRequest struct {
	ProductID   int64           `json:"product_id"`
	BatchNumber string          `json:"batch_number"`
	ExpiresAt   *time.Time      `json:"expires_at"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// productSelect joins every product with the batch that will be sold next:
// the sellable batch closest to expiry, undated batches last.
const productSelect = `
	SELECT p.id, p.sku, p.name, p.description, p.category, p.brand, p.price,
	       p.stock_quantity, p.min_stock, p.active, p.created_at, p.updated_at, p.version,
	       nb.id, nb.expires_at, nb.unit_cost
	FROM products p
	LEFT JOIN LATERAL (
		SELECT b.id, b.expires_at, b.unit_cost
		FROM batches b
		WHERE b.product_id = p.id
		  AND b.quantity > 0
		  AND (b.expires_at IS NULL OR b.expires_at >= CURRENT_DATE)
		ORDER BY b.expires_at ASC NULLS LAST, b.id
		LIMIT 1
	) nb ON TRUE`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p         models.Product
		batchID   sql.NullInt64
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Brand,
		&p.Price,
		&p.StockQuantity,
		&p.MinStock,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
		&batchID,
		&expiresAt,
		&p.UnitCost,
	)
	if err != nil {
		return nil, err
	}
	if batchID.Valid {
		id := batchID.Int64
		p.NearestBatchID = &id
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		p.ExpiresAt = &t
	}
	return &p, nil
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	if req.SKU == "" || req.Name == "" {
		return nil, fmt.Errorf("create product: %w: sku and name are required", database.ErrInvalidInput)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("create product: %w: price cannot be negative", database.ErrInvalidInput)
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO products (sku, name, description, category, brand, price, min_stock, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		 RETURNING id`,
		req.SKU, req.Name, req.Description, req.Category, req.Brand, req.Price, req.MinStock).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return GetProduct(ctx, db, id)
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product, err := scanProduct(db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetActiveProducts returns every product on sale, with its next batch.
func GetActiveProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, productSelect+` WHERE p.active ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// UpdatePrice changes the list price if the product is still at version.
func UpdatePrice(ctx context.Context, db *sql.DB, productID int64, price decimal.Decimal, version int) error {
	if price.IsNegative() {
		return fmt.Errorf("update price: price cannot be negative")
	}

	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET price = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		price, productID, version)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOptimisticLockFailed
	}

	return nil
}

func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx,
		productSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`,
		pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// CreateBatch receives stock for a product. The product's stock counter is
// raised in the same transaction.
func CreateBatch(ctx context.Context, db *sql.DB, req CreateBatchRequest) (*models.Batch, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("create batch: %w: quantity must be positive", database.ErrInvalidInput)
	}
	if req.UnitCost.IsNegative() {
		return nil, fmt.Errorf("create batch: %w: unit cost cannot be negative", database.ErrInvalidInput)
	}

	batch := &models.Batch{}
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET stock_quantity = stock_quantity + $1, updated_at = NOW()
			 WHERE id = $2`,
			req.Quantity, req.ProductID)
		if err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrProductNotFound
		}

		var expiresAt sql.NullTime
		err = tx.QueryRowContext(ctx,
			`INSERT INTO batches (product_id, batch_number, expires_at, quantity, unit_cost, received_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING id, product_id, batch_number, expires_at, quantity, unit_cost, received_at, created_at`,
			req.ProductID, req.BatchNumber, dateOnly(req.ExpiresAt), req.Quantity, req.UnitCost).Scan(
			&batch.ID,
			&batch.ProductID,
			&batch.BatchNumber,
			&expiresAt,
			&batch.Quantity,
			&batch.UnitCost,
			&batch.ReceivedAt,
			&batch.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time.UTC()
			batch.ExpiresAt = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// GetNearestBatch returns the sellable batch of a product that expires first.
func GetNearestBatch(ctx context.Context, db *sql.DB, productID int64) (*models.Batch, error) {
	batch := &models.Batch{}
	var expiresAt sql.NullTime

	err := db.QueryRowContext(ctx,
		`SELECT id, product_id, batch_number, expires_at, quantity, unit_cost, received_at, created_at
		 FROM batches
		 WHERE product_id = $1
		   AND quantity > 0
		   AND (expires_at IS NULL OR expires_at >= CURRENT_DATE)
		 ORDER BY expires_at ASC NULLS LAST, id
		 LIMIT 1`,
		productID).Scan(
		&batch.ID,
		&batch.ProductID,
		&batch.BatchNumber,
		&expiresAt,
		&batch.Quantity,
		&batch.UnitCost,
		&batch.ReceivedAt,
		&batch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBatchNotFound
		}
		return nil, fmt.Errorf("get nearest batch: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		batch.ExpiresAt = &t
	}

	return batch, nil
}

// lockBatchesFEFO locks the sellable batches of a product in the order they
// must be depleted.
func lockBatchesFEFO(ctx context.Context, tx *sql.Tx, productID int64) ([]models.Batch, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, product_id, batch_number, expires_at, quantity, unit_cost
		 FROM batches
		 WHERE product_id = $1
		   AND quantity > 0
		   AND (expires_at IS NULL OR expires_at >= CURRENT_DATE)
		 ORDER BY expires_at ASC NULLS LAST, id
		 FOR UPDATE`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("lock batches of product %d: %w", productID, err)
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var (
			b         models.Batch
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &expiresAt, &b.Quantity, &b.UnitCost); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time.UTC()
			b.ExpiresAt = &t
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return batches, nil
}

func depleteBatch(ctx context.Context, tx *sql.Tx, batchID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE batches SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1`,
		quantity, batchID)
	if err != nil {
		return fmt.Errorf("deplete batch %d: %w", batchID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func dateOnly(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
