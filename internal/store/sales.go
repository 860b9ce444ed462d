package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// FinalizeSaleRequest freezes an evaluated cart into a sale.
type FinalizeSaleRequest struct {
	Cart          *pricing.CartResult
	PaymentMethod string
	// LoyaltyLevels promotes the customer once the credited points reach a
	// higher level. Nil leaves membership levels alone.
	LoyaltyLevels []pricing.LoyaltyLevel
}

type linePlan struct {
	index   int
	line    pricing.LineResult
	batches []models.SaleItemBatch
}

// FinalizeSale persists a sale in a single transaction: stock is taken from
// each product's batches in first-expired-first-out order, offer counters
// are incremented against their caps, the sale with its lines and applied
// offers is written and loyalty points are credited, promoting the customer
// along the loyalty ladder. When any line cannot
// be covered the whole sale is rolled back with an *InsufficientStockError
// naming every short line.
func FinalizeSale(ctx context.Context, db *sql.DB, req FinalizeSaleRequest) (*models.Sale, error) {
	if req.Cart == nil || len(req.Cart.Lines) == 0 {
		return nil, fmt.Errorf("%w: nothing to sell", pricing.ErrInvalidCart)
	}
	switch req.PaymentMethod {
	case models.PaymentCash, models.PaymentCard, models.PaymentTransfer:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	cart := req.Cart
	plans := make([]linePlan, len(cart.Lines))
	for i, l := range cart.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", pricing.ErrInvalidCart, i)
		}
		plans[i] = linePlan{index: i, line: l}
	}
	// one lock order for every sale keeps concurrent checkouts from deadlocking
	lockOrder := make([]int, len(plans))
	for i := range lockOrder {
		lockOrder[i] = i
	}
	sort.SliceStable(lockOrder, func(a, b int) bool {
		return plans[lockOrder[a]].line.ProductID < plans[lockOrder[b]].line.ProductID
	})

	var sale *models.Sale
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var shortages []database.StockShortage
		for _, i := range lockOrder {
			plan := &plans[i]
			plan.batches = nil

			batches, err := lockBatchesFEFO(ctx, tx, plan.line.ProductID)
			if err != nil {
				return err
			}
			remaining := plan.line.Quantity
			available := 0
			for _, b := range batches {
				available += b.Quantity
				if remaining == 0 {
					continue
				}
				take := min(remaining, b.Quantity)
				plan.batches = append(plan.batches, models.SaleItemBatch{BatchID: b.ID, Quantity: take})
				remaining -= take
			}
			if remaining > 0 {
				shortages = append(shortages, database.StockShortage{
					Line:      plan.index,
					ProductID: plan.line.ProductID,
					Requested: plan.line.Quantity,
					Available: available,
				})
			}
		}
		if len(shortages) > 0 {
			sort.Slice(shortages, func(a, b int) bool { return shortages[a].Line < shortages[b].Line })
			return &database.InsufficientStockError{Shortages: shortages}
		}

		for _, i := range lockOrder {
			plan := plans[i]
			for _, b := range plan.batches {
				if err := depleteBatch(ctx, tx, b.BatchID, b.Quantity); err != nil {
					return err
				}
			}
			if err := DecrementStock(ctx, tx, plan.line.ProductID, plan.line.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", plan.line.ProductID, err)
			}
		}

		if err := redeemOffers(ctx, tx, cart); err != nil {
			return err
		}

		var err error
		sale, err = insertSale(ctx, tx, cart, req.PaymentMethod, plans)
		if err != nil {
			return err
		}

		if cart.CustomerID != nil && cart.LoyaltyPointsEarned > 0 {
			if err := addLoyaltyPoints(ctx, tx, *cart.CustomerID, cart.LoyaltyPointsEarned, req.LoyaltyLevels); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sale, nil
}

func redeemOffers(ctx context.Context, tx *sql.Tx, cart *pricing.CartResult) error {
	var ids []int64
	seen := make(map[int64]bool)
	for _, ao := range cart.AppliedOffers {
		if ao.OfferID == nil || seen[*ao.OfferID] {
			continue
		}
		seen[*ao.OfferID] = true
		ids = append(ids, *ao.OfferID)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	for _, id := range ids {
		maxPerCustomer, err := IncrementRedemptions(ctx, tx, id)
		if err != nil {
			return err
		}
		if cart.CustomerID == nil {
			continue
		}
		if err := incrementCustomerRedemptions(ctx, tx, id, *cart.CustomerID, maxPerCustomer); err != nil {
			return err
		}
	}
	return nil
}

func insertSale(ctx context.Context, tx *sql.Tx, cart *pricing.CartResult, payment string, plans []linePlan) (*models.Sale, error) {
	sale := &models.Sale{
		SaleNumber:          ulid.Make().String(),
		CustomerID:          cart.CustomerID,
		PaymentMethod:       payment,
		ListSubtotal:        cart.ListSubtotal,
		Subtotal:            cart.Subtotal,
		OfferDiscount:       cart.OfferDiscount,
		VIPDiscount:         cart.VIPDiscount,
		DiscountTotal:       cart.DiscountTotal,
		Tax:                 cart.Tax,
		Total:               cart.Total,
		LoyaltyPointsEarned: cart.LoyaltyPointsEarned,
		Status:              models.SaleStatusCompleted,
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO sales (sale_number, customer_id, payment_method, list_subtotal, subtotal, offer_discount,
		     vip_discount, discount_total, tax, total, loyalty_points_earned, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 RETURNING id, created_at`,
		sale.SaleNumber, sale.CustomerID, sale.PaymentMethod, sale.ListSubtotal, sale.Subtotal,
		sale.OfferDiscount, sale.VIPDiscount, sale.DiscountTotal, sale.Tax, sale.Total,
		sale.LoyaltyPointsEarned, sale.Status).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	for _, plan := range plans {
		l := plan.line
		item := models.SaleItem{
			SaleID:            sale.ID,
			ProductID:         l.ProductID,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			ComputedUnitPrice: l.ComputedUnitPrice,
			Discount:          l.Discount,
			Total:             l.Total,
			Batches:           plan.batches,
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, computed_unit_price, discount, total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.ComputedUnitPrice,
			item.Discount, item.Total).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("create sale item: %w", err)
		}

		for _, b := range plan.batches {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO sale_item_batches (sale_item_id, batch_id, quantity) VALUES ($1, $2, $3)`,
				item.ID, b.BatchID, b.Quantity)
			if err != nil {
				return nil, fmt.Errorf("record batch depletion: %w", err)
			}
		}
		sale.Items = append(sale.Items, item)
	}

	for _, ao := range cart.AppliedOffers {
		applied := models.SaleAppliedOffer{
			SaleID:         sale.ID,
			OfferID:        ao.OfferID,
			Source:         ao.Source,
			Description:    ao.Description,
			DiscountAmount: ao.DiscountAmount,
			ProductIDs:     ao.ProductIDs,
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO sale_applied_offers (sale_id, offer_id, source, description, discount_amount, product_ids)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			applied.SaleID, applied.OfferID, applied.Source, applied.Description,
			applied.DiscountAmount, pq.Array(applied.ProductIDs)).Scan(&applied.ID)
		if err != nil {
			return nil, fmt.Errorf("record applied offer: %w", err)
		}
		sale.AppliedOffers = append(sale.AppliedOffers, applied)
	}

	return sale, nil
}

const saleColumns = `id, sale_number, customer_id, payment_method, list_subtotal, subtotal, offer_discount,
	vip_discount, discount_total, tax, total, loyalty_points_earned, status, created_at`

func scanSale(row rowScanner) (*models.Sale, error) {
	var (
		s          models.Sale
		customerID sql.NullInt64
	)
	err := row.Scan(
		&s.ID,
		&s.SaleNumber,
		&customerID,
		&s.PaymentMethod,
		&s.ListSubtotal,
		&s.Subtotal,
		&s.OfferDiscount,
		&s.VIPDiscount,
		&s.DiscountTotal,
		&s.Tax,
		&s.Total,
		&s.LoyaltyPointsEarned,
		&s.Status,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		id := customerID.Int64
		s.CustomerID = &id
	}
	return &s, nil
}

func GetSale(ctx context.Context, db *sql.DB, id int64) (*models.Sale, error) {
	sale, err := scanSale(db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, sale_id, product_id, quantity, unit_price, computed_unit_price, discount, total
		 FROM sale_items
		 WHERE sale_id = $1
		 ORDER BY id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()

	itemPos := make(map[int64]int)
	for rows.Next() {
		var item models.SaleItem
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.ComputedUnitPrice,
			&item.Discount,
			&item.Total,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		itemPos[item.ID] = len(sale.Items)
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	batchRows, err := db.QueryContext(ctx,
		`SELECT sib.sale_item_id, sib.batch_id, sib.quantity
		 FROM sale_item_batches sib
		 JOIN sale_items si ON si.id = sib.sale_item_id
		 WHERE si.sale_id = $1
		 ORDER BY sib.sale_item_id, sib.batch_id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get sale batches: %w", err)
	}
	defer batchRows.Close()

	for batchRows.Next() {
		var (
			itemID int64
			b      models.SaleItemBatch
		)
		if err := batchRows.Scan(&itemID, &b.BatchID, &b.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale batch: %w", err)
		}
		if i, ok := itemPos[itemID]; ok {
			sale.Items[i].Batches = append(sale.Items[i].Batches, b)
		}
	}
	if err := batchRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	offerRows, err := db.QueryContext(ctx,
		`SELECT id, sale_id, offer_id, source, description, discount_amount, product_ids
		 FROM sale_applied_offers
		 WHERE sale_id = $1
		 ORDER BY id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get applied offers: %w", err)
	}
	defer offerRows.Close()

	for offerRows.Next() {
		var (
			ao      models.SaleAppliedOffer
			offerID sql.NullInt64
		)
		err := offerRows.Scan(
			&ao.ID,
			&ao.SaleID,
			&offerID,
			&ao.Source,
			&ao.Description,
			&ao.DiscountAmount,
			pq.Array(&ao.ProductIDs),
		)
		if err != nil {
			return nil, fmt.Errorf("scan applied offer: %w", err)
		}
		if offerID.Valid {
			v := offerID.Int64
			ao.OfferID = &v
		}
		sale.AppliedOffers = append(sale.AppliedOffers, ao)
	}
	if err := offerRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sale, nil
}

// ListSalesCursor pages a customer's sales newest first.
func ListSalesCursor(ctx context.Context, db *sql.DB, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: decode cursor: %w", database.ErrInvalidInput, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+saleColumns+`
		 FROM sales
		 WHERE customer_id = $1
		   AND (created_at, id) < ($2, $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := []models.Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(sales) > limit
	if hasMore {
		sales = sales[:limit]
	}

	var nextCursor string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		nextCursor = EncodeCursor(SaleCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      sales,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
