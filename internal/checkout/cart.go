package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

var (
	ErrCartClosed   = errors.New("cart is not open")
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("product is not in the cart")
)

// Cart is a point-of-sale cart. It is re-evaluated after every change, so
// Result always reflects the current lines, customer and codes. A cart only
// changes while open; completed and abandoned carts are final.
type Cart struct {
	id      string
	service *Service

	mu         sync.Mutex
	status     Status
	lines      []pricing.CartLine
	customerID *int64
	codes      []string
	result     *pricing.CartResult
	saleID     *int64
	createdAt  time.Time
	updatedAt  time.Time
}

// View is a copy of a cart's state safe to hand out.
type View struct {
	ID         string              `json:"id"`
	Status     Status              `json:"status"`
	Lines      []pricing.CartLine  `json:"lines"`
	CustomerID *int64              `json:"customer_id,omitempty"`
	PromoCodes []string            `json:"promo_codes"`
	Result     *pricing.CartResult `json:"result,omitempty"`
	SaleID     *int64              `json:"sale_id,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (c *Cart) ID() string {
	return c.id
}

func (c *Cart) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Cart) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Cart) viewLocked() View {
	return View{
		ID:         c.id,
		Status:     c.status,
		Lines:      append([]pricing.CartLine{}, c.lines...),
		CustomerID: c.customerID,
		PromoCodes: append([]string{}, c.codes...),
		Result:     c.result,
		SaleID:     c.saleID,
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
	}
}

// AddItem adds quantity units of a product, merging with an existing line.
func (c *Cart) AddItem(ctx context.Context, productID int64, quantity int) (View, error) {
	if quantity <= 0 {
		return View{}, fmt.Errorf("%w: quantity must be positive", pricing.ErrInvalidCart)
	}
	return c.mutate(ctx, func(s *state) error {
		for i := range s.lines {
			if s.lines[i].ProductID == productID {
				s.lines[i].Quantity += quantity
				return nil
			}
		}
		s.lines = append(s.lines, pricing.CartLine{ProductID: productID, Quantity: quantity})
		return nil
	})
}

// SetQuantity replaces the quantity of a line. Zero removes it.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, fmt.Errorf("%w: quantity cannot be negative", pricing.ErrInvalidCart)
	}
	if quantity == 0 {
		return c.RemoveItem(ctx, productID)
	}
	return c.mutate(ctx, func(s *state) error {
		for i := range s.lines {
			if s.lines[i].ProductID == productID {
				s.lines[i].Quantity = quantity
				return nil
			}
		}
		return fmt.Errorf("product %d: %w", productID, ErrLineNotFound)
	})
}

func (c *Cart) RemoveItem(ctx context.Context, productID int64) (View, error) {
	return c.mutate(ctx, func(s *state) error {
		for i := range s.lines {
			if s.lines[i].ProductID == productID {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("product %d: %w", productID, ErrLineNotFound)
	})
}

// SetCustomer attaches a customer to the cart; nil makes it anonymous.
func (c *Cart) SetCustomer(ctx context.Context, customerID *int64) (View, error) {
	return c.mutate(ctx, func(s *state) error {
		s.customerID = customerID
		return nil
	})
}

// ApplyCode records a promotional code. Codes compare case-insensitively
// and applying one twice is a no-op.
func (c *Cart) ApplyCode(ctx context.Context, code string) (View, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return View{}, fmt.Errorf("%w: empty promo code", pricing.ErrInvalidCart)
	}
	return c.mutate(ctx, func(s *state) error {
		for _, existing := range s.codes {
			if strings.EqualFold(existing, code) {
				return nil
			}
		}
		s.codes = append(s.codes, code)
		return nil
	})
}

// Finalize re-prices the cart and hands it to the sale writer. While the
// sale is written the cart is finalizing and rejects changes. On failure it
// returns to open so the cashier can fix it and try again.
func (c *Cart) Finalize(ctx context.Context, paymentMethod string) (*models.Sale, error) {
	c.mu.Lock()
	if c.status != StatusOpen {
		status := c.status
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cart is %s", ErrCartClosed, status)
	}
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cart is empty", pricing.ErrInvalidCart)
	}
	result, err := c.service.evaluate(ctx, c.snapshotLocked())
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.result = result
	c.status = StatusFinalizing
	c.updatedAt = c.service.now()
	c.mu.Unlock()

	sale, err := c.service.sales.FinalizeSale(ctx, result, paymentMethod)

	c.mu.Lock()
	c.updatedAt = c.service.now()
	if err != nil {
		c.status = StatusOpen
		c.mu.Unlock()
		return nil, err
	}
	c.status = StatusCompleted
	saleID := sale.ID
	c.saleID = &saleID
	c.mu.Unlock()

	c.service.saleCompleted(ctx, c.id, sale)
	return sale, nil
}

// Abandon closes an open cart without selling.
func (c *Cart) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusOpen {
		return fmt.Errorf("%w: cart is %s", ErrCartClosed, c.status)
	}
	c.status = StatusAbandoned
	c.updatedAt = c.service.now()
	return nil
}

// state is the mutable part of a cart, copied before each change so a
// failed evaluation leaves the cart as it was.
type state struct {
	lines      []pricing.CartLine
	customerID *int64
	codes      []string
}

func (c *Cart) snapshotLocked() state {
	return state{
		lines:      append([]pricing.CartLine{}, c.lines...),
		customerID: c.customerID,
		codes:      append([]string{}, c.codes...),
	}
}

func (c *Cart) mutate(ctx context.Context, change func(*state) error) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusOpen {
		return View{}, fmt.Errorf("%w: cart is %s", ErrCartClosed, c.status)
	}

	next := c.snapshotLocked()
	if err := change(&next); err != nil {
		return View{}, err
	}
	result, err := c.service.evaluate(ctx, next)
	if err != nil {
		return View{}, err
	}

	c.lines = next.lines
	c.customerID = next.customerID
	c.codes = next.codes
	c.result = result
	c.updatedAt = c.service.now()
	return c.viewLocked(), nil
}
