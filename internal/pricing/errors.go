package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOffer matches every *ValidationError.
	ErrInvalidOffer = errors.New("pricing: invalid offer")
	// ErrInvalidCart signals malformed cart lines such as non-positive quantities.
	ErrInvalidCart = errors.New("pricing: invalid cart")
	// ErrUnknownOfferType is returned when an offer type outside the closed set reaches the calculator.
	ErrUnknownOfferType = errors.New("pricing: unknown offer type")
	// ErrProductInactive is returned when a cart references a product that is not for sale.
	ErrProductInactive = errors.New("pricing: product inactive")
	// ErrInvalidPolicy signals a malformed policy table.
	ErrInvalidPolicy = errors.New("pricing: invalid policy")
)

// ValidationError describes one problem with an offer definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid offer: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOffer
}
