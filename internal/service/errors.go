package service

import (
	"errors"
	"fmt"
)

// The checkout/promotion error taxonomy. Validation errors are caught
// before any transaction opens; business-rule errors roll the transaction
// back but are safe to show to the user; everything else is infrastructure
// and must stay opaque to the client.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("producto no encontrado: %s", e.ProductID)
}

type ProductUnavailableError struct {
	ProductName string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("el producto %q ya no está disponible", e.ProductName)
}

type InsufficientStockError struct {
	ProductName string
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %q. Disponible: %d", e.ProductName, e.Available)
}

type PromotionConflictError struct {
	ProductName   string
	ProductSKU    string
	PromotionName string
}

func (e *PromotionConflictError) Error() string {
	return fmt.Sprintf("%s (%s) ya tiene la promoción %q activa", e.ProductName, e.ProductSKU, e.PromotionName)
}

// IsBusinessError distinguishes the user-correctable rejections from
// infrastructure failures. The HTTP layer maps business errors to 422 and
// everything else to 500.
func IsBusinessError(err error) bool {
	var notFound *ProductNotFoundError
	var unavailable *ProductUnavailableError
	var stock *InsufficientStockError
	var conflict *PromotionConflictError

	return errors.As(err, &notFound) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &stock) ||
		errors.As(err, &conflict)
}
