package repository

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrPromotionNotFound    = errors.New("promotion not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartConflict         = errors.New("cart was modified concurrently")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)
