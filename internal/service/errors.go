package service

import "errors"

var (
	// ErrAlreadyPending is returned when the user already has a queued or
	// processing purchase job
	ErrAlreadyPending = errors.New("purchase already pending")

	// ErrAlreadyPurchased is returned when the user already holds a
	// confirmed order for the product
	ErrAlreadyPurchased = errors.New("product already purchased")

	// ErrNoActiveSale is returned when no sale exists at all
	ErrNoActiveSale = errors.New("no active flash sale")

	// ErrSaleNotOpen is returned when the sale exists but is not active
	ErrSaleNotOpen = errors.New("flash sale not open")

	// ErrOutOfStock is returned when the product has no available stock
	ErrOutOfStock = errors.New("product out of stock")

	// ErrTooManyAttempts is returned when the user exceeds the admission
	// rate limit
	ErrTooManyAttempts = errors.New("too many purchase attempts")

	// ErrSaleNotFound is returned when a sale cannot be found by id
	ErrSaleNotFound = errors.New("flash sale not found")

	// ErrProductNotFound is returned when a product cannot be found
	ErrProductNotFound = errors.New("product not found")

	// ErrStockNotFound is returned when a product has no stock row
	ErrStockNotFound = errors.New("stock not found")

	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrJobNotFound is returned when a purchase job cannot be found
	ErrJobNotFound = errors.New("purchase job not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidTimeRange is returned when a sale's end time is not after
	// its start time
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrAdminMismatch is returned when a non-admin email requests an
	// admin login
	ErrAdminMismatch = errors.New("email is not an admin account")

	// ErrInvalidToken is returned for missing, malformed, or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)
