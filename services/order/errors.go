package order

import "marketplace-backend/pkg/errutil"

// ErrCapacityExhausted signals that an offer's global or per-user cap is
// already reached. Callers must back off; retrying does not help until
// capacity frees up.
func ErrCapacityExhausted(offerID string) error {
	return errutil.Conflict("offer capacity exhausted", errutil.WithDetails(errutil.Detail{
		Field:   "offer_id",
		Message: offerID,
	}))
}

// ErrExpired signals a submit attempt past the order's deadline. Terminal
// for that order; no retry recovers it.
func ErrExpired(orderID string) error {
	return errutil.BadRequest("order expired", errutil.WithDetails(errutil.Detail{
		Field:   "order_id",
		Message: orderID,
	}))
}

// ErrInvalidState signals a cancel attempt on an order that already left
// opened.
func ErrInvalidState(orderID string) error {
	return errutil.BadRequest("order can no longer be cancelled", errutil.WithDetails(errutil.Detail{
		Field:   "order_id",
		Message: orderID,
	}))
}
