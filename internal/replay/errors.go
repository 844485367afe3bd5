package replay

import "errors"

var (
	// ErrInvalidOrdering is returned when rows are duplicated or out of timestamp order.
	ErrInvalidOrdering = errors.New("rows are not in strict timestamp order")

	// ErrNoStore is returned when the runner has no store for the requested source.
	ErrNoStore = errors.New("no store configured for source")
)
