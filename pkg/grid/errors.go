package grid

import "errors"

// Failure taxonomy for the trading loop. Placement and query failures are
// handled at the point of use (retry queue or next-tick retry); none of these
// abort the loop.
var (
	// ErrNoPrice means neither the cached feed value nor a book snapshot
	// produced a usable mid-price.
	ErrNoPrice = errors.New("no mid-price available")

	// ErrInvalidGridRange means the configured band cannot produce levels
	// (min == max, inverted bounds, or a non-positive level count).
	ErrInvalidGridRange = errors.New("invalid grid range")

	// ErrPlacementRejected means the venue answered the placement with an
	// explicit error status.
	ErrPlacementRejected = errors.New("placement rejected")

	// ErrPlacementTransport means the placement request never produced a
	// well-formed venue response.
	ErrPlacementTransport = errors.New("placement transport failure")

	// ErrFillQuery means a vanished order's detail could not be resolved to a
	// fill price this tick.
	ErrFillQuery = errors.New("fill query failure")

	// ErrCancelConfirmation means open orders were still resting after the
	// bounded cancellation poll during a rebalance.
	ErrCancelConfirmation = errors.New("cancel confirmation timeout")

	// ErrRiskBlocked means the risk gate refused a rebalance cycle.
	ErrRiskBlocked = errors.New("risk gate blocked")
)
