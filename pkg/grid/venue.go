package grid

import "context"

// Role describes which side of the grid strategy an order serves. Entry
// orders open exposure at a level; exit orders unwind it at the level's
// take-profit price.
type Role string

const (
	RoleLongEntry  Role = "long_entry"
	RoleLongExit   Role = "long_exit"
	RoleShortEntry Role = "short_entry"
	RoleShortExit  Role = "short_exit"
)

// IsExit reports whether the role reduces an open position.
func (r Role) IsExit() bool {
	return r == RoleLongExit || r == RoleShortExit
}

// OrderSpec is a single limit order the engine wants resting on the book.
type OrderSpec struct {
	Coin       string
	IsBuy      bool
	Size       float64
	Price      float64
	ReduceOnly bool

	// Grid bookkeeping, not sent to the venue. PairPx is the entry fill
	// price an exit order is paired against.
	Level  int
	Role   Role
	PairPx float64
}

// PlaceStatus classifies the outcome of a placement request.
type PlaceStatus int

const (
	// PlaceResting means the order is on the book with an assigned id.
	PlaceResting PlaceStatus = iota
	// PlaceFilled means the order matched immediately on arrival.
	PlaceFilled
	// PlaceRejected means the venue refused the order.
	PlaceRejected
)

// PlaceResult is the decoded outcome of a single placement.
type PlaceResult struct {
	Status   PlaceStatus
	OID      int64
	AvgPrice float64
	Size     float64
	// Reason carries the venue's error string when Status is PlaceRejected.
	Reason string
}

// OpenOrder is one resting order as reported by the venue.
type OpenOrder struct {
	Coin    string
	OID     int64
	IsBuy   bool
	Price   float64
	Size    float64
	Created int64
}

// OrderDetail is the venue's view of a single order looked up by id. Raw
// holds the full decoded response body so callers can fall back to searching
// nested fields when the flat ones are absent.
type OrderDetail struct {
	Found    bool
	Status   string
	AvgPrice float64
	LimitPx  float64
	Raw      map[string]interface{}
}

// Position is the signed exposure for one coin.
type Position struct {
	Coin       string
	Size       float64
	EntryPx    float64
	Unrealized float64
}

// AccountState is the subset of the venue's account snapshot the risk gate
// consumes.
type AccountState struct {
	Balance   float64
	Positions []Position
}

// OrderClient places, cancels and inspects orders on the venue.
type OrderClient interface {
	Place(ctx context.Context, spec OrderSpec) (PlaceResult, error)
	CancelOrders(ctx context.Context, coin string, oids []int64) error
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
	QueryOrder(ctx context.Context, oid int64) (OrderDetail, error)
}

// AccountClient reads account state from the venue.
type AccountClient interface {
	AccountState(ctx context.Context) (AccountState, error)
}

// BookSnapshotter fetches top-of-book synchronously. Used as the fallback
// path when the push feed has not delivered a price yet.
type BookSnapshotter interface {
	TopOfBook(ctx context.Context, coin string) (bid, ask float64, err error)
}
