package grid

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/util"
)

// defaultCheckInterval throttles open-order fetches during reconciliation.
const defaultCheckInterval = 5 * time.Second

// FillEvent is one resolved fill, emitted to the journal and status API.
type FillEvent struct {
	Coin  string    `json:"coin"`
	OID   int64     `json:"oid"`
	Level int       `json:"level"`
	Role  Role      `json:"role"`
	IsBuy bool      `json:"is_buy"`
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Time  time.Time `json:"time"`
}

// Reconciler owns the order lifecycle: it places grid orders, diffs the
// ledger against the venue's open-order set, resolves fill prices for
// vanished ids, and issues complementary orders. All methods run on the
// engine's tick loop.
type Reconciler struct {
	coin    string
	orders  OrderClient
	ledger  *Ledger
	retries *RetryQueue
	planner *Planner
	feed    *PriceFeed
	stats   *Stats
	clock   util.Clock
	log     *zap.SugaredLogger

	interval  time.Duration
	lastCheck time.Time

	// onFill, when set, receives every resolved fill.
	onFill      func(FillEvent)
	onTransport func()
}

func (r *Reconciler) noteTransportError() {
	if r.onTransport != nil {
		r.onTransport()
	}
}

type ReconcilerConfig struct {
	Coin          string
	CheckInterval time.Duration
	OnFill        func(FillEvent)
	// OnTransportError is invoked on every failed venue call so the risk
	// gate can track error pressure.
	OnTransportError func()
}

func NewReconciler(cfg ReconcilerConfig, orders OrderClient, ledger *Ledger, retries *RetryQueue, planner *Planner, feed *PriceFeed, stats *Stats, clock util.Clock, logger *zap.SugaredLogger) *Reconciler {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Reconciler{
		coin:        cfg.Coin,
		orders:      orders,
		ledger:      ledger,
		retries:     retries,
		planner:     planner,
		feed:        feed,
		stats:       stats,
		clock:       clock,
		log:         logger,
		interval:    interval,
		onFill:      cfg.OnFill,
		onTransport: cfg.OnTransportError,
	}
}

// Check diffs tracked order ids against the venue's open set and processes
// every vanished order. It is a no-op between throttle intervals and issues
// zero placements when nothing has vanished.
func (r *Reconciler) Check(ctx context.Context) error {
	now := r.clock.Now()
	if !r.lastCheck.IsZero() && now.Sub(r.lastCheck) < r.interval {
		return nil
	}
	r.lastCheck = now

	open, err := r.orders.OpenOrders(ctx)
	if err != nil {
		r.noteTransportError()
		r.log.Warnw("open_orders_fetch_failed", "err", err)
		return err
	}
	openSet := make(map[int64]struct{}, len(open))
	for _, o := range open {
		openSet[o.OID] = struct{}{}
	}

	for _, oid := range r.ledger.OIDs() {
		if _, stillOpen := openSet[oid]; stillOpen {
			continue
		}
		r.resolveVanished(ctx, oid)
	}
	r.stats.SetOpenOrders(r.ledger.Len())
	return nil
}

// resolveVanished queries a vanished order and either records its fill or
// drops it as externally cancelled. On query failure the order stays tracked
// and is revisited next check.
func (r *Reconciler) resolveVanished(ctx context.Context, oid int64) {
	rec, ok := r.ledger.Get(oid)
	if !ok {
		return
	}

	detail, err := r.orders.QueryOrder(ctx, oid)
	if err != nil {
		r.log.Warnw("fill_query_failed", "oid", oid, "level", rec.Level, "err", err)
		return
	}

	if detail.Found && isCancelledStatus(detail.Status) {
		r.ledger.Remove(oid)
		r.log.Infow("order_externally_cancelled", "oid", oid, "level", rec.Level, "role", rec.Role)
		return
	}

	fillPx, ok := resolveFillPrice(detail, rec)
	if !ok {
		r.log.Warnw("fill_price_unresolved", "oid", oid, "level", rec.Level,
			"err", fmt.Errorf("%w: oid %d", ErrFillQuery, oid))
		return
	}

	r.ledger.Remove(oid)
	r.handleFill(ctx, rec, fillPx, 0)
}

func isCancelledStatus(status string) bool {
	return status == "canceled" || status == "cancelled" || status == "marginCanceled"
}

// resolveFillPrice applies the fallback chain: average fill price when
// present and non-zero, else the original limit price, else a recursive
// search of the raw response for a usable price field.
func resolveFillPrice(detail OrderDetail, rec OrderRecord) (float64, bool) {
	if detail.AvgPrice > 0 {
		return detail.AvgPrice, true
	}
	if detail.LimitPx > 0 {
		return detail.LimitPx, true
	}
	for _, key := range []string{"avgPx", "limitPx"} {
		if px, ok := findPriceField(detail.Raw, key); ok && px > 0 {
			return px, true
		}
	}
	if rec.Price > 0 {
		return rec.Price, true
	}
	return 0, false
}

// findPriceField walks nested maps and slices looking for key holding a
// numeric value. Venue responses bury fill details at varying depths.
func findPriceField(v interface{}, key string) (float64, bool) {
	switch node := v.(type) {
	case map[string]interface{}:
		if raw, ok := node[key]; ok {
			if px, ok := asFloat(raw); ok {
				return px, true
			}
		}
		for _, child := range node {
			if px, ok := findPriceField(child, key); ok {
				return px, true
			}
		}
	case []interface{}:
		for _, child := range node {
			if px, ok := findPriceField(child, key); ok {
				return px, true
			}
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		px, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return px, true
	}
	return 0, false
}

// handleFill records a resolved fill and issues the complementary order.
// depth guards against unbounded recursion when placements fill on arrival:
// a synchronous fill of a complementary order is recorded but not chained
// further; its replacement appears on a later reconciliation pass.
func (r *Reconciler) handleFill(ctx context.Context, rec OrderRecord, fillPx float64, depth int) {
	r.stats.RecordFill(rec.Role, fillPx, rec.Size)
	r.emitFill(rec, fillPx)

	r.log.Infow("fill_resolved",
		"coin", rec.Coin, "oid", rec.OID, "level", rec.Level,
		"role", rec.Role, "px", fillPx, "sz", rec.Size)

	if rec.Role.IsExit() {
		pnl := (fillPx - rec.PairPx) * rec.Size
		if rec.Role == RoleShortExit {
			pnl = (rec.PairPx - fillPx) * rec.Size
		}
		r.stats.RecordRealized(pnl)
		r.log.Infow("round_trip_realized",
			"level", rec.Level, "entry_px", rec.PairPx, "exit_px", fillPx, "pnl", pnl)
	}

	if depth > 0 {
		r.log.Infow("sync_fill_not_chained", "oid", rec.OID, "level", rec.Level, "role", rec.Role)
		return
	}

	next, ok := r.complementary(ctx, rec, fillPx)
	if !ok {
		return
	}
	r.Place(ctx, next, depth+1)
}

// complementary builds the order that follows a fill: a reduce-only exit
// after an entry fill, or a fresh entry after an exit fill. Replacement
// entries are withheld when the current mid sits on the wrong side of the
// candidate price, which would risk the grid trading against itself.
func (r *Reconciler) complementary(ctx context.Context, rec OrderRecord, fillPx float64) (OrderSpec, bool) {
	switch rec.Role {
	case RoleLongEntry:
		return OrderSpec{
			Coin:       rec.Coin,
			IsBuy:      false,
			Size:       rec.Size,
			Price:      r.planner.ExitPrice(fillPx, RoleLongEntry),
			ReduceOnly: true,
			Level:      rec.Level,
			Role:       RoleLongExit,
			PairPx:     fillPx,
		}, true
	case RoleShortEntry:
		return OrderSpec{
			Coin:       rec.Coin,
			IsBuy:      true,
			Size:       rec.Size,
			Price:      r.planner.ExitPrice(fillPx, RoleShortEntry),
			ReduceOnly: true,
			Level:      rec.Level,
			Role:       RoleShortExit,
			PairPx:     fillPx,
		}, true
	case RoleLongExit:
		px := r.planner.ReentryPrice(fillPx, RoleLongExit)
		if !r.entryGuardOK(ctx, true, px, rec.Level) {
			return OrderSpec{}, false
		}
		return OrderSpec{
			Coin:  rec.Coin,
			IsBuy: true,
			Size:  rec.Size,
			Price: px,
			Level: rec.Level,
			Role:  RoleLongEntry,
		}, true
	case RoleShortExit:
		px := r.planner.ReentryPrice(fillPx, RoleShortExit)
		if !r.entryGuardOK(ctx, false, px, rec.Level) {
			return OrderSpec{}, false
		}
		return OrderSpec{
			Coin:  rec.Coin,
			IsBuy: false,
			Size:  rec.Size,
			Price: px,
			Level: rec.Level,
			Role:  RoleShortEntry,
		}, true
	}
	return OrderSpec{}, false
}

// entryGuardOK requires mid > px for a replacement buy and mid < px for a
// replacement sell. A failed guard only withholds the new order; the filled
// one is already off the ledger.
func (r *Reconciler) entryGuardOK(ctx context.Context, isBuy bool, px float64, level int) bool {
	mid, err := r.feed.Mid(ctx)
	if err != nil {
		r.log.Warnw("entry_guard_no_price", "level", level, "err", err)
		return false
	}
	if isBuy && mid <= px {
		r.log.Infow("entry_withheld_wash_guard", "level", level, "px", px, "mid", mid, "side", "buy")
		return false
	}
	if !isBuy && mid >= px {
		r.log.Infow("entry_withheld_wash_guard", "level", level, "px", px, "mid", mid, "side", "sell")
		return false
	}
	return true
}

// Place submits one order and registers the outcome: resting orders join the
// ledger, synchronous fills are handled inline, and failures of any kind are
// queued for retry. depth is 0 for ladder and retry placements.
func (r *Reconciler) Place(ctx context.Context, spec OrderSpec, depth int) {
	res, err := r.orders.Place(ctx, spec)
	if err != nil {
		r.noteTransportError()
		r.log.Warnw("placement_transport_failed",
			"level", spec.Level, "role", spec.Role, "px", spec.Price,
			"err", fmt.Errorf("%w: %v", ErrPlacementTransport, err))
		r.retries.Push(spec, r.clock.Now(), err)
		return
	}

	switch res.Status {
	case PlaceResting:
		rec := OrderRecord{
			OID:        res.OID,
			Coin:       spec.Coin,
			IsBuy:      spec.IsBuy,
			Size:       spec.Size,
			Price:      spec.Price,
			ReduceOnly: spec.ReduceOnly,
			Level:      spec.Level,
			Role:       spec.Role,
			PairPx:     spec.PairPx,
			PlacedAt:   r.clock.Now(),
		}
		if displaced, had := r.ledger.Track(rec); had {
			r.log.Warnw("ledger_slot_displaced",
				"level", rec.Level, "role", rec.Role, "old_oid", displaced.OID, "new_oid", rec.OID)
		}
		r.log.Infow("order_placed",
			"coin", spec.Coin, "oid", res.OID, "level", spec.Level,
			"role", spec.Role, "px", spec.Price, "sz", spec.Size, "buy", spec.IsBuy)
	case PlaceFilled:
		px := res.AvgPrice
		if px <= 0 {
			px = spec.Price
		}
		sz := res.Size
		if sz <= 0 {
			sz = spec.Size
		}
		rec := OrderRecord{
			OID:        res.OID,
			Coin:       spec.Coin,
			IsBuy:      spec.IsBuy,
			Size:       sz,
			Price:      spec.Price,
			ReduceOnly: spec.ReduceOnly,
			Level:      spec.Level,
			Role:       spec.Role,
			PairPx:     spec.PairPx,
			PlacedAt:   r.clock.Now(),
		}
		r.log.Infow("order_filled_on_arrival",
			"coin", spec.Coin, "oid", res.OID, "level", spec.Level, "role", spec.Role, "px", px)
		r.handleFill(ctx, rec, px, depth)
	case PlaceRejected:
		err := fmt.Errorf("%w: %s", ErrPlacementRejected, res.Reason)
		r.log.Warnw("placement_rejected",
			"level", spec.Level, "role", spec.Role, "px", spec.Price, "err", err)
		r.retries.Push(spec, r.clock.Now(), err)
	}
}

// DrainRetries resubmits every queued placement once. Entries that fail again
// re-enter the queue via Place.
func (r *Reconciler) DrainRetries(ctx context.Context) {
	pending := r.retries.TakeAll()
	if len(pending) == 0 {
		return
	}
	r.log.Infow("retry_queue_drain", "pending", len(pending))
	for _, item := range pending {
		r.Place(ctx, item.Spec, 0)
	}
}

func (r *Reconciler) emitFill(rec OrderRecord, fillPx float64) {
	if r.onFill == nil {
		return
	}
	r.onFill(FillEvent{
		Coin:  rec.Coin,
		OID:   rec.OID,
		Level: rec.Level,
		Role:  rec.Role,
		IsBuy: rec.IsBuy,
		Price: fillPx,
		Size:  rec.Size,
		Time:  r.clock.Now(),
	})
}
