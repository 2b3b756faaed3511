package grid

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/util"
)

const (
	defaultTickInterval   = 2 * time.Second
	defaultReportInterval = 60 * time.Second
	defaultErrorPause     = 5 * time.Second
	defaultCancelAttempts = 5
	defaultCancelDelay    = time.Second
)

// EngineConfig tunes the tick loop and rebalance cadence.
type EngineConfig struct {
	Coin           string
	TickInterval   time.Duration
	ReportInterval time.Duration
	// ErrorPause is how long the loop idles after a tick fails unexpectedly.
	ErrorPause time.Duration

	RebalanceEnabled  bool
	RebalanceInterval time.Duration

	CancelPollAttempts int
	CancelPollDelay    time.Duration
	// PostCheckTolerance is the allowed deviation between expected and
	// observed open-order count after a rebalance.
	PostCheckTolerance int
}

func (c *EngineConfig) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = defaultReportInterval
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = defaultErrorPause
	}
	if c.CancelPollAttempts <= 0 {
		c.CancelPollAttempts = defaultCancelAttempts
	}
	if c.CancelPollDelay <= 0 {
		c.CancelPollDelay = defaultCancelDelay
	}
	if c.PostCheckTolerance <= 0 {
		c.PostCheckTolerance = 2
	}
}

// EngineStatus is a concurrency-safe snapshot of the engine published at the
// end of every tick for the status API.
type EngineStatus struct {
	Coin       string        `json:"coin"`
	Mid        float64       `json:"mid"`
	Orders     []OrderRecord `json:"orders"`
	RetryDepth int           `json:"retry_depth"`
	Stats      StatsSnapshot `json:"stats"`
	LastTick   time.Time     `json:"last_tick"`
	StartedAt  time.Time     `json:"started_at"`
}

// Engine runs the single-threaded trading loop: drain retries, reconcile
// fills, report stats, and periodically rebalance the whole ladder behind
// the risk gate.
type Engine struct {
	cfg     EngineConfig
	orders  OrderClient
	planner *Planner
	ledger  *Ledger
	retries *RetryQueue
	rec     *Reconciler
	risk    *RiskGate
	feed    *PriceFeed
	stats   *Stats
	clock   util.Clock
	log     *zap.SugaredLogger

	sizePerLevel float64
	levels       int

	lastReport    time.Time
	lastRebalance time.Time
	startedAt     time.Time

	status atomic.Value // EngineStatus
}

func NewEngine(cfg EngineConfig, orders OrderClient, planner *Planner, ledger *Ledger, retries *RetryQueue, rec *Reconciler, risk *RiskGate, feed *PriceFeed, stats *Stats, sizePerLevel float64, levels int, clock util.Clock, logger *zap.SugaredLogger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:          cfg,
		orders:       orders,
		planner:      planner,
		ledger:       ledger,
		retries:      retries,
		rec:          rec,
		risk:         risk,
		feed:         feed,
		stats:        stats,
		sizePerLevel: sizePerLevel,
		levels:       levels,
		clock:        clock,
		log:          logger,
	}
}

// Status returns the snapshot published by the last completed tick.
func (e *Engine) Status() EngineStatus {
	if v := e.status.Load(); v != nil {
		return v.(EngineStatus)
	}
	return EngineStatus{Coin: e.cfg.Coin}
}

// Run clears any leftover orders from a previous process, places the initial
// ladder, then ticks until ctx is cancelled. Tick failures never terminate
// the loop; the engine idles briefly and tries again.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = e.clock.Now()
	e.lastRebalance = e.startedAt

	if err := e.startup(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	e.log.Infow("engine_started",
		"coin", e.cfg.Coin, "levels", e.levels,
		"tick_interval", e.cfg.TickInterval, "rebalance_enabled", e.cfg.RebalanceEnabled)

	for {
		select {
		case <-ctx.Done():
			e.log.Infow("engine_stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-e.clock.After(e.cfg.TickInterval):
			if err := e.safeTick(ctx); err != nil {
				e.log.Errorw("tick_failed", "err", err)
				if sleepErr := util.Sleep(ctx, e.clock, e.cfg.ErrorPause); sleepErr != nil {
					return sleepErr
				}
			}
		}
	}
}

// safeTick converts a panicking tick into an error so one bad response
// cannot take the process down.
func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	e.tick(ctx)
	return nil
}

func (e *Engine) tick(ctx context.Context) {
	now := e.clock.Now()

	mid, err := e.feed.Mid(ctx)
	if err != nil {
		e.log.Warnw("mid_price_unavailable", "err", err)
	} else {
		e.risk.ObserveMid(mid)
		e.stats.SetMid(mid)
	}

	e.rec.DrainRetries(ctx)
	e.rec.Check(ctx)

	if now.Sub(e.lastReport) >= e.cfg.ReportInterval {
		e.lastReport = now
		e.report(mid)
	}

	if e.cfg.RebalanceEnabled && now.Sub(e.lastRebalance) >= e.cfg.RebalanceInterval {
		e.lastRebalance = now
		e.rebalance(ctx, mid)
	}

	e.publishStatus(mid, now)
	e.stats.ObserveTickDuration(e.clock.Now().Sub(now))
}

func (e *Engine) report(mid float64) {
	snap := e.stats.Snapshot(mid)
	e.log.Infow("grid_status",
		"coin", e.cfg.Coin,
		"mid", mid,
		"tracked_orders", e.ledger.Len(),
		"retry_depth", e.retries.Len(),
		"fills", snap.Fills,
		"realized_pnl", snap.RealizedPnl,
		"unrealized_pnl", snap.UnrealizedPnl,
		"net_size", snap.NetSize,
	)
	for _, rec := range e.ledger.Records() {
		e.log.Debugw("ladder_level",
			"level", rec.Level, "role", rec.Role, "px", rec.Price, "oid", rec.OID)
	}
}

func (e *Engine) publishStatus(mid float64, now time.Time) {
	e.status.Store(EngineStatus{
		Coin:       e.cfg.Coin,
		Mid:        mid,
		Orders:     e.ledger.Records(),
		RetryDepth: e.retries.Len(),
		Stats:      e.stats.Snapshot(mid),
		LastTick:   now,
		StartedAt:  e.startedAt,
	})
}

// startup cancels every order left on the book from a previous run, then
// places the opening ladder. There is no persisted state; the cancel sweep
// is the only recovery path after a restart.
func (e *Engine) startup(ctx context.Context) error {
	for attempt := 1; attempt <= e.cfg.CancelPollAttempts; attempt++ {
		open, err := e.orders.OpenOrders(ctx)
		if err != nil {
			e.risk.ObserveTransportError()
			e.log.Warnw("startup_open_orders_failed", "attempt", attempt, "err", err)
			if err := util.Sleep(ctx, e.clock, e.cfg.CancelPollDelay); err != nil {
				return err
			}
			continue
		}

		oids := coinOIDs(open, e.cfg.Coin)
		if len(oids) == 0 {
			return e.placeLadder(ctx)
		}

		e.log.Infow("startup_cancel_sweep", "attempt", attempt, "orders", len(oids))
		if err := e.orders.CancelOrders(ctx, e.cfg.Coin, oids); err != nil {
			e.risk.ObserveTransportError()
			e.log.Warnw("startup_cancel_failed", "attempt", attempt, "err", err)
		}
		if err := util.Sleep(ctx, e.clock, e.cfg.CancelPollDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: stale orders still open after %d attempts", ErrCancelConfirmation, e.cfg.CancelPollAttempts)
}

func (e *Engine) placeLadder(ctx context.Context) error {
	mid, err := e.feed.Mid(ctx)
	if err != nil {
		return err
	}
	specs, err := e.planner.InitialOrders(mid)
	if err != nil {
		return err
	}
	e.log.Infow("ladder_placement", "coin", e.cfg.Coin, "mid", mid, "orders", len(specs))
	for _, spec := range specs {
		e.rec.Place(ctx, spec, 0)
	}
	return nil
}

// rebalance tears the ladder down and rebuilds it around the current mid.
// It refuses to touch the ledger until every tracked order is confirmed off
// the book: an unconfirmed cancellation aborts the whole cycle.
func (e *Engine) rebalance(ctx context.Context, mid float64) {
	if err := e.risk.PreCheck(ctx, e.cfg.Coin, e.sizePerLevel, e.levels, e.ledger.Len()); err != nil {
		e.log.Infow("rebalance_skipped", "err", err)
		return
	}
	if mid <= 0 {
		e.log.Warnw("rebalance_skipped", "err", ErrNoPrice)
		return
	}

	oids := e.ledger.OIDs()
	if len(oids) > 0 {
		if err := e.orders.CancelOrders(ctx, e.cfg.Coin, oids); err != nil {
			e.risk.ObserveTransportError()
			e.log.Warnw("rebalance_cancel_failed", "err", err)
			return
		}
		if !e.confirmCancelled(ctx, oids) {
			e.log.Warnw("rebalance_aborted", "err", ErrCancelConfirmation)
			return
		}
	}

	e.ledger.Clear()
	e.retries.Clear()

	specs, err := e.planner.InitialOrders(mid)
	if err != nil {
		e.log.Errorw("rebalance_plan_failed", "err", err)
		return
	}
	e.log.Infow("rebalance_replacing_ladder", "mid", mid, "orders", len(specs))
	for _, spec := range specs {
		e.rec.Place(ctx, spec, 0)
	}

	e.postCheck(ctx, len(specs))
}

// confirmCancelled polls the open-order set until none of the cancelled ids
// remain, bounded by the configured attempts.
func (e *Engine) confirmCancelled(ctx context.Context, oids []int64) bool {
	pending := make(map[int64]struct{}, len(oids))
	for _, oid := range oids {
		pending[oid] = struct{}{}
	}

	for attempt := 1; attempt <= e.cfg.CancelPollAttempts; attempt++ {
		open, err := e.orders.OpenOrders(ctx)
		if err != nil {
			e.risk.ObserveTransportError()
			e.log.Warnw("cancel_confirm_fetch_failed", "attempt", attempt, "err", err)
		} else {
			remaining := 0
			for _, o := range open {
				if _, ok := pending[o.OID]; ok {
					remaining++
				}
			}
			if remaining == 0 {
				return true
			}
			e.log.Infow("cancel_confirm_pending", "attempt", attempt, "remaining", remaining)
		}
		if err := util.Sleep(ctx, e.clock, e.cfg.CancelPollDelay); err != nil {
			return false
		}
	}
	return false
}

func (e *Engine) postCheck(ctx context.Context, expected int) {
	open, err := e.orders.OpenOrders(ctx)
	if err != nil {
		e.risk.ObserveTransportError()
		e.log.Warnw("post_check_fetch_failed", "err", err)
		return
	}
	got := len(coinOIDs(open, e.cfg.Coin))
	if diff := got - expected; diff > e.cfg.PostCheckTolerance || diff < -e.cfg.PostCheckTolerance {
		e.log.Warnw("post_check_order_count_deviates", "expected", expected, "open", got)
	}
}

func coinOIDs(open []OpenOrder, coin string) []int64 {
	oids := make([]int64, 0, len(open))
	for _, o := range open {
		if o.Coin == coin {
			oids = append(oids, o.OID)
		}
	}
	return oids
}
