package grid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/util"
)

// RiskConfig bounds when a full rebalance is allowed to run.
type RiskConfig struct {
	// MaxPositionFactor caps |position| at SizePerLevel * Levels * factor.
	MaxPositionFactor float64
	// MinBalanceFactor requires balance >= SizePerLevel * Levels * factor.
	MinBalanceFactor float64
	// MinOrderRatio requires openOrders >= Levels * ratio.
	MinOrderRatio float64

	// MaxTransportErrors within ErrorWindow blocks rebalancing.
	MaxTransportErrors int
	ErrorWindow        time.Duration

	// VolThreshold blocks when (max-min)/min of mids sampled over VolWindow
	// exceeds it.
	VolWindow    time.Duration
	VolThreshold float64
}

type midSample struct {
	at time.Time
	px float64
}

// RiskGate accumulates mid-price and error observations from the tick loop
// and decides whether a rebalance may proceed. Like the rest of the trading
// state it is single-threaded.
type RiskGate struct {
	cfg     RiskConfig
	account AccountClient
	clock   util.Clock
	log     *zap.SugaredLogger

	samples []midSample
	errs    []time.Time
}

func NewRiskGate(cfg RiskConfig, account AccountClient, clock util.Clock, logger *zap.SugaredLogger) *RiskGate {
	return &RiskGate{cfg: cfg, account: account, clock: clock, log: logger}
}

// ObserveMid records a mid-price sample for the volatility window.
func (g *RiskGate) ObserveMid(px float64) {
	if px <= 0 {
		return
	}
	now := g.clock.Now()
	g.samples = append(g.samples, midSample{at: now, px: px})
	g.trimSamples(now)
}

// ObserveTransportError records one failed venue call.
func (g *RiskGate) ObserveTransportError() {
	now := g.clock.Now()
	g.errs = append(g.errs, now)
	g.trimErrs(now)
}

func (g *RiskGate) trimSamples(now time.Time) {
	if g.cfg.VolWindow <= 0 {
		return
	}
	cutoff := now.Add(-g.cfg.VolWindow)
	i := 0
	for i < len(g.samples) && g.samples[i].at.Before(cutoff) {
		i++
	}
	g.samples = g.samples[i:]
}

func (g *RiskGate) trimErrs(now time.Time) {
	if g.cfg.ErrorWindow <= 0 {
		return
	}
	cutoff := now.Add(-g.cfg.ErrorWindow)
	i := 0
	for i < len(g.errs) && g.errs[i].Before(cutoff) {
		i++
	}
	g.errs = g.errs[i:]
}

// Volatility returns (max-min)/min over the sampled window, 0 when fewer
// than two samples exist.
func (g *RiskGate) Volatility() float64 {
	if len(g.samples) < 2 {
		return 0
	}
	lo, hi := g.samples[0].px, g.samples[0].px
	for _, s := range g.samples[1:] {
		if s.px < lo {
			lo = s.px
		}
		if s.px > hi {
			hi = s.px
		}
	}
	if lo <= 0 {
		return 0
	}
	return (hi - lo) / lo
}

// PreCheck evaluates every gate clause and returns ErrRiskBlocked with the
// first violated one. sizePerLevel and levels describe the configured ladder;
// openOrders is the ledger's current count.
func (g *RiskGate) PreCheck(ctx context.Context, coin string, sizePerLevel float64, levels, openOrders int) error {
	gridSize := sizePerLevel * float64(levels)

	state, err := g.account.AccountState(ctx)
	if err != nil {
		g.ObserveTransportError()
		return fmt.Errorf("%w: account state: %v", ErrRiskBlocked, err)
	}

	if g.cfg.MaxPositionFactor > 0 {
		pos := 0.0
		for _, p := range state.Positions {
			if p.Coin == coin {
				pos = p.Size
				break
			}
		}
		if abs(pos) > gridSize*g.cfg.MaxPositionFactor {
			return fmt.Errorf("%w: position %v exceeds %v", ErrRiskBlocked, pos, gridSize*g.cfg.MaxPositionFactor)
		}
	}

	if g.cfg.MinBalanceFactor > 0 {
		if floor := gridSize * g.cfg.MinBalanceFactor; state.Balance < floor {
			return fmt.Errorf("%w: balance %v below %v", ErrRiskBlocked, state.Balance, floor)
		}
	}

	if g.cfg.MinOrderRatio > 0 {
		if floor := float64(levels) * g.cfg.MinOrderRatio; float64(openOrders) < floor {
			return fmt.Errorf("%w: open orders %d below %v", ErrRiskBlocked, openOrders, floor)
		}
	}

	if g.cfg.MaxTransportErrors > 0 {
		g.trimErrs(g.clock.Now())
		if len(g.errs) > g.cfg.MaxTransportErrors {
			return fmt.Errorf("%w: %d transport errors in window", ErrRiskBlocked, len(g.errs))
		}
	}

	if g.cfg.VolThreshold > 0 {
		if vol := g.Volatility(); vol > g.cfg.VolThreshold {
			return fmt.Errorf("%w: volatility %.4f above %.4f", ErrRiskBlocked, vol, g.cfg.VolThreshold)
		}
	}

	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
