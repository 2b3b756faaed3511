package grid

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// defaultBandFraction is the symmetric band around mid-price used when no
// explicit bounds or ratio are configured.
const defaultBandFraction = 0.10

// PlannerConfig describes how the ladder of grid levels is laid out.
// Exactly one spacing scheme applies: explicit Min/Max bounds, a geometric
// Ratio, or (when both are zero) a default symmetric band around mid.
type PlannerConfig struct {
	Coin   string
	Levels int // interval count; the ladder has Levels+1 prices

	MinPrice float64
	MaxPrice float64

	Ratio    float64 // per-level multiplier for geometric spacing
	Centered bool    // straddle mid instead of anchoring the ladder on the entry side

	TickSize   float64
	TakeProfit float64 // fractional move between an entry and its paired exit

	SizePerLevel float64
	Long         bool
	Short        bool
}

// Planner computes tick-aligned grid level prices and the derived entry/exit
// prices for fills.
type Planner struct {
	cfg  PlannerConfig
	tick decimal.Decimal
	tp   decimal.Decimal
}

// NewPlanner validates the configuration once; per-call validation is limited
// to the mid-price.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if cfg.Levels <= 0 {
		return nil, fmt.Errorf("%w: levels=%d", ErrInvalidGridRange, cfg.Levels)
	}
	if cfg.TickSize <= 0 {
		return nil, fmt.Errorf("%w: tick size %v", ErrInvalidGridRange, cfg.TickSize)
	}
	if cfg.MinPrice != 0 || cfg.MaxPrice != 0 {
		if cfg.MinPrice >= cfg.MaxPrice {
			return nil, fmt.Errorf("%w: min %v >= max %v", ErrInvalidGridRange, cfg.MinPrice, cfg.MaxPrice)
		}
	}
	if cfg.Ratio != 0 && cfg.Ratio <= 1 {
		return nil, fmt.Errorf("%w: ratio %v must exceed 1", ErrInvalidGridRange, cfg.Ratio)
	}
	if cfg.Long == cfg.Short {
		return nil, fmt.Errorf("%w: exactly one of long/short mode must be set", ErrInvalidGridRange)
	}
	return &Planner{
		cfg:  cfg,
		tick: decimal.NewFromFloat(cfg.TickSize),
		tp:   decimal.NewFromFloat(cfg.TakeProfit),
	}, nil
}

// Levels returns the ascending ladder of tick-aligned prices for the given
// mid. The ladder always has cfg.Levels+1 entries.
func (p *Planner) Levels(mid float64) ([]float64, error) {
	if mid <= 0 {
		return nil, fmt.Errorf("%w: mid %v", ErrNoPrice, mid)
	}

	n := p.cfg.Levels
	prices := make([]float64, 0, n+1)

	switch {
	case p.cfg.Ratio != 0:
		// Geometric. Centered straddles mid; anchored puts mid at the rung
		// the grid trades away from, so every other level sits on the
		// configured entry side.
		offset := 0.0
		switch {
		case p.cfg.Centered:
			offset = float64(n) / 2
		case p.cfg.Long:
			offset = float64(n)
		}
		for i := 0; i <= n; i++ {
			prices = append(prices, mid*math.Pow(p.cfg.Ratio, float64(i)-offset))
		}
	default:
		lo, hi := p.cfg.MinPrice, p.cfg.MaxPrice
		if lo == 0 && hi == 0 {
			lo = mid * (1 - defaultBandFraction)
			hi = mid * (1 + defaultBandFraction)
		}
		step := (hi - lo) / float64(n)
		for i := 0; i <= n; i++ {
			prices = append(prices, lo+float64(i)*step)
		}
	}

	for i, px := range prices {
		prices[i] = p.RoundToTick(px)
	}
	return prices, nil
}

// InitialOrders builds the ladder's opening order specs around mid. Long mode
// places entry buys strictly below mid; short mode places entry sells strictly
// above mid. A level landing exactly on mid is left empty.
func (p *Planner) InitialOrders(mid float64) ([]OrderSpec, error) {
	prices, err := p.Levels(mid)
	if err != nil {
		return nil, err
	}

	specs := make([]OrderSpec, 0, len(prices))
	for i, px := range prices {
		switch {
		case p.cfg.Long && px < mid:
			specs = append(specs, OrderSpec{
				Coin:  p.cfg.Coin,
				IsBuy: true,
				Size:  p.cfg.SizePerLevel,
				Price: px,
				Level: i,
				Role:  RoleLongEntry,
			})
		case p.cfg.Short && px > mid:
			specs = append(specs, OrderSpec{
				Coin:  p.cfg.Coin,
				IsBuy: false,
				Size:  p.cfg.SizePerLevel,
				Price: px,
				Level: i,
				Role:  RoleShortEntry,
			})
		}
	}
	return specs, nil
}

// RoundToTick rounds px to the nearest tick multiple, half away from zero,
// quantized so the result is an exact multiple of the tick size.
func (p *Planner) RoundToTick(px float64) float64 {
	d := decimal.NewFromFloat(px)
	steps := d.Div(p.tick).Round(0)
	out, _ := steps.Mul(p.tick).Float64()
	return out
}

// ExitPrice computes the take-profit price paired with an entry fill. If tick
// rounding collapses the exit onto the entry, the exit is forced exactly one
// tick away in the profitable direction.
func (p *Planner) ExitPrice(entryPx float64, role Role) float64 {
	entry := decimal.NewFromFloat(entryPx)
	one := decimal.NewFromInt(1)

	var exit decimal.Decimal
	switch role {
	case RoleLongEntry:
		exit = p.roundDecimal(entry.Mul(one.Add(p.tp)))
		if exit.LessThanOrEqual(entry) {
			exit = entry.Add(p.tick)
		}
	case RoleShortEntry:
		exit = p.roundDecimal(entry.Mul(one.Sub(p.tp)))
		if exit.GreaterThanOrEqual(entry) {
			exit = entry.Sub(p.tick)
		}
	default:
		return entryPx
	}
	out, _ := exit.Float64()
	return out
}

// ReentryPrice computes the replacement entry price after an exit fill, i.e.
// the inverse of ExitPrice. The one-tick force keeps the reentry strictly on
// the entry side of the exit.
func (p *Planner) ReentryPrice(exitPx float64, role Role) float64 {
	exit := decimal.NewFromFloat(exitPx)
	one := decimal.NewFromInt(1)

	var entry decimal.Decimal
	switch role {
	case RoleLongExit:
		entry = p.roundDecimal(exit.Div(one.Add(p.tp)))
		if entry.GreaterThanOrEqual(exit) {
			entry = exit.Sub(p.tick)
		}
	case RoleShortExit:
		entry = p.roundDecimal(exit.Div(one.Sub(p.tp)))
		if entry.LessThanOrEqual(exit) {
			entry = exit.Add(p.tick)
		}
	default:
		return exitPx
	}
	out, _ := entry.Float64()
	return out
}

func (p *Planner) roundDecimal(d decimal.Decimal) decimal.Decimal {
	return d.Div(p.tick).Round(0).Mul(p.tick)
}
