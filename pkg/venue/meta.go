package venue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// defaultTickSizes covers the liquid perps the venue quotes at fixed price
// steps. Anything else falls back to a whole-number tick.
var defaultTickSizes = map[string]float64{
	"BTC":  0.1,
	"ETH":  0.01,
	"SOL":  0.01,
	"HYPE": 0.001,
}

const fallbackTickSize = 1.0

// MetaCache holds the venue's tradable universe, loaded once at startup. It
// answers tick-size and size-precision lookups without further round trips.
type MetaCache struct {
	info       *Info
	log        *zap.SugaredLogger
	szDecimals map[string]int
}

func NewMetaCache(info *Info, logger *zap.SugaredLogger) *MetaCache {
	return &MetaCache{
		info:       info,
		log:        logger,
		szDecimals: make(map[string]int),
	}
}

// Load fetches the universe and verifies coin is tradable.
func (m *MetaCache) Load(ctx context.Context, coin string) error {
	meta, err := m.info.Meta(ctx)
	if err != nil {
		return fmt.Errorf("load meta: %w", err)
	}
	for _, asset := range meta.Universe {
		m.szDecimals[asset.Name] = asset.SzDecimals
	}
	if _, ok := m.szDecimals[coin]; !ok {
		return fmt.Errorf("coin %s not in venue universe", coin)
	}
	m.log.Infow("meta_loaded", "assets", len(m.szDecimals))
	return nil
}

// TickSize returns the price step for coin, using the documented fallback
// when the coin has no known default.
func (m *MetaCache) TickSize(coin string) float64 {
	if tick, ok := defaultTickSizes[coin]; ok {
		return tick
	}
	m.log.Warnw("tick_size_fallback", "coin", coin, "tick", fallbackTickSize)
	return fallbackTickSize
}

// SzDecimals returns the size precision for coin as reported by the venue.
func (m *MetaCache) SzDecimals(coin string) (int, bool) {
	d, ok := m.szDecimals[coin]
	return d, ok
}
