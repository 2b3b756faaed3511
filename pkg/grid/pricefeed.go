package grid

import (
	"context"
	"fmt"
	"sync/atomic"
)

// PriceFeed exposes the current mid-price for one coin. A push subscription
// refreshes the cached value from a background goroutine; Mid falls back to a
// synchronous book snapshot while the cache is cold.
type PriceFeed struct {
	coin   string
	snap   BookSnapshotter
	cached atomic.Value // float64
}

func NewPriceFeed(coin string, snap BookSnapshotter) *PriceFeed {
	return &PriceFeed{coin: coin, snap: snap}
}

// Update replaces the cached mid-price. Safe to call concurrently with Mid;
// last write wins. Non-positive values are ignored.
func (f *PriceFeed) Update(px float64) {
	if px > 0 {
		f.cached.Store(px)
	}
}

// Mid returns the last pushed mid-price, or fetches (bestBid+bestAsk)/2 from
// the book when no push value has arrived yet.
func (f *PriceFeed) Mid(ctx context.Context) (float64, error) {
	if v := f.cached.Load(); v != nil {
		return v.(float64), nil
	}

	bid, ask, err := f.snap.TopOfBook(ctx, f.coin)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}
	mid := (bid + ask) / 2
	if mid <= 0 {
		return 0, fmt.Errorf("%w: empty book", ErrNoPrice)
	}
	return mid, nil
}
