package grid

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats accumulates fill activity and realized P&L. Mutated only from the
// engine loop; the prometheus collectors it feeds are safe to scrape
// concurrently.
type Stats struct {
	fills   map[Role]int64
	volumes map[Role]float64

	realizedPnl   float64
	netSize       float64
	entryNotional float64

	fillCounter   *prometheus.CounterVec
	volumeCounter *prometheus.CounterVec
	pnlGauge      prometheus.Gauge
	openGauge     prometheus.Gauge
	midGauge      prometheus.Gauge
	tickHist      prometheus.Histogram
}

// StatsSnapshot is a point-in-time view emitted by the periodic report and
// served over the status API.
type StatsSnapshot struct {
	Fills         map[Role]int64   `json:"fills"`
	Volumes       map[Role]float64 `json:"volumes"`
	RealizedPnl   float64          `json:"realized_pnl"`
	NetSize       float64          `json:"net_size"`
	AvgEntryPx    float64          `json:"avg_entry_px"`
	UnrealizedPnl float64          `json:"unrealized_pnl"`
}

// NewStats builds the tracker and registers its collectors. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		fills:   make(map[Role]int64),
		volumes: make(map[Role]float64),
		fillCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergrid",
			Name:      "fills_total",
			Help:      "Resolved fills by grid role",
		}, []string{"role"}),
		volumeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergrid",
			Name:      "fill_volume_total",
			Help:      "Filled base size by grid role",
		}, []string{"role"}),
		pnlGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hypergrid",
			Name:      "realized_pnl",
			Help:      "Cumulative realized P&L in quote asset",
		}),
		openGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hypergrid",
			Name:      "open_orders",
			Help:      "Orders currently tracked in the ledger",
		}),
		midGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hypergrid",
			Name:      "mid_price",
			Help:      "Last observed mid-price",
		}),
		tickHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hypergrid",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one engine tick",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(s.fillCounter, s.volumeCounter, s.pnlGauge, s.openGauge, s.midGauge, s.tickHist)
	}
	return s
}

// RecordFill accounts for one resolved fill. Entry fills grow the cost basis;
// exit fills shrink it proportionally.
func (s *Stats) RecordFill(role Role, px, size float64) {
	s.fills[role]++
	s.volumes[role] += size
	s.fillCounter.WithLabelValues(string(role)).Inc()
	s.volumeCounter.WithLabelValues(string(role)).Add(size)

	switch role {
	case RoleLongEntry:
		s.netSize += size
		s.entryNotional += px * size
	case RoleShortEntry:
		s.netSize -= size
		s.entryNotional -= px * size
	case RoleLongExit:
		if avg := s.avgEntryPx(); avg > 0 {
			s.entryNotional -= avg * size
		}
		s.netSize -= size
	case RoleShortExit:
		if avg := s.avgEntryPx(); avg > 0 {
			s.entryNotional += avg * size
		}
		s.netSize += size
	}
}

// RecordRealized adds a completed round trip's profit or loss.
func (s *Stats) RecordRealized(pnl float64) {
	s.realizedPnl += pnl
	s.pnlGauge.Set(s.realizedPnl)
}

// SetOpenOrders updates the tracked-order gauge.
func (s *Stats) SetOpenOrders(n int) {
	s.openGauge.Set(float64(n))
}

// SetMid updates the mid-price gauge.
func (s *Stats) SetMid(px float64) {
	s.midGauge.Set(px)
}

// ObserveTickDuration records one tick's wall time.
func (s *Stats) ObserveTickDuration(d time.Duration) {
	s.tickHist.Observe(d.Seconds())
}

func (s *Stats) avgEntryPx() float64 {
	if s.netSize == 0 {
		return 0
	}
	avg := s.entryNotional / s.netSize
	if avg < 0 {
		return -avg
	}
	return avg
}

// Snapshot returns the current totals. Unrealized P&L is estimated as net
// held size times the distance between mid and the average entry price.
func (s *Stats) Snapshot(mid float64) StatsSnapshot {
	fills := make(map[Role]int64, len(s.fills))
	for k, v := range s.fills {
		fills[k] = v
	}
	volumes := make(map[Role]float64, len(s.volumes))
	for k, v := range s.volumes {
		volumes[k] = v
	}

	snap := StatsSnapshot{
		Fills:       fills,
		Volumes:     volumes,
		RealizedPnl: s.realizedPnl,
		NetSize:     s.netSize,
		AvgEntryPx:  s.avgEntryPx(),
	}
	if mid > 0 && s.netSize != 0 && snap.AvgEntryPx > 0 {
		snap.UnrealizedPnl = s.netSize * (mid - snap.AvgEntryPx)
	}
	return snap
}
