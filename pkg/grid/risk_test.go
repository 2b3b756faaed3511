package grid

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestGate(venue *fakeVenue, clock *fakeClock, cfg RiskConfig) *RiskGate {
	return NewRiskGate(cfg, venue, clock, zap.NewNop().Sugar())
}

func TestRiskGate_PositionClause(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	gate := newTestGate(venue, clock, RiskConfig{MaxPositionFactor: 1.5})

	// grid size = 0.05 * 10 = 0.5; cap = 0.75
	venue.state.Positions = []Position{{Coin: "ETH", Size: 0.8}}
	err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10)
	if !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked for oversized position", err)
	}

	venue.state.Positions = []Position{{Coin: "ETH", Size: -0.7}}
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); err != nil {
		t.Errorf("PreCheck() = %v, want nil for position within cap", err)
	}

	// Positions in other coins are ignored.
	venue.state.Positions = []Position{{Coin: "BTC", Size: 100}}
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); err != nil {
		t.Errorf("PreCheck() = %v, want nil when only other coins held", err)
	}
}

func TestRiskGate_BalanceClause(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	gate := newTestGate(venue, clock, RiskConfig{MinBalanceFactor: 10})

	// floor = 0.05 * 10 * 10 = 5
	venue.state.Balance = 4
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked for thin balance", err)
	}

	venue.state.Balance = 6
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); err != nil {
		t.Errorf("PreCheck() = %v, want nil", err)
	}
}

func TestRiskGate_OrderRatioClause(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	gate := newTestGate(venue, clock, RiskConfig{MinOrderRatio: 0.5})

	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 4); !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked for thin ladder", err)
	}
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 5); err != nil {
		t.Errorf("PreCheck() = %v, want nil at exactly the floor", err)
	}
}

func TestRiskGate_TransportErrorClause(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	gate := newTestGate(venue, clock, RiskConfig{
		MaxTransportErrors: 2,
		ErrorWindow:        time.Minute,
	})

	for i := 0; i < 3; i++ {
		gate.ObserveTransportError()
	}
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked under error pressure", err)
	}

	// Errors age out of the window.
	clock.advance(2 * time.Minute)
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); err != nil {
		t.Errorf("PreCheck() = %v, want nil after errors aged out", err)
	}
}

func TestRiskGate_VolatilityClause(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	gate := newTestGate(venue, clock, RiskConfig{
		VolWindow:    10 * time.Minute,
		VolThreshold: 0.05,
	})

	gate.ObserveMid(100)
	clock.advance(time.Minute)
	gate.ObserveMid(106) // (106-100)/100 = 6% > 5%

	if got := gate.Volatility(); math.Abs(got-0.06) > 1e-9 {
		t.Errorf("Volatility() = %v, want 0.06", got)
	}
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked for volatility spike", err)
	}

	// Old samples fall out of the window; fresh calm samples pass.
	clock.advance(11 * time.Minute)
	gate.ObserveMid(106)
	clock.advance(time.Minute)
	gate.ObserveMid(107)
	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); err != nil {
		t.Errorf("PreCheck() = %v, want nil once calm", err)
	}
}

func TestRiskGate_AccountFetchFailureBlocks(t *testing.T) {
	clock := newFakeClock()
	venue := newFakeVenue()
	venue.stateErr = errors.New("timeout")
	gate := newTestGate(venue, clock, RiskConfig{MaxPositionFactor: 1.5})

	if err := gate.PreCheck(context.Background(), "ETH", 0.05, 10, 10); !errors.Is(err, ErrRiskBlocked) {
		t.Errorf("PreCheck() = %v, want ErrRiskBlocked when account state unavailable", err)
	}
}
