package journal

import (
	"testing"
	"time"

	"github.com/uhyunpark/hypergrid/pkg/grid"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := grid.FillEvent{
			Coin:  "ETH",
			OID:   int64(100 + i),
			Level: i,
			Role:  grid.RoleLongEntry,
			IsBuy: true,
			Price: 2490 + float64(i),
			Size:  0.05,
			Time:  base.Add(time.Duration(i) * time.Second),
		}
		entry, err := j.AppendFill(ev)
		if err != nil {
			t.Fatalf("AppendFill() error: %v", err)
		}
		if entry.ID == "" {
			t.Error("entry missing id")
		}
	}

	fills, err := j.RecentFills("ETH", 10)
	if err != nil {
		t.Fatalf("RecentFills() error: %v", err)
	}
	if len(fills) != 3 {
		t.Fatalf("len = %d, want 3", len(fills))
	}
	// Newest first.
	if fills[0].OID != 102 || fills[2].OID != 100 {
		t.Errorf("order = %d,%d,%d, want 102,101,100", fills[0].OID, fills[1].OID, fills[2].OID)
	}
	if fills[0].Price != 2492 {
		t.Errorf("fills[0].Price = %v", fills[0].Price)
	}
}

func TestJournal_RecentFillsLimitAndScope(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := j.AppendFill(grid.FillEvent{Coin: "ETH", OID: int64(i), Time: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := j.AppendFill(grid.FillEvent{Coin: "BTC", OID: 999, Time: base}); err != nil {
		t.Fatal(err)
	}

	fills, err := j.RecentFills("ETH", 2)
	if err != nil {
		t.Fatalf("RecentFills() error: %v", err)
	}
	if len(fills) != 2 || fills[0].OID != 4 || fills[1].OID != 3 {
		t.Errorf("limited fills = %+v, want oids 4,3", fills)
	}

	for _, f := range fills {
		if f.Coin != "ETH" {
			t.Errorf("foreign coin %s leaked into ETH scan", f.Coin)
		}
	}

	empty, err := j.RecentFills("SOL", 10)
	if err != nil {
		t.Fatalf("RecentFills() error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("RecentFills(SOL) = %d entries, want 0", len(empty))
	}
}
