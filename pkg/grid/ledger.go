package grid

import (
	"sort"
	"time"
)

// OrderRecord is one resting order the engine is tracking. Records exist only
// while the order is believed live on the venue; nothing is persisted.
type OrderRecord struct {
	OID        int64
	Coin       string
	IsBuy      bool
	Size       float64
	Price      float64
	ReduceOnly bool
	Level      int
	Role       Role
	PlacedAt   time.Time

	// PairPx is the fill price of the paired entry, set on exit records so a
	// completed round trip can be priced without re-querying the venue.
	PairPx float64
}

type slotKey struct {
	level int
	role  Role
}

// Ledger holds at most one record per (level, role) slot. It is mutated only
// from the engine's tick loop, so no locking is needed.
type Ledger struct {
	slots map[slotKey]OrderRecord
	byOID map[int64]slotKey
}

func NewLedger() *Ledger {
	return &Ledger{
		slots: make(map[slotKey]OrderRecord),
		byOID: make(map[int64]slotKey),
	}
}

// Track records a resting order. A record already occupying the same
// (level, role) slot is displaced; the displaced record is returned so the
// caller can log it.
func (l *Ledger) Track(rec OrderRecord) (displaced OrderRecord, hadPrev bool) {
	key := slotKey{level: rec.Level, role: rec.Role}
	if prev, ok := l.slots[key]; ok {
		delete(l.byOID, prev.OID)
		displaced, hadPrev = prev, true
	}
	l.slots[key] = rec
	l.byOID[rec.OID] = key
	return displaced, hadPrev
}

// Remove drops the record for oid and returns it.
func (l *Ledger) Remove(oid int64) (OrderRecord, bool) {
	key, ok := l.byOID[oid]
	if !ok {
		return OrderRecord{}, false
	}
	rec := l.slots[key]
	delete(l.slots, key)
	delete(l.byOID, oid)
	return rec, true
}

// Get looks up the record for oid without removing it.
func (l *Ledger) Get(oid int64) (OrderRecord, bool) {
	key, ok := l.byOID[oid]
	if !ok {
		return OrderRecord{}, false
	}
	return l.slots[key], true
}

// OIDs returns every tracked order id.
func (l *Ledger) OIDs() []int64 {
	out := make([]int64, 0, len(l.byOID))
	for oid := range l.byOID {
		out = append(out, oid)
	}
	return out
}

// Records returns all tracked records ordered by level, exits after entries
// within a level.
func (l *Ledger) Records() []OrderRecord {
	out := make([]OrderRecord, 0, len(l.slots))
	for _, rec := range l.slots {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return !out[i].Role.IsExit() && out[j].Role.IsExit()
	})
	return out
}

func (l *Ledger) Len() int { return len(l.slots) }

// Clear wipes every record. Used after a confirmed rebalance cancellation.
func (l *Ledger) Clear() {
	l.slots = make(map[slotKey]OrderRecord)
	l.byOID = make(map[int64]slotKey)
}
