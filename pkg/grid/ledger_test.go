package grid

import "testing"

func TestLedger_TrackAndRemove(t *testing.T) {
	l := NewLedger()

	l.Track(OrderRecord{OID: 1, Level: 0, Role: RoleLongEntry, Price: 90})
	l.Track(OrderRecord{OID: 2, Level: 1, Role: RoleLongEntry, Price: 95})

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	rec, ok := l.Get(1)
	if !ok || rec.Price != 90 {
		t.Fatalf("Get(1) = %+v, %v", rec, ok)
	}

	removed, ok := l.Remove(1)
	if !ok || removed.OID != 1 {
		t.Fatalf("Remove(1) = %+v, %v", removed, ok)
	}
	if _, ok := l.Get(1); ok {
		t.Error("oid 1 still resolvable after Remove")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d after remove, want 1", l.Len())
	}

	if _, ok := l.Remove(999); ok {
		t.Error("Remove(999) reported success for unknown oid")
	}
}

func TestLedger_SlotDisplacement(t *testing.T) {
	l := NewLedger()

	l.Track(OrderRecord{OID: 1, Level: 2, Role: RoleLongEntry, Price: 95})
	displaced, had := l.Track(OrderRecord{OID: 2, Level: 2, Role: RoleLongEntry, Price: 95.5})

	if !had || displaced.OID != 1 {
		t.Fatalf("displaced = %+v, had = %v, want oid 1", displaced, had)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (one slot)", l.Len())
	}
	if _, ok := l.Get(1); ok {
		t.Error("displaced oid 1 still resolvable")
	}
	if rec, ok := l.Get(2); !ok || rec.Price != 95.5 {
		t.Errorf("Get(2) = %+v, %v", rec, ok)
	}

	// Same level, different role occupies its own slot.
	if _, had := l.Track(OrderRecord{OID: 3, Level: 2, Role: RoleLongExit, Price: 96}); had {
		t.Error("exit slot displaced the entry slot")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLedger_RecordsOrdering(t *testing.T) {
	l := NewLedger()
	l.Track(OrderRecord{OID: 10, Level: 3, Role: RoleLongEntry})
	l.Track(OrderRecord{OID: 11, Level: 1, Role: RoleLongExit})
	l.Track(OrderRecord{OID: 12, Level: 1, Role: RoleLongEntry})

	recs := l.Records()
	if len(recs) != 3 {
		t.Fatalf("Records() len = %d, want 3", len(recs))
	}
	if recs[0].OID != 12 || recs[1].OID != 11 || recs[2].OID != 10 {
		t.Errorf("Records() order = [%d %d %d], want [12 11 10]", recs[0].OID, recs[1].OID, recs[2].OID)
	}
}

func TestLedger_Clear(t *testing.T) {
	l := NewLedger()
	l.Track(OrderRecord{OID: 1, Level: 0, Role: RoleLongEntry})
	l.Clear()

	if l.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", l.Len())
	}
	if oids := l.OIDs(); len(oids) != 0 {
		t.Errorf("OIDs() = %v after Clear, want empty", oids)
	}
}
