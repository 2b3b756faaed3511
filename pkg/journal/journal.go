package journal

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/uhyunpark/hypergrid/pkg/grid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one journalled fill. ID is assigned at append time.
type Entry struct {
	ID string `json:"id"`
	grid.FillEvent
}

// Journal is an append-only record of resolved fills backed by Pebble. It is
// an audit trail for operators and the status API; the engine never reads it
// back to restore trading state.
type Journal struct {
	db *pebble.DB
}

func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Key schema:
//   fill:<coin>:<unix-ms, zero-padded>:<id> → Entry
// Zero-padding keeps keys lexicographically time-ordered within a coin.
func fillKey(coin string, tsMillis int64, id string) []byte {
	return []byte(fmt.Sprintf("fill:%s:%020d:%s", coin, tsMillis, id))
}

func fillPrefix(coin string) []byte {
	return []byte(fmt.Sprintf("fill:%s:", coin))
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// AppendFill writes one fill. Durability is best-effort (NoSync): losing the
// tail of the journal on a crash is acceptable, slowing the trading loop is
// not.
func (j *Journal) AppendFill(ev grid.FillEvent) (Entry, error) {
	entry := Entry{ID: uuid.NewString(), FillEvent: ev}

	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal fill: %w", err)
	}

	key := fillKey(ev.Coin, ev.Time.UnixMilli(), entry.ID)
	if err := j.db.Set(key, data, pebble.NoSync); err != nil {
		return Entry{}, fmt.Errorf("append fill: %w", err)
	}
	return entry, nil
}

// RecentFills returns up to limit fills for a coin, newest first.
func (j *Journal) RecentFills(coin string, limit int) ([]Entry, error) {
	prefix := fillPrefix(coin)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
