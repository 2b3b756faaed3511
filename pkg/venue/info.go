package venue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/grid"
)

// Info wraps the venue's read-only /info endpoint. It serves the engine's
// open-order diffing, fill queries, book snapshots and account reads.
type Info struct {
	client *Client
	user   common.Address
	log    *zap.SugaredLogger
}

func NewInfo(client *Client, user common.Address, logger *zap.SugaredLogger) *Info {
	return &Info{client: client, user: user, log: logger}
}

// OpenOrders lists every resting order for the account.
func (i *Info) OpenOrders(ctx context.Context) ([]grid.OpenOrder, error) {
	body, err := i.client.post(ctx, "/info", infoRequest{Type: "openOrders", User: i.user.Hex()})
	if err != nil {
		return nil, err
	}

	var wire []openOrderWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	out := make([]grid.OpenOrder, 0, len(wire))
	for _, o := range wire {
		px, _ := strconv.ParseFloat(o.LimitPx, 64)
		sz, _ := strconv.ParseFloat(o.Sz, 64)
		out = append(out, grid.OpenOrder{
			Coin:    o.Coin,
			OID:     o.OID,
			IsBuy:   o.Side == "B",
			Price:   px,
			Size:    sz,
			Created: o.Timestamp,
		})
	}
	return out, nil
}

// QueryOrder fetches a single order's detail by id. Flat fields are filled
// when the response carries them at the expected path; the full decoded body
// travels along in Raw for fallback-chain resolution.
func (i *Info) QueryOrder(ctx context.Context, oid int64) (grid.OrderDetail, error) {
	body, err := i.client.post(ctx, "/info", infoRequest{Type: "orderStatus", User: i.user.Hex(), OID: oid})
	if err != nil {
		return grid.OrderDetail{}, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return grid.OrderDetail{}, fmt.Errorf("decode order status: %w", err)
	}

	detail := grid.OrderDetail{Raw: raw}
	if status, _ := raw["status"].(string); status != "order" {
		// unknownOid and friends
		return detail, nil
	}
	detail.Found = true

	if outer, ok := raw["order"].(map[string]interface{}); ok {
		if s, ok := outer["status"].(string); ok {
			detail.Status = s
		}
		if inner, ok := outer["order"].(map[string]interface{}); ok {
			detail.AvgPrice = floatField(inner, "avgPx")
			detail.LimitPx = floatField(inner, "limitPx")
		}
	}
	return detail, nil
}

// TopOfBook returns the best bid and ask from an L2 snapshot.
func (i *Info) TopOfBook(ctx context.Context, coin string) (float64, float64, error) {
	body, err := i.client.post(ctx, "/info", infoRequest{Type: "l2Book", Coin: coin})
	if err != nil {
		return 0, 0, err
	}

	var book l2BookWire
	if err := json.Unmarshal(body, &book); err != nil {
		return 0, 0, fmt.Errorf("decode l2 book: %w", err)
	}
	if len(book.Levels) < 2 || len(book.Levels[0]) == 0 || len(book.Levels[1]) == 0 {
		return 0, 0, fmt.Errorf("empty book for %s", coin)
	}

	bid, err := strconv.ParseFloat(book.Levels[0][0].Px, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := strconv.ParseFloat(book.Levels[1][0].Px, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse ask: %w", err)
	}
	return bid, ask, nil
}

// Meta fetches the tradable universe.
func (i *Info) Meta(ctx context.Context) (*UniverseMeta, error) {
	body, err := i.client.post(ctx, "/info", infoRequest{Type: "meta"})
	if err != nil {
		return nil, err
	}
	var meta UniverseMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &meta, nil
}

// AccountState reads the clearinghouse snapshot the risk gate consumes.
func (i *Info) AccountState(ctx context.Context) (grid.AccountState, error) {
	body, err := i.client.post(ctx, "/info", infoRequest{Type: "clearinghouseState", User: i.user.Hex()})
	if err != nil {
		return grid.AccountState{}, err
	}

	var state clearinghouseStateWire
	if err := json.Unmarshal(body, &state); err != nil {
		return grid.AccountState{}, fmt.Errorf("decode clearinghouse state: %w", err)
	}

	balance, _ := strconv.ParseFloat(state.MarginSummary.AccountValue, 64)
	out := grid.AccountState{Balance: balance}
	for _, ap := range state.AssetPositions {
		size, _ := strconv.ParseFloat(ap.Position.Szi, 64)
		entry, _ := strconv.ParseFloat(ap.Position.EntryPx, 64)
		upnl, _ := strconv.ParseFloat(ap.Position.UnrealizedPnl, 64)
		out.Positions = append(out.Positions, grid.Position{
			Coin:       ap.Position.Coin,
			Size:       size,
			EntryPx:    entry,
			Unrealized: upnl,
		})
	}
	return out, nil
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		px, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return px
	}
	return 0
}
