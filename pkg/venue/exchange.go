package venue

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/crypto"
	"github.com/uhyunpark/hypergrid/pkg/grid"
	"github.com/uhyunpark/hypergrid/pkg/util"
)

// Exchange wraps the venue's signed /exchange endpoint: placements and
// cancellations. Every action is serialized once, the signature is computed
// over exactly those bytes, and both travel in the same request.
type Exchange struct {
	client  *Client
	signer  *crypto.Signer
	actions *crypto.ActionSigner
	clock   util.Clock
	log     *zap.SugaredLogger
}

func NewExchange(client *Client, signer *crypto.Signer, actions *crypto.ActionSigner, clock util.Clock, logger *zap.SugaredLogger) *Exchange {
	return &Exchange{
		client:  client,
		signer:  signer,
		actions: actions,
		clock:   clock,
		log:     logger,
	}
}

type signedRequest struct {
	Action    jsoniter.RawMessage `json:"action"`
	Nonce     uint64              `json:"nonce"`
	Signature crypto.RSV          `json:"signature"`
}

func (x *Exchange) postAction(ctx context.Context, action interface{}) ([]byte, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	nonce := uint64(x.clock.Now().UnixMilli())
	sig, err := x.actions.SignAction(x.signer, actionBytes, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("sign action: %w", err)
	}

	return x.client.post(ctx, "/exchange", signedRequest{
		Action:    actionBytes,
		Nonce:     nonce,
		Signature: sig,
	})
}

// Place submits one limit order and decodes the venue's verdict into the
// engine's placement result. Each placement carries a fresh client order id
// so venue-side logs can be correlated with ours.
func (x *Exchange) Place(ctx context.Context, spec grid.OrderSpec) (grid.PlaceResult, error) {
	cloid := newCloid()
	action := orderActionWire{
		Type: "order",
		Orders: []orderWire{{
			Coin:       spec.Coin,
			IsBuy:      spec.IsBuy,
			Sz:         formatFloat(spec.Size),
			LimitPx:    formatFloat(spec.Price),
			OrderType:  orderTypeWire{Limit: &limitTypeWire{Tif: "Gtc"}},
			ReduceOnly: spec.ReduceOnly,
			Cloid:      cloid,
		}},
		Grouping: "na",
	}
	x.log.Debugw("order_submitted",
		"coin", spec.Coin, "is_buy", spec.IsBuy, "px", spec.Price, "sz", spec.Size, "cloid", cloid)

	body, err := x.postAction(ctx, action)
	if err != nil {
		return grid.PlaceResult{}, err
	}

	var resp exchangeResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return grid.PlaceResult{}, fmt.Errorf("decode order response: %w", err)
	}
	if resp.Status != "ok" {
		return grid.PlaceResult{Status: grid.PlaceRejected, Reason: resp.Status}, nil
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return grid.PlaceResult{}, fmt.Errorf("order response carried no statuses")
	}

	status := resp.Response.Data.Statuses[0]
	switch {
	case status.Resting != nil:
		return grid.PlaceResult{Status: grid.PlaceResting, OID: status.Resting.OID}, nil
	case status.Filled != nil:
		avgPx, _ := strconv.ParseFloat(status.Filled.AvgPx, 64)
		totalSz, _ := strconv.ParseFloat(status.Filled.TotalSz, 64)
		return grid.PlaceResult{
			Status:   grid.PlaceFilled,
			OID:      status.Filled.OID,
			AvgPrice: avgPx,
			Size:     totalSz,
		}, nil
	case status.Error != "":
		return grid.PlaceResult{Status: grid.PlaceRejected, Reason: status.Error}, nil
	}
	return grid.PlaceResult{}, fmt.Errorf("order response status unrecognized")
}

// CancelOrders bulk-cancels the given order ids for one coin.
func (x *Exchange) CancelOrders(ctx context.Context, coin string, oids []int64) error {
	if len(oids) == 0 {
		return nil
	}

	cancels := make([]cancelWire, 0, len(oids))
	for _, oid := range oids {
		cancels = append(cancels, cancelWire{Coin: coin, OID: oid})
	}

	body, err := x.postAction(ctx, cancelActionWire{Type: "cancel", Cancels: cancels})
	if err != nil {
		return err
	}

	var resp exchangeResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode cancel response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("cancel rejected: %s", resp.Status)
	}
	x.log.Debugw("orders_cancelled", "coin", coin, "count", len(oids))
	return nil
}

// formatFloat renders sizes and prices the way the venue expects: shortest
// decimal form, no exponent.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// newCloid returns a 128-bit client order id in the venue's 0x-hex format.
func newCloid() string {
	u := uuid.New()
	return "0x" + hex.EncodeToString(u[:])
}

// Trader bundles the signed and read-only endpoints into the engine's full
// order-client surface.
type Trader struct {
	*Exchange
	*Info
}

func NewTrader(exchange *Exchange, info *Info) *Trader {
	return &Trader{Exchange: exchange, Info: info}
}
