package venue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/crypto"
	"github.com/uhyunpark/hypergrid/pkg/grid"
)

func newExchangeServer(t *testing.T, respond func(req signedRequest) string) (*Exchange, *crypto.Signer, func()) {
	t.Helper()
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchange" {
			t.Errorf("path = %s, want /exchange", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req signedRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad exchange request: %v", err)
		}
		if req.Nonce == 0 {
			t.Error("nonce missing")
		}
		if req.Signature.R == "" || req.Signature.S == "" {
			t.Error("signature missing")
		}
		w.Write([]byte(respond(req)))
	}))

	clock := &testClock{}
	exchange := NewExchange(newTestClient(srv.URL), signer, crypto.NewActionSigner(false), clock, zap.NewNop().Sugar())
	return exchange, signer, srv.Close
}

func TestExchange_PlaceResting(t *testing.T) {
	var gotAction []byte
	exchange, _, done := newExchangeServer(t, func(req signedRequest) string {
		gotAction = req.Action
		return `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":321}}]}}}`
	})
	defer done()

	res, err := exchange.Place(context.Background(), grid.OrderSpec{
		Coin: "ETH", IsBuy: true, Size: 0.05, Price: 2490.5, Role: grid.RoleLongEntry,
	})
	if err != nil {
		t.Fatalf("Place() error: %v", err)
	}
	if res.Status != grid.PlaceResting || res.OID != 321 {
		t.Errorf("Place() = %+v, want resting oid 321", res)
	}

	var action orderActionWire
	if err := json.Unmarshal(gotAction, &action); err != nil {
		t.Fatalf("action undecodable: %v", err)
	}
	if action.Type != "order" || len(action.Orders) != 1 {
		t.Fatalf("action = %+v", action)
	}
	o := action.Orders[0]
	if o.Coin != "ETH" || !o.IsBuy || o.Sz != "0.05" || o.LimitPx != "2490.5" {
		t.Errorf("order wire = %+v", o)
	}
	if o.OrderType.Limit == nil || o.OrderType.Limit.Tif != "Gtc" {
		t.Errorf("order type = %+v, want Gtc limit", o.OrderType)
	}
	if o.ReduceOnly {
		t.Error("reduce_only set on an entry")
	}
	if len(o.Cloid) != 34 || o.Cloid[:2] != "0x" {
		t.Errorf("cloid = %q, want 0x-prefixed 128-bit hex", o.Cloid)
	}
}

func TestExchange_PlaceFilled(t *testing.T) {
	exchange, _, done := newExchangeServer(t, func(signedRequest) string {
		return `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"oid":322,"totalSz":"0.05","avgPx":"2490.1"}}]}}}`
	})
	defer done()

	res, err := exchange.Place(context.Background(), grid.OrderSpec{Coin: "ETH", IsBuy: true, Size: 0.05, Price: 2490.5})
	if err != nil {
		t.Fatalf("Place() error: %v", err)
	}
	if res.Status != grid.PlaceFilled || res.OID != 322 {
		t.Fatalf("Place() = %+v, want filled oid 322", res)
	}
	if res.AvgPrice != 2490.1 || res.Size != 0.05 {
		t.Errorf("fill detail = %v @ %v", res.Size, res.AvgPrice)
	}
}

func TestExchange_PlaceRejected(t *testing.T) {
	exchange, _, done := newExchangeServer(t, func(signedRequest) string {
		return `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`
	})
	defer done()

	res, err := exchange.Place(context.Background(), grid.OrderSpec{Coin: "ETH", IsBuy: true, Size: 50, Price: 2490.5})
	if err != nil {
		t.Fatalf("Place() error: %v", err)
	}
	if res.Status != grid.PlaceRejected {
		t.Fatalf("Place() status = %v, want rejected", res.Status)
	}
	if res.Reason != "Insufficient margin" {
		t.Errorf("Reason = %q", res.Reason)
	}
}

func TestExchange_CancelOrders(t *testing.T) {
	var gotAction []byte
	exchange, _, done := newExchangeServer(t, func(req signedRequest) string {
		gotAction = req.Action
		return `{"status":"ok","response":{"type":"cancel","data":{"statuses":[]}}}`
	})
	defer done()

	if err := exchange.CancelOrders(context.Background(), "ETH", []int64{1, 2, 3}); err != nil {
		t.Fatalf("CancelOrders() error: %v", err)
	}

	var action cancelActionWire
	if err := json.Unmarshal(gotAction, &action); err != nil {
		t.Fatalf("action undecodable: %v", err)
	}
	if action.Type != "cancel" || len(action.Cancels) != 3 {
		t.Fatalf("action = %+v", action)
	}
	if action.Cancels[1].Coin != "ETH" || action.Cancels[1].OID != 2 {
		t.Errorf("cancels[1] = %+v", action.Cancels[1])
	}
}

func TestExchange_CancelOrdersEmptyIsNoop(t *testing.T) {
	exchange, _, done := newExchangeServer(t, func(signedRequest) string {
		t.Error("request issued for empty cancel list")
		return `{}`
	})
	defer done()

	if err := exchange.CancelOrders(context.Background(), "ETH", nil); err != nil {
		t.Fatalf("CancelOrders() error: %v", err)
	}
}
