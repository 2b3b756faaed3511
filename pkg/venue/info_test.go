package venue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func newInfoServer(t *testing.T, responses map[string]string) (*Info, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req infoRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad info request: %v", err)
		}
		resp, ok := responses[req.Type]
		if !ok {
			t.Fatalf("unexpected info type %q", req.Type)
		}
		w.Write([]byte(resp))
	}))
	info := NewInfo(newTestClient(srv.URL), common.HexToAddress("0x1111111111111111111111111111111111111111"), zap.NewNop().Sugar())
	return info, srv.Close
}

func TestInfo_OpenOrders(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"openOrders": `[
			{"coin":"ETH","side":"B","limitPx":"2490.5","sz":"0.05","oid":77,"timestamp":1717243200000},
			{"coin":"ETH","side":"A","limitPx":"2510.0","sz":"0.05","oid":78,"timestamp":1717243201000}
		]`,
	})
	defer done()

	orders, err := info.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("OpenOrders() error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len = %d, want 2", len(orders))
	}
	if orders[0].OID != 77 || !orders[0].IsBuy || orders[0].Price != 2490.5 {
		t.Errorf("orders[0] = %+v", orders[0])
	}
	if orders[1].IsBuy {
		t.Error("side A decoded as buy")
	}
}

func TestInfo_QueryOrderFilled(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"orderStatus": `{
			"status":"order",
			"order":{
				"status":"filled",
				"statusTimestamp":1717243210000,
				"order":{"coin":"ETH","limitPx":"2490.5","avgPx":"2490.2","sz":"0","origSz":"0.05","oid":77}
			}
		}`,
	})
	defer done()

	detail, err := info.QueryOrder(context.Background(), 77)
	if err != nil {
		t.Fatalf("QueryOrder() error: %v", err)
	}
	if !detail.Found {
		t.Fatal("detail.Found = false")
	}
	if detail.Status != "filled" {
		t.Errorf("Status = %q, want filled", detail.Status)
	}
	if detail.AvgPrice != 2490.2 {
		t.Errorf("AvgPrice = %v, want 2490.2", detail.AvgPrice)
	}
	if detail.LimitPx != 2490.5 {
		t.Errorf("LimitPx = %v, want 2490.5", detail.LimitPx)
	}
	if detail.Raw == nil {
		t.Error("Raw body not retained")
	}
}

func TestInfo_QueryOrderUnknown(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"orderStatus": `{"status":"unknownOid"}`,
	})
	defer done()

	detail, err := info.QueryOrder(context.Background(), 99)
	if err != nil {
		t.Fatalf("QueryOrder() error: %v", err)
	}
	if detail.Found {
		t.Error("detail.Found = true for unknownOid")
	}
}

func TestInfo_TopOfBook(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"l2Book": `{
			"coin":"ETH",
			"levels":[
				[{"px":"2499.5","sz":"10","n":3},{"px":"2499.0","sz":"4","n":1}],
				[{"px":"2500.5","sz":"8","n":2}]
			],
			"time":1717243200000
		}`,
	})
	defer done()

	bid, ask, err := info.TopOfBook(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("TopOfBook() error: %v", err)
	}
	if bid != 2499.5 || ask != 2500.5 {
		t.Errorf("top of book = %v/%v, want 2499.5/2500.5", bid, ask)
	}
}

func TestInfo_TopOfBookEmpty(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"l2Book": `{"coin":"ETH","levels":[[],[]],"time":0}`,
	})
	defer done()

	if _, _, err := info.TopOfBook(context.Background(), "ETH"); err == nil {
		t.Error("TopOfBook() returned nil error for empty book")
	}
}

func TestInfo_AccountState(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"clearinghouseState": `{
			"marginSummary":{"accountValue":"12345.67","totalRawUsd":"12000"},
			"assetPositions":[
				{"position":{"coin":"ETH","szi":"-0.25","entryPx":"2500.0","unrealizedPnl":"12.5"}}
			]
		}`,
	})
	defer done()

	state, err := info.AccountState(context.Background())
	if err != nil {
		t.Fatalf("AccountState() error: %v", err)
	}
	if state.Balance != 12345.67 {
		t.Errorf("Balance = %v", state.Balance)
	}
	if len(state.Positions) != 1 || state.Positions[0].Size != -0.25 {
		t.Errorf("Positions = %+v", state.Positions)
	}
}

func TestMetaCache_TickSizes(t *testing.T) {
	info, done := newInfoServer(t, map[string]string{
		"meta": `{"universe":[{"name":"BTC","szDecimals":5},{"name":"ETH","szDecimals":4},{"name":"OBSCURE","szDecimals":1}]}`,
	})
	defer done()

	meta := NewMetaCache(info, zap.NewNop().Sugar())
	if err := meta.Load(context.Background(), "ETH"); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		coin string
		want float64
	}{
		{"BTC", 0.1},
		{"ETH", 0.01},
		{"SOL", 0.01},
		{"HYPE", 0.001},
		{"OBSCURE", 1.0}, // documented fallback
	}
	for _, tt := range tests {
		if got := meta.TickSize(tt.coin); got != tt.want {
			t.Errorf("TickSize(%s) = %v, want %v", tt.coin, got, tt.want)
		}
	}

	if d, ok := meta.SzDecimals("ETH"); !ok || d != 4 {
		t.Errorf("SzDecimals(ETH) = %d, %v", d, ok)
	}

	if err := meta.Load(context.Background(), "DOGE"); err == nil {
		t.Error("Load() accepted a coin outside the universe")
	}
}
