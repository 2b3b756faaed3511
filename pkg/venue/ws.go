package venue

import (
	"context"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/grid"
	"github.com/uhyunpark/hypergrid/pkg/util"
)

const (
	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL = "wss://api.hyperliquid-testnet.xyz/ws"

	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReconnectGap = 5 * time.Second
)

type wsSubscription struct {
	Type string `json:"type"`
}

type wsRequest struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

type wsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// MidFeed keeps a websocket subscription to the venue's mid-price stream and
// pushes updates for one coin into the engine's price cache. It reconnects
// forever until ctx is cancelled.
type MidFeed struct {
	url   string
	coin  string
	feed  *grid.PriceFeed
	clock util.Clock
	log   *zap.SugaredLogger
}

func NewMidFeed(url, coin string, feed *grid.PriceFeed, clock util.Clock, logger *zap.SugaredLogger) *MidFeed {
	return &MidFeed{url: url, coin: coin, feed: feed, clock: clock, log: logger}
}

// Run blocks until ctx is cancelled. Intended to be started on its own
// goroutine; its only effect is PriceFeed.Update calls.
func (f *MidFeed) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.runOnce(ctx); err != nil && ctx.Err() == nil {
			f.log.Warnw("ws_reconnecting", "err", err)
		}
		if err := util.Sleep(ctx, f.clock, wsReconnectGap); err != nil {
			return
		}
	}
}

func (f *MidFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := wsRequest{Method: "subscribe", Subscription: &wsSubscription{Type: "allMids"}}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	f.log.Infow("ws_subscribed", "url", f.url, "channel", "allMids")

	// Keepalive and ctx teardown. Closing the conn unblocks the read loop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(wsRequest{Method: "ping"}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.log.Debugw("ws_message_unparsed", "err", err)
			continue
		}
		if msg.Channel != "allMids" {
			continue
		}
		if midStr, ok := msg.Data.Mids[f.coin]; ok {
			if mid, err := strconv.ParseFloat(midStr, 64); err == nil {
				f.feed.Update(mid)
			}
		}
	}
}
