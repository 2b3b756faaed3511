package venue

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Info endpoint request bodies. The venue multiplexes every query through
// POST /info on a "type" discriminator.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
	OID  int64  `json:"oid,omitempty"`
}

type openOrderWire struct {
	Coin      string `json:"coin"`
	Side      string `json:"side"` // "B" bid, "A" ask
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	OID       int64  `json:"oid"`
	Timestamp int64  `json:"timestamp"`
}

type bookLevelWire struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type l2BookWire struct {
	Coin   string            `json:"coin"`
	Levels [][]bookLevelWire `json:"levels"` // [bids, asks], best first
	Time   int64             `json:"time"`
}

// AssetMeta describes one tradable asset from the venue's universe.
type AssetMeta struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

// UniverseMeta is the venue's full asset universe.
type UniverseMeta struct {
	Universe []AssetMeta `json:"universe"`
}

type marginSummaryWire struct {
	AccountValue string `json:"accountValue"`
	TotalRawUsd  string `json:"totalRawUsd"`
}

type positionWire struct {
	Coin          string `json:"coin"`
	Szi           string `json:"szi"`
	EntryPx       string `json:"entryPx"`
	UnrealizedPnl string `json:"unrealizedPnl"`
}

type assetPositionWire struct {
	Position positionWire `json:"position"`
}

type clearinghouseStateWire struct {
	MarginSummary  marginSummaryWire   `json:"marginSummary"`
	AssetPositions []assetPositionWire `json:"assetPositions"`
}

// Exchange endpoint wire types. Actions are serialized once, signed over the
// serialized bytes, and posted with the signature alongside.
type orderTypeWire struct {
	Limit *limitTypeWire `json:"limit,omitempty"`
}

type limitTypeWire struct {
	Tif string `json:"tif"`
}

type orderWire struct {
	Coin       string        `json:"coin"`
	IsBuy      bool          `json:"is_buy"`
	Sz         string        `json:"sz"`
	LimitPx    string        `json:"limit_px"`
	OrderType  orderTypeWire `json:"order_type"`
	ReduceOnly bool          `json:"reduce_only"`
	Cloid      string        `json:"cloid,omitempty"`
}

type orderActionWire struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type cancelWire struct {
	Coin string `json:"coin"`
	OID  int64  `json:"oid"`
}

type cancelActionWire struct {
	Type    string       `json:"type"`
	Cancels []cancelWire `json:"cancels"`
}

type exchangeStatusWire struct {
	Resting *struct {
		OID int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		OID     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

type exchangeResponseWire struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []exchangeStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}
