package api

import "github.com/uhyunpark/hypergrid/pkg/grid"

// StatusResponse is the engine snapshot served at /api/v1/status.
type StatusResponse struct {
	grid.EngineStatus
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// FillUpdate is pushed to WebSocket clients subscribed to the fills channel.
type FillUpdate struct {
	Type string         `json:"type"`
	Fill grid.FillEvent `json:"fill"`
	ID   string         `json:"id"`
}

// WSSubscribeRequest is the client-to-server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
