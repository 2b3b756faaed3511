package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/pkg/grid"
	"github.com/uhyunpark/hypergrid/pkg/journal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultFillLimit = 100

// Server exposes the engine's status, fill history, metrics and a WebSocket
// fill stream. Read-only: trading is driven solely by the engine loop.
type Server struct {
	engine  *grid.Engine
	journal *journal.Journal
	coin    string
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
	httpSrv *http.Server
}

func NewServer(engine *grid.Engine, jnl *journal.Journal, coin string, logger *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  engine,
		journal: jnl,
		coin:    coin,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		log:     logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/fills", s.handleGetFills).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: c.Handler(s.router),
	}

	s.log.Infow("api_server_starting", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// PublishFill pushes a journalled fill to subscribed WebSocket clients.
func (s *Server) PublishFill(entry journal.Entry) {
	s.hub.BroadcastToChannel("fills", FillUpdate{
		Type: "fill",
		Fill: entry.FillEvent,
		ID:   entry.ID,
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()
	uptime := 0.0
	if !status.StartedAt.IsZero() {
		uptime = time.Since(status.StartedAt).Seconds()
	}
	respondJSON(w, StatusResponse{EngineStatus: status, UptimeSeconds: uptime})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.engine.Status().Orders)
}

func (s *Server) handleGetFills(w http.ResponseWriter, r *http.Request) {
	limit := defaultFillLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = n
	}

	fills, err := s.journal.RecentFills(s.coin, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "fill lookup failed", err.Error())
		return
	}
	if fills == nil {
		fills = []journal.Entry{}
	}
	respondJSON(w, fills)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
