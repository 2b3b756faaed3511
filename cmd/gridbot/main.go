package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergrid/params"
	"github.com/uhyunpark/hypergrid/pkg/api"
	"github.com/uhyunpark/hypergrid/pkg/crypto"
	"github.com/uhyunpark/hypergrid/pkg/grid"
	"github.com/uhyunpark/hypergrid/pkg/journal"
	"github.com/uhyunpark/hypergrid/pkg/util"
	"github.com/uhyunpark/hypergrid/pkg/venue"
)

func main() {
	var (
		envPath  = flag.String("env", "", "path to .env file (default: ./.env)")
		gridPath = flag.String("grid", "", "path to grid JSON config overlay")
	)
	flag.Parse()

	cfg := params.LoadFromEnv(*envPath)
	if err := cfg.LoadGridFile(*gridPath); err != nil {
		log.Fatalf("grid config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (console + optional file)
	zlog, err := buildLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()
	sugar := zlog.Sugar()

	signer, err := crypto.FromPrivateKeyHex(cfg.Venue.PrivateKey)
	if err != nil {
		sugar.Fatalw("signer_init_failed", "err", err)
	}
	sugar.Infow("signer_initialized", "address", signer.Address().Hex(), "mainnet", cfg.Venue.Mainnet)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := util.RealClock{}

	// ---- Venue clients ----
	apiURL, wsURL := venue.TestnetAPIURL, venue.TestnetWSURL
	if cfg.Venue.Mainnet {
		apiURL, wsURL = venue.MainnetAPIURL, venue.MainnetWSURL
	}

	client := venue.NewClient(apiURL, venue.DefaultLimiter(), clock, sugar)
	info := venue.NewInfo(client, signer.Address(), sugar)
	exchange := venue.NewExchange(client, signer, crypto.NewActionSigner(cfg.Venue.Mainnet), clock, sugar)
	trader := venue.NewTrader(exchange, info)

	meta := venue.NewMetaCache(info, sugar)
	if err := meta.Load(ctx, cfg.Grid.Coin); err != nil {
		sugar.Fatalw("meta_load_failed", "err", err)
	}

	// ---- Price feed ----
	feed := grid.NewPriceFeed(cfg.Grid.Coin, info)
	midFeed := venue.NewMidFeed(wsURL, cfg.Grid.Coin, feed, clock, sugar)
	go midFeed.Run(ctx)

	// ---- Fill journal ----
	jnl, err := journal.Open(cfg.Server.JournalPath)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", cfg.Server.JournalPath, "err", err)
	}
	defer jnl.Close()

	// ---- Grid core ----
	planner, err := grid.NewPlanner(grid.PlannerConfig{
		Coin:         cfg.Grid.Coin,
		Levels:       cfg.Grid.Levels,
		MinPrice:     cfg.Grid.GridMin,
		MaxPrice:     cfg.Grid.GridMax,
		Ratio:        cfg.Grid.Ratio,
		Centered:     cfg.Grid.Centered,
		TickSize:     meta.TickSize(cfg.Grid.Coin),
		TakeProfit:   cfg.Grid.TakeProfit,
		SizePerLevel: cfg.Grid.SizePerLevel,
		Long:         cfg.Grid.Long,
		Short:        cfg.Grid.Short,
	})
	if err != nil {
		sugar.Fatalw("planner_init_failed", "err", err)
	}

	ledger := grid.NewLedger()
	retries := grid.NewRetryQueue()
	stats := grid.NewStats(prometheus.DefaultRegisterer)

	risk := grid.NewRiskGate(grid.RiskConfig{
		MaxPositionFactor:  cfg.Risk.MaxPositionFactor,
		MinBalanceFactor:   cfg.Risk.MinBalanceFactor,
		MinOrderRatio:      cfg.Risk.MinOrderRatio,
		MaxTransportErrors: cfg.Risk.MaxTransportErrors,
		ErrorWindow:        cfg.Risk.ErrorWindow,
		VolWindow:          cfg.Risk.VolWindow,
		VolThreshold:       cfg.Risk.VolThreshold,
	}, info, clock, sugar)

	var apiServer *api.Server

	rec := grid.NewReconciler(grid.ReconcilerConfig{
		Coin:          cfg.Grid.Coin,
		CheckInterval: cfg.Engine.CheckInterval,
		OnFill: func(ev grid.FillEvent) {
			entry, err := jnl.AppendFill(ev)
			if err != nil {
				sugar.Warnw("journal_append_failed", "err", err)
				return
			}
			if apiServer != nil {
				apiServer.PublishFill(entry)
			}
		},
		OnTransportError: risk.ObserveTransportError,
	}, trader, ledger, retries, planner, feed, stats, clock, sugar)

	engine := grid.NewEngine(grid.EngineConfig{
		Coin:              cfg.Grid.Coin,
		TickInterval:      cfg.Engine.TickInterval,
		ReportInterval:    cfg.Engine.ReportInterval,
		RebalanceEnabled:  cfg.Engine.RebalanceEnabled,
		RebalanceInterval: cfg.Engine.RebalanceInterval,
	}, trader, planner, ledger, retries, rec, risk, feed, stats,
		cfg.Grid.SizePerLevel, cfg.Grid.Levels, clock, sugar)

	// ---- API Server ----
	apiServer = api.NewServer(engine, jnl, cfg.Grid.Coin, sugar)
	go func() {
		if err := apiServer.Start(cfg.Server.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("gridbot_starting",
		"coin", cfg.Grid.Coin,
		"levels", cfg.Grid.Levels,
		"long", cfg.Grid.Long,
		"take_profit", cfg.Grid.TakeProfit,
		"size_per_level", cfg.Grid.SizePerLevel,
		"api_addr", cfg.Server.APIAddr)

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Fatalw("engine_failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
	sugar.Info("gridbot stopped")
}

func buildLogger(cfg params.Log) (*zap.Logger, error) {
	if cfg.File != "" {
		return util.NewLoggerWithFile(cfg.File, cfg.Level)
	}
	return util.NewLogger(cfg.Level)
}
