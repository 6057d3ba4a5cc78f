// Package main runs the CPMM pool sniper: pool discovery over the log
// stream, safety validation, bundle-relayed entry and the exit state
// machine, one position at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/discovery"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/executor"
	"cpmm-sniper/internal/observability"
	"cpmm-sniper/internal/oracle"
	"cpmm-sniper/internal/position"
	"cpmm-sniper/internal/relay"
	"cpmm-sniper/internal/safety"
	"cpmm-sniper/internal/sniper"
	"cpmm-sniper/internal/solana"
	"cpmm-sniper/internal/storage"
	chstore "cpmm-sniper/internal/storage/clickhouse"
	"cpmm-sniper/internal/storage/memory"
	"cpmm-sniper/internal/storage/migrations"
	pgstore "cpmm-sniper/internal/storage/postgres"
)

func main() {
	// Load .env file if it exists; real env vars win over file entries.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("WS_ENDPOINT"), "Solana WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", os.Getenv("USE_MEMORY") == "true", "Use in-memory storage instead of PostgreSQL and ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides METRICS_ADDR)")
	flag.Parse()

	logger := log.New(os.Stdout, "[main] ", log.LstdFlags)

	cfg, err := config.Load(nil)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	cfg.RPCEndpoint = *rpcEndpoint
	cfg.WSEndpoint = *wsEndpoint
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	if cfg.RPCEndpoint == "" {
		logger.Fatal("--rpc-endpoint or RPC_ENDPOINT is required")
	}
	if cfg.WSEndpoint == "" {
		logger.Fatal("--ws-endpoint or WS_ENDPOINT is required")
	}
	if cfg.PrivateKey == "" {
		logger.Fatal("PRIVATE_KEY is required")
	}
	if !cfg.UseMemory && (cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	keypair, err := solana.NewKeypairFromBase58(cfg.PrivateKey)
	if err != nil {
		logger.Fatalf("Invalid PRIVATE_KEY: %v", err)
	}
	logger.Printf("Trading wallet: %s", keypair.PublicKey())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seenStore, eventStore, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithLatencyObserver(metrics.RPCCallLatency))
	prices := oracle.NewPoolPriceSource(rpc)
	bundleRelay := relay.New(cfg.RelayEndpoints, relay.WithLatencyObserver(metrics.RelayLatency))
	exec := executor.New(rpc, rpc, bundleRelay, keypair, cfg)
	validator := safety.NewValidator(rpc, cfg)
	recorder := sniper.NewEventRecorder(eventStore, metrics)

	clock := position.RealClock{}
	monitor := position.NewMonitor(prices, exec, recorder, clock, metrics, cfg)
	bot := sniper.New(validator, prices, exec, monitor, recorder, clock, metrics, cfg)

	stream, err := solana.DialLogs(ctx, cfg.WSEndpoint, solana.LogsFilter{
		Mentions: []string{cpmm.ProgramID},
	}, nil)
	if err != nil {
		logger.Fatalf("Failed to open log stream: %v", err)
	}
	defer stream.Close()

	detector := discovery.NewDetector(stream, rpc, rpc, seenStore, metrics,
		func(ctx context.Context, c *domain.PoolCandidate) {
			bot.HandleCandidate(ctx, c)
		})

	go startHTTPServer(cfg.MetricsAddr, logger)

	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		stream.Close()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = detector.Run(ctx)
	done <- err

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Detector error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires the dedup store and the trade-event sink, either
// in-memory or against PostgreSQL and ClickHouse with migrations
// applied.
func createStores(ctx context.Context, cfg *config.Config) (storage.SeenTokenStore, storage.TradeEventStore, func(), error) {
	if cfg.UseMemory {
		return memory.NewSeenTokenStore(), memory.NewTradeEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewSeenTokenStore(pool), chstore.NewTradeEventStore(chConn), cleanup, nil
}

func startHTTPServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}
