package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"forexcopilot/internal/api"
	"forexcopilot/internal/auth"
	"forexcopilot/internal/config"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/httpmw"
	"forexcopilot/internal/kvstore"
	"forexcopilot/internal/llm"
	"forexcopilot/internal/logger"
	"forexcopilot/internal/ops"
	"forexcopilot/internal/queue"
	"forexcopilot/internal/tasks"
	"forexcopilot/internal/ws"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "forexcopilot",
		Usage:   "Real-time task orchestration and fan-out backend for an AI-assisted trading copilot",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the forex copilot server",
				Flags:  serverFlags(),
				Action: runServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "0.0.0.0", EnvVars: []string{"FOREX_HOST"}},
		&cli.IntFlag{Name: "port", Value: 8080, EnvVars: []string{"FOREX_PORT"}},
	}
}

func runServer(c *cli.Context) error {
	cfg := config.FromEnv()
	if c.String("host") != "" {
		cfg.Host = c.String("host")
	}
	if c.Int("port") != 0 {
		cfg.Port = c.Int("port")
	}

	zlog := logger.NewLogger(cfg.Env)
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		zlog.Info("shutdown signal received")
		cancel()
	}()

	kv := kvstore.New(cfg.KVStore, zlog)

	forexSvc := forex.New(forex.Config{
		UpstreamURL: cfg.ForexUpstreamURL,
	}, zlog)

	q := queue.New(kv, zlog, cfg.QueueBackend)

	manager := ws.New(ws.Config{
		HeartbeatInterval: cfg.WSHeartbeatInterval,
		HeartbeatTimeout:  cfg.WSHeartbeatTimeout,
	}, kv, zlog)

	store := tasks.NewMemoryStore()
	registry := tasks.NewRegistry(store, manager, forexSvc, llm.NewStub())
	registry.RegisterAll(q)

	if cfg.QueueEnabled {
		q.Start(ctx, cfg.QueueWorkers, cfg.QueueMaxSize)
	}

	collector := ops.NewCollector(ops.Config{WSStaleSeconds: cfg.WSStaleSeconds}, q, manager, forexSvc)
	webhook := ops.NewWebhook(cfg.OpsWebhook, zlog)
	latch := ops.NewLatch(webhook)

	streamer := api.NewStreamer(ctx, cfg.ForexStreamInterval, manager, forexSvc, zlog)
	if cfg.ForexStreamEnabled {
		streamer.Start(ctx)
	}

	var verifier httpmw.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret)
	} else {
		verifier = auth.NewJWTVerifier("dev-insecure-secret")
	}

	deps := api.Dependencies{
		Logger:     zlog,
		Store:      store,
		Queue:      q,
		Registry:   registry,
		Manager:    manager,
		Forex:      forexSvc,
		Collector:  collector,
		Thresholds: cfg.OpsThresholds,
		Latch:      latch,
		APIPrefix:  cfg.APIPrefix,
		Streamer:   streamer,
	}

	router := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           cfg.CORSMaxAgeSeconds,
	}
	if cfg.CORSAllowAll {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	httpmw.Apply(router, httpmw.ChainConfig{
		APIPrefix: cfg.APIPrefix,
		Security: httpmw.SecurityConfig{
			APIPrefix:  cfg.APIPrefix,
			EnableCSP:  cfg.EnableCSP,
			EnableHSTS: cfg.EnableHSTS,
		},
		MaxBodyBytes: cfg.MaxRequestBodyByte,
		AuthRateLimit: httpmw.RateLimitConfig{
			Enabled:       cfg.AuthRateLimitEnabled,
			Max:           cfg.AuthRateLimitMax,
			WindowSeconds: cfg.AuthRateLimitWindow,
		},
		AuthPaths: []string{cfg.APIPrefix + "/tasks/create"},
		GlobalRateLimit: httpmw.RateLimitConfig{
			Enabled:       cfg.RateLimitEnabled,
			Max:           cfg.RateLimitMax,
			WindowSeconds: cfg.RateLimitWindowSeconds,
		},
		GlobalExcludes:  []string{"/health"},
		Verifier:        verifier,
		PublicAuthPaths: []string{cfg.APIPrefix + "/ws", "/health"},
		CORS:            corsOptions,
	})

	api.Mount(router, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("forexcopilot: listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("forexcopilot: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var result *multierror.Error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	streamer.Stop()
	q.Stop()

	if result != nil {
		zlog.Error("forexcopilot: shutdown encountered errors", zap.Error(result))
		return result
	}
	zlog.Info("forexcopilot: stopped")
	return nil
}
