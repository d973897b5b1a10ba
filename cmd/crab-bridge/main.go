package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crabstack.local/projects/crab-bridge/internal/config"
	"crabstack.local/projects/crab-bridge/internal/discord"
	"crabstack.local/projects/crab-bridge/internal/dispatch"
	"crabstack.local/projects/crab-bridge/internal/executor"
	"crabstack.local/projects/crab-bridge/internal/frontend"
	"crabstack.local/projects/crab-bridge/internal/gateway"
	"crabstack.local/projects/crab-bridge/internal/ledger"
	"crabstack.local/projects/crab-bridge/internal/mcpserver"
	"crabstack.local/projects/crab-bridge/internal/memctx"
	"crabstack.local/projects/crab-bridge/internal/model"
	"crabstack.local/projects/crab-bridge/internal/proxy"
	"crabstack.local/projects/crab-bridge/internal/singleton"
)

func main() {
	// Stdout carries the MCP protocol, so all logging goes to stderr.
	logger := log.New(os.Stderr, "crab-bridge ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)

	cfg, err := config.FromYAMLAndEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	if cfg.RemoteMode() {
		runRemote(logger, cfg)
		return
	}
	runLocal(logger, cfg)
}

// runRemote forwards every tool call to a running gateway. No lock, no
// connection, no ledger of its own.
func runRemote(logger *log.Logger, cfg config.Config) {
	client := proxy.NewClient(logger, cfg.RemoteGatewayURL, cfg.RemoteGatewayToken,
		proxy.WithDownloadDir(cfg.DownloadDir),
		proxy.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	dispatcher := dispatch.New(logger, client, true)

	logger.Printf("proxy mode, forwarding to %s", cfg.RemoteGatewayURL)
	if err := mcpserver.New(logger, dispatcher).ServeStdio(); err != nil {
		logger.Fatalf("mcp server: %v", err)
	}
}

func runLocal(logger *log.Logger, cfg config.Config) {
	guard := singleton.New(logger, cfg.LockFilePath)
	if err := guard.Acquire(); err != nil {
		logger.Fatalf("singleton guard: %v", err)
	}
	defer guard.Release()

	store, err := ledger.NewGormStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("open ledger store: %v", err)
	}
	led, err := ledger.New(logger, store)
	if err != nil {
		logger.Fatalf("load ledger: %v", err)
	}
	defer func() {
		if err := led.Close(); err != nil {
			logger.Printf("ledger close error: %v", err)
		}
	}()

	session := discord.NewSession(logger)
	if err := session.Start(cfg.DiscordBotToken); err != nil {
		logger.Fatalf("discord login: %v", err)
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Printf("discord close error: %v", err)
		}
	}()

	local := executor.NewLocal(logger, session, led)
	dispatcher := dispatch.New(logger, local, false)

	limiter := gateway.NewRateLimiter(cfg.RateLimit, time.Minute)
	srv := gateway.NewServer(logger, cfg.HTTPAddr, local, cfg.GatewaySecret, limiter)
	go func() {
		logger.Printf("gateway listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("gateway server crashed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AnthropicAPIKey != "" {
		memory := memctx.New(logger, cfg.MemoryServiceURL, cfg.MemoryServiceToken)
		provider := model.NewAnthropicProvider(cfg.AnthropicAPIKey)
		consumer := frontend.NewConsumer(logger, session.Events(), led, memory, provider, dispatcher, frontend.Options{
			ModelName:   cfg.ModelName,
			Persona:     cfg.Persona,
			OwnerUserID: cfg.OwnerUserID,
		})
		go consumer.Run(ctx)
	} else {
		logger.Printf("no anthropic api key configured, mentions and DMs only queue for polling")
	}

	// The MCP session ending is as much a shutdown signal as SIGTERM.
	stdioDone := make(chan error, 1)
	go func() {
		stdioDone <- mcpserver.New(logger, dispatcher).ServeStdio()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	case err := <-stdioDone:
		if err != nil {
			logger.Printf("mcp server stopped: %v", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("gateway shutdown error: %v", err)
	}
}
