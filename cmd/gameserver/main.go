// Package main runs the Connect-Four game server: a WebSocket acceptor in
// front of the session coordinator, matchmaker, and bot driver.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dropfour/internal/config"
	"github.com/cory-johannsen/dropfour/internal/frontend/ws"
	"github.com/cory-johannsen/dropfour/internal/game/match"
	"github.com/cory-johannsen/dropfour/internal/game/rng"
	"github.com/cory-johannsen/dropfour/internal/gameserver"
	"github.com/cory-johannsen/dropfour/internal/observability"
	"github.com/cory-johannsen/dropfour/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = built-in defaults")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	matchmaker := match.NewMatchmaker(cfg.Match.WaitTimeout)
	registry := gameserver.NewRegistry(logger)
	coordinator := gameserver.NewCoordinator(
		matchmaker, registry, rng.NewCryptoSource(),
		cfg.Match.BotMoveDelay, cfg.Match.BotMaxPlies, logger,
	)
	acceptor := ws.NewAcceptor(cfg.WebSocket, coordinator, logger)

	logger.Info("game server initialized",
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.Duration("wait_timeout", cfg.Match.WaitTimeout),
		zap.Duration("bot_move_delay", cfg.Match.BotMoveDelay),
		zap.Duration("startup", time.Since(start)),
	)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})
	lifecycle.Add("coordinator", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  coordinator.Shutdown,
	})

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
