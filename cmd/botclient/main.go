// Package main provides a headless client that joins a game server over gRPC and reads
// inventory commands from stdin.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/config"
	"github.com/cory-johannsen/spawnmaster/internal/game/command"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
	"github.com/cory-johannsen/spawnmaster/internal/observability"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
	"github.com/cory-johannsen/spawnmaster/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	name := flag.String("name", "bot", "player name sent with hello")
	addr := flag.String("addr", "", "server address; defaults to replication.grpc_host:grpc_port")
	dialTimeout := flag.Duration("dial-timeout", 5*time.Second, "time allowed to open the replication stream")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, observability.ModeField(netrole.ModeClient))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	content, err := world.LoadContent(cfg.Content.ContentDirs, cfg.Content.ScriptInstructionLimit, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	wcfg := cfg.WorldConfig(netrole.ModeClient)
	if wcfg.DebugPrintInterval > 0 {
		wcfg.DebugWriter = os.Stdout
	}
	w, err := world.New(wcfg, content, logger)
	if err != nil {
		logger.Fatal("creating world", zap.Error(err))
	}

	target := *addr
	if target == "" {
		target = cfg.Replication.Addr()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, *dialTimeout)
	conn, err := replication.Dial(dialCtx, target, cfg.Replication.OutboxSize, logger)
	dialCancel()
	if err != nil {
		logger.Fatal("connecting to server", zap.String("addr", target), zap.Error(err))
	}
	if err := w.ConnectToServer(conn, *name); err != nil {
		logger.Fatal("joining server", zap.Error(err))
	}
	logger.Info("joined server", zap.String("addr", target), zap.String("name", *name))

	loop, err := server.NewTickLoop(cfg.Server.TickInterval(), w)
	if err != nil {
		logger.Fatal("creating tick loop", zap.Error(err))
	}
	ex := command.NewExecutor(command.DefaultRegistry(), w, os.Stdout)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("world", loop)
	lifecycle.Add("connection", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if conn.Closed() {
						logger.Warn("server closed the connection")
						cancel()
						return nil
					}
				}
			}
		},
		StopFn: func() {
			if err := conn.Close(); err != nil {
				logger.Warn("closing connection", zap.Error(err))
			}
		},
	})
	lifecycle.Add("console", command.NewConsole(ex, os.Stdin, w.Post, cancel))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("client error", zap.Error(err))
	}
}
