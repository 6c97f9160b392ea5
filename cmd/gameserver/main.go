// Package main provides the game server binary: a dedicated or listen server world
// serving replication over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/spawnmaster/internal/config"
	"github.com/cory-johannsen/spawnmaster/internal/game/command"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
	"github.com/cory-johannsen/spawnmaster/internal/observability"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
	"github.com/cory-johannsen/spawnmaster/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	console := flag.Bool("console", false, "read host commands from stdin (listen server only)")
	flag.Parse()

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	mode := cfg.Server.Mode()
	if !mode.IsServer() || mode == netrole.ModeStandalone {
		log.Fatalf("gameserver runs dedicated_server or listen_server, config says %s", mode)
	}

	logger, err := observability.NewLogger(cfg.Logging, observability.ModeField(mode))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("grpc_addr", cfg.Replication.Addr()),
		zap.Int("tick_rate", cfg.Server.TickRate),
	)

	contentStart := time.Now()
	content, err := world.LoadContent(cfg.Content.ContentDirs, cfg.Content.ScriptInstructionLimit, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Debug("content load time", zap.Duration("elapsed", time.Since(contentStart)))

	wcfg := cfg.WorldConfig(mode)
	if wcfg.DebugPrintInterval > 0 {
		wcfg.DebugWriter = os.Stdout
	}
	w, err := world.New(wcfg, content, logger)
	if err != nil {
		logger.Fatal("creating world", zap.Error(err))
	}
	if err := w.PopulateLevel(); err != nil {
		logger.Fatal("populating level", zap.Error(err))
	}
	logger.Info("level populated", zap.Int("floor_items", w.Floor().Len()))

	if mode == netrole.ModeListenServer {
		team := gametag.TeamSurvivor
		if teams := wcfg.Teams; len(teams) > 0 {
			team = teams[0]
		}
		host, err := w.SpawnPawn("", cfg.Server.HostName, team)
		if err != nil {
			logger.Fatal("spawning host pawn", zap.Error(err))
		}
		logger.Info("host pawn spawned", zap.String("pawn", host.Name()), zap.String("team", host.Team().String()))
	}

	grpcServer := grpc.NewServer()
	replication.NewServer(logger, cfg.Replication.OutboxSize, w.AddConnection).Register(grpcServer)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(replication.ServiceName, healthpb.HealthCheckResponse_SERVING)

	loop, err := server.NewTickLoop(cfg.Server.TickInterval(), w)
	if err != nil {
		logger.Fatal("creating tick loop", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("world", loop)
	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Replication.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Replication.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
		},
	})
	if cfg.Metrics.ListenAddr != "" {
		lifecycle.Add("metrics", observability.NewMetricsServer(cfg.Metrics.ListenAddr, nil, logger))
	}
	if *console && mode == netrole.ModeListenServer {
		ex := command.NewExecutor(command.DefaultRegistry(), w, os.Stdout)
		lifecycle.Add("console", command.NewConsole(ex, os.Stdin, w.Post, cancel))
	}

	logger.Info("game server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
