// Package main provides the all-in-one development server: a listen server world and a
// few bot clients joined over in-memory pipes, playing a scripted equip and drop
// scenario with the inventory overlay on.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/config"
	"github.com/cory-johannsen/spawnmaster/internal/debugtext"
	"github.com/cory-johannsen/spawnmaster/internal/game/command"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
	"github.com/cory-johannsen/spawnmaster/internal/observability"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
	"github.com/cory-johannsen/spawnmaster/internal/server"
)

// step runs line on bot (0 is the host) once at has elapsed.
type step struct {
	at   time.Duration
	bot  int
	line string
}

var scenario = []step{
	{at: 1 * time.Second, bot: 1, line: "next"},
	{at: 2 * time.Second, bot: 2, line: "use Ability.Fire"},
	{at: 3 * time.Second, bot: 1, line: "drop"},
	{at: 4 * time.Second, bot: 0, line: "floor"},
	{at: 5 * time.Second, bot: 2, line: "prev"},
	{at: 6 * time.Second, bot: 0, line: "dropall"},
	{at: 7 * time.Second, bot: 1, line: "inv"},
}

// match ticks the host world, then every bot world, then runs due scenario steps.
type match struct {
	logger   *zap.Logger
	worlds   []*world.World
	execs    []*command.Executor
	elapsed  time.Duration
	pending  []step
	finished func()
}

func (m *match) Tick(dt time.Duration) {
	for _, w := range m.worlds {
		w.Tick(dt)
	}
	m.elapsed += dt
	for len(m.pending) > 0 && m.pending[0].at <= m.elapsed {
		s := m.pending[0]
		m.pending = m.pending[1:]
		debugtext.Line(os.Stdout, debugtext.Yellow, "[%s] bot %d> %s", m.elapsed.Truncate(time.Millisecond), s.bot, s.line)
		if err := m.execs[s.bot].Run(s.line); err != nil {
			m.logger.Warn("scenario step failed", zap.Int("bot", s.bot), zap.String("line", s.line), zap.Error(err))
		}
		if len(m.pending) == 0 && m.finished != nil {
			m.finished()
		}
	}
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	bots := flag.Int("bots", 2, "number of simulated clients")
	latency := flag.Int("latency", -1, "pipe latency in polls; negative uses replication.pipe_latency")
	linger := flag.Duration("linger", 3*time.Second, "time to keep running after the scenario ends")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, observability.ModeField(netrole.ModeListenServer))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	content, err := world.LoadContent(cfg.Content.ContentDirs, cfg.Content.ScriptInstructionLimit, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}

	hostCfg := cfg.WorldConfig(netrole.ModeListenServer)
	hostCfg.SpawnOnJoin = true
	if hostCfg.DebugPrintInterval <= 0 {
		hostCfg.DebugPrintInterval = 2 * time.Second
	}
	hostCfg.DebugWriter = os.Stdout
	host, err := world.New(hostCfg, content, logger.Named("host"))
	if err != nil {
		logger.Fatal("creating host world", zap.Error(err))
	}
	if err := host.PopulateLevel(); err != nil {
		logger.Fatal("populating level", zap.Error(err))
	}
	if _, err := host.SpawnPawn("", cfg.Server.HostName, gametag.TeamSurvivor); err != nil {
		logger.Fatal("spawning host pawn", zap.Error(err))
	}

	lag := cfg.Replication.PipeLatency
	if *latency >= 0 {
		lag = *latency
	}
	m := &match{logger: logger, pending: scenario}
	m.worlds = append(m.worlds, host)
	m.execs = append(m.execs, command.NewExecutor(command.DefaultRegistry(), host, os.Stdout))
	for i := 1; i <= *bots; i++ {
		botCfg := cfg.WorldConfig(netrole.ModeClient)
		botCfg.DebugPrintInterval = 0
		bot, err := world.New(botCfg, content, logger.Named(fmt.Sprintf("bot%d", i)))
		if err != nil {
			logger.Fatal("creating bot world", zap.Error(err))
		}
		serverEnd, botEnd := replication.NewPipe(fmt.Sprintf("pipe-%d", i), "server", lag, logger)
		host.AddConnection(serverEnd)
		if err := bot.ConnectToServer(botEnd, fmt.Sprintf("bot%d", i)); err != nil {
			logger.Fatal("joining bot", zap.Error(err))
		}
		m.worlds = append(m.worlds, bot)
		m.execs = append(m.execs, command.NewExecutor(command.DefaultRegistry(), bot, os.Stdout))
	}
	// Steps for bots that were not created are dropped.
	kept := m.pending[:0]
	for _, s := range m.pending {
		if s.bot < len(m.execs) {
			kept = append(kept, s)
		}
	}
	m.pending = kept

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.finished = func() { time.AfterFunc(*linger, cancel) }
	if len(m.pending) == 0 {
		m.finished()
	}

	loop, err := server.NewTickLoop(cfg.Server.TickInterval(), m)
	if err != nil {
		logger.Fatal("creating tick loop", zap.Error(err))
	}
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("match", loop)

	logger.Info("dev server initialized",
		zap.Int("bots", *bots),
		zap.Int("pipe_latency", lag),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
