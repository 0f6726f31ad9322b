// Package main provides the scene sync bridge binary: it loads the scene,
// applies the host naming rules, and serves editor requests over TCP.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/scenesync/internal/bridge"
	"github.com/cory-johannsen/scenesync/internal/config"
	"github.com/cory-johannsen/scenesync/internal/editor"
	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/observability"
	"github.com/cory-johannsen/scenesync/internal/scene"
	"github.com/cory-johannsen/scenesync/internal/scripting"
	"github.com/cory-johannsen/scenesync/internal/server"
	"github.com/cory-johannsen/scenesync/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting scene sync bridge",
		zap.String("bridge_addr", cfg.Bridge.Addr()),
		zap.String("default_level", cfg.Scene.DefaultLevel),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewNamingMetrics(reg)
	if err != nil {
		logger.Fatal("registering metrics", zap.Error(err))
	}

	policy := cfg.Naming.Policy()
	sceneOpts := []scene.Option{scene.WithRules(scene.ReservedPrefixes(cfg.Naming.ReservedPrefixes))}

	// Host naming rules in Lua
	if cfg.Scripting.RulesDir != "" {
		scripts := scripting.NewManager(naming.NewSanitizer(policy), cfg.Scripting.InstructionLimit, logger)
		defer scripts.Close()
		if err := scripts.LoadDir(cfg.Scripting.RulesDir); err != nil {
			logger.Fatal("loading naming rules", zap.Error(err))
		}
		sceneOpts = append(sceneOpts, scene.WithRules(scripting.NewNameRules(scripts)))
		logger.Info("naming rules loaded",
			zap.String("dir", cfg.Scripting.RulesDir),
			zap.Int("level_vms", len(scripts.Levels())),
		)
	}

	// Shared identity ledger
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		sceneOpts = append(sceneOpts, scene.WithLedger(postgres.NewIdentityRepository(pool.DB())))
		logger.Info("identity ledger connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	sceneMgr := scene.NewManager(sceneOpts...)

	var levels []*scene.Level
	if cfg.Scene.Dir != "" {
		sceneStart := time.Now()
		levels, err = scene.LoadLevelsFromDir(cfg.Scene.Dir)
		if err != nil {
			logger.Fatal("loading levels", zap.Error(err))
		}
		for _, l := range levels {
			if _, err := sceneMgr.Populate(ctx, l); err != nil {
				logger.Fatal("populating level", zap.String("level", l.Name), zap.Error(err))
			}
			// Ledger claims are keyed by handle; store new handles before
			// anything else can go wrong.
			if pool != nil && l.MissingHandles() {
				if err := scene.WriteLevelFile(l.Source, sceneMgr.Snapshot(naming.Scope(l.Name))); err != nil {
					logger.Fatal("storing object handles", zap.String("level", l.Name), zap.Error(err))
				}
			}
		}
		logger.Info("scene loaded",
			zap.Int("levels", len(levels)),
			zap.Int("objects", sceneMgr.Count()),
			zap.Duration("elapsed", time.Since(sceneStart)),
		)
	}

	synchronizer := naming.NewSynchronizer(policy, sceneMgr,
		naming.WithLogger(logger),
		naming.WithRecorder(metrics),
		naming.WithMaxAttempts(cfg.Naming.MaxCommitAttempts),
	)
	handler := editor.NewHandler(sceneMgr, synchronizer,
		naming.Scope(cfg.Scene.DefaultLevel), cfg.Naming.MaxCommitAttempts, logger)
	acceptor := bridge.NewAcceptor(cfg.Bridge, handler, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("bridge", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})
	if cfg.Telemetry.MetricsAddr != "" {
		lifecycle.Add("metrics", server.NewMetricsService(cfg.Telemetry.MetricsAddr, observability.Handler(reg), logger))
	}
	if cfg.Telemetry.HealthAddr != "" {
		health := server.NewHealthService(cfg.Telemetry.HealthAddr, 0, logger)
		if pool != nil {
			health.AddCheck("ledger", func(ctx context.Context) error {
				return pool.Health(ctx, 2*time.Second)
			})
		}
		lifecycle.Add("health", health)
	}

	logger.Info("scene sync bridge initialized",
		zap.Duration("startup", time.Since(start)),
	)

	runErr := lifecycle.Run(ctx)
	persistScene(sceneMgr, cfg.Scene, levels, logger)
	if runErr != nil {
		logger.Error("bridge stopped with error", zap.Error(runErr))
		logger.Sync()
		log.Fatalf("running: %v", runErr)
	}
}

// persistScene saves the levels, handles included, when configured to, and
// otherwise releases this process's ledger claims so a restart can take
// the names again.
func persistScene(mgr *scene.Manager, cfg config.SceneConfig, levels []*scene.Level, logger *zap.Logger) {
	if cfg.Dir != "" && cfg.SaveOnExit {
		written, err := mgr.SaveLevels(cfg.Dir, levels)
		if err != nil {
			logger.Error("saving levels", zap.Error(err))
		}
		logger.Info("levels saved", zap.Strings("paths", written))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.ReleaseClaims(ctx); err != nil {
		logger.Error("releasing ledger claims", zap.Error(err))
	}
}
