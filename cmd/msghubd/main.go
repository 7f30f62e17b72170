// Command msghubd is a minimal wiring example assembling the library
// packages into a runnable process: it is not itself part of the core
// surface, but demonstrates how a host loads config, builds the C1-C11
// collaborators, and serves the admin RPC surface. Mirrors the shape of
// the teacher's examples/basic-app main.go (load config, build logger,
// construct collaborators, run until signaled), adapted from the
// teacher's modular.Application builder to msghub's own flat
// constructor-chain wiring since this repo has no DI container.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stacknerd/msghub/adminapi"
	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/config"
	"github.com/stacknerd/msghub/hostapi"
	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/msgarchive"
	"github.com/stacknerd/msghub/msgstorage"
	"github.com/stacknerd/msghub/plugins"
	"github.com/stacknerd/msghub/stats"
	"github.com/stacknerd/msghub/storage"
	"github.com/stacknerd/msghub/store"
)

func main() {
	configPath := flag.String("config", "msghub.yaml", "path to the YAML config file")
	addr := flag.String("addr", ":8090", "admin RPC listen address")
	flag.Parse()

	logger, err := logging.NewZap()
	if err != nil {
		os.Stderr.WriteString("msghubd: failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Default()
	if _, statErr := os.Stat(*configPath); statErr == nil {
		if feedErr := config.NewYAMLFeeder(*configPath).Feed(&cfg); feedErr != nil {
			logger.Error("msghubd: failed loading config", "path", *configPath, "error", feedErr)
			os.Exit(1)
		}
	}
	if feedErr := config.NewEnvFeeder("MSGHUB").Feed(&cfg); feedErr != nil {
		logger.Error("msghubd: failed applying env overrides", "error", feedErr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, tracker, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("msghubd: failed building store", "error", err)
		os.Exit(1)
	}

	deps := hostapi.Deps{
		Store:   s,
		Stats:   tracker,
		Factory: s.Factory,
		Clock:   clock.Real{},
		Logger:  logger,
		IDs:     hostapi.IDs{InstancePrefix: "msghub.0"},
	}

	notify := plugins.NewNotifyRegistry(deps, logger)
	s.Notify = notify

	// Default sink: logs any message whose audience opts into the
	// "notify.log" channel (or specifies no channel filter at all).
	// Demonstrates plugins.ChannelNotifyHandler's glob-matched routing
	// against a real, if minimal, NotifyHandler.
	notify.Register(ctx, "log-sink", plugins.ChannelNotifyHandler{
		Channel: "notify.log",
		Inner: plugins.FuncHandler[hostapi.NotifyContext]{
			Fn: func(_ context.Context, event string, msgs []*message.Message, api hostapi.NotifyContext) {
				for _, m := range msgs {
					api.Log.Info("msghubd: notify", "event", event, "ref", m.Ref, "title", m.Title)
				}
			},
		},
	})
	notify.Start(ctx)

	router := adminapi.NewRouter(s, logger)
	srv := &http.Server{Addr: *addr, Handler: router.Handler()}

	go func() {
		logger.Info("msghubd: admin RPC listening", "addr", *addr)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("msghubd: admin server failed", "error", serveErr)
		}
	}()

	<-ctx.Done()
	logger.Info("msghubd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("msghubd: graceful shutdown failed", "error", shutdownErr)
	}
	notify.StopAll(shutdownCtx)
}

func buildStore(ctx context.Context, cfg config.Config, logger logging.Logger) (*store.Store, *stats.Tracker, error) {
	c := clock.Real{}

	msgBackend := storage.NewNativeFS(filepath.Join(cfg.BaseDir, "messages"))
	if err := msgBackend.Init(ctx); err != nil {
		return nil, nil, err
	}
	msgStorage := msgstorage.New(msgBackend, "messages.json", int(cfg.MsgStorageWriteIntervalMs), c, logger)
	if err := msgStorage.Init(ctx); err != nil {
		return nil, nil, err
	}

	archiveBackend := storage.NewNativeFS(filepath.Join(cfg.BaseDir, "archive"))
	if err := archiveBackend.Init(ctx); err != nil {
		return nil, nil, err
	}
	archive := msgarchive.New(msgarchive.Config{
		BaseDir:           "archive",
		FlushIntervalMs:   int(cfg.ArchiveFlushIntervalMs),
		KeepPreviousWeeks: cfg.ArchiveKeepPreviousWeeks,
	}, archiveBackend, nil, c, logger)
	if err := archive.Init(ctx); err != nil {
		return nil, nil, err
	}

	statsBackend := storage.NewNativeFS(filepath.Join(cfg.BaseDir, "stats"))
	if err := statsBackend.Init(ctx); err != nil {
		return nil, nil, err
	}
	statsStorage := msgstorage.New(statsBackend, "stats-rollup.json", 0, c, logger)
	if err := statsStorage.Init(ctx); err != nil {
		return nil, nil, err
	}
	tracker := stats.New(statsStorage, c, logger, stats.Config{
		RollupKeepDays: cfg.StatsRollupKeepDays,
		PruneCronSpec:  cfg.StatsPruneCronSpec,
		Locale:         cfg.Locale,
	})
	if err := tracker.Init(ctx); err != nil {
		return nil, nil, err
	}

	factory := message.NewFactory(logger)
	s := store.New(factory, msgStorage, archive, nil, tracker, c, logger, store.Config{
		QuietHours: cfg.QuietHours,
	})
	if err := s.Init(ctx); err != nil {
		return nil, nil, err
	}

	return s, tracker, nil
}
