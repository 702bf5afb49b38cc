package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/weft/internal/authz"
	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/config"
	"github.com/oriys/weft/internal/exec"
	"github.com/oriys/weft/internal/logging"
	"github.com/oriys/weft/internal/metrics"
	"github.com/oriys/weft/internal/observability"
	"github.com/oriys/weft/internal/plugin"
	"github.com/oriys/weft/internal/rpc"
	"github.com/oriys/weft/internal/scheduler"
	"github.com/oriys/weft/internal/seed"
	"github.com/oriys/weft/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		dbPath      string
		httpAddr    string
		logLevel    string
		pluginDir   string
		sandboxRoot string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the weft daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("db") {
				cfg.Store.Path = dbPath
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("plugin-dir") {
				cfg.Plugin.Dir = pluginDir
			}
			if cmd.Flags().Changed("fs-sandbox") {
				cfg.Filesystem.SandboxRoot = sandboxRoot
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			ctx := context.Background()
			s, err := store.Open(ctx, cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer s.Close()

			has, err := seed.HasWorld(ctx, s)
			if err != nil {
				return fmt.Errorf("check world: %w", err)
			}
			if !has {
				result, err := seed.Bootstrap(ctx, s)
				if err != nil {
					return fmt.Errorf("bootstrap world: %w", err)
				}
				logging.Op().Info("seeded base world", "void_id", result.VoidID, "system_id", result.SystemID)
			}

			reg := plugin.NewRegistry()
			plugin.RegisterFS(reg, cfg.Filesystem.SandboxRoot)
			plugin.RegisterNet(reg)
			if cfg.Plugin.Dir != "" {
				if err := loadPlugins(reg, cfg.Plugin.Dir); err != nil {
					logging.Op().Warn("failed to load plugin directory", "dir", cfg.Plugin.Dir, "error", err)
				}
			}

			caps := capability.New(s)
			sched := scheduler.New(s)
			az := authz.New(s)
			execCtx := exec.New(s, caps, sched, az, reg)

			rpcServer := rpc.NewServer(s, execCtx, caps, sched)

			mux := http.NewServeMux()
			mux.Handle("/ws", rpcServer)
			mux.Handle("/metrics", metrics.Handler())

			var httpServer *http.Server
			if cfg.Daemon.HTTPAddr != "" {
				httpServer = &http.Server{Addr: cfg.Daemon.HTTPAddr, Handler: mux}
				go func() {
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("http server stopped", "error", err)
					}
				}()
				logging.Op().Info("weftd listening", "addr", cfg.Daemon.HTTPAddr)
			}

			schedCtx, cancelSched := context.WithCancel(ctx)
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				if err := sched.Run(schedCtx, cfg.Scheduler.TickInterval, rpcServer.SchedulerExecFunc()); err != nil {
					logging.Op().Error("scheduler stopped", "error", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			cancelSched()
			<-schedDone

			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite database file")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP/WebSocket listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&pluginDir, "plugin-dir", "", "directory scanned for .so plugins")
	cmd.Flags().StringVar(&sandboxRoot, "fs-sandbox", "", "sandbox root for the fs.* plugin")

	return cmd
}

func loadPlugins(reg *plugin.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := dir + string(os.PathSeparator) + entry.Name()
		if err := reg.LoadPlugin(path, "Weft"); err != nil {
			logging.Op().Warn("failed to load plugin", "path", path, "error", err)
		}
	}
	return nil
}
