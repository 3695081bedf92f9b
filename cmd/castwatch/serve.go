package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/castwatch/castwatch/internal/cast"
	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/publish"
	"github.com/castwatch/castwatch/internal/server"
	"github.com/castwatch/castwatch/internal/version"
)

// publishBuffer is the event backlog kept for the MQTT publisher.
const publishBuffer = 64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor with its HTTP API",
	Long: `Run the monitor until interrupted.

Devices are discovered and polled on the intervals set in the config file.
Statuses are served over HTTP and pushed to WebSocket clients on /ws. When
mqtt.enabled is set, changes are also published to the broker.`,
	Example: `  # Run with the default config file
  castwatch serve

  # Run with a specific config and verbose logging
  castwatch serve --config ./castwatch.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.InitializeWithFormat(level, cfg.Logging.Format); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("Starting castwatch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := cast.NewPool()
	defer func() {
		if err := pool.Close(); err != nil {
			logging.Warn("Failed to close device channels", zap.Error(err))
		}
	}()

	mon := monitor.New(cfg.Scanner(), pool, cfg.MonitorSettings())

	var srv *server.Server
	if cfg.HTTP.Enabled {
		srv, err = server.New(cfg.ServerSettings(), mon)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
	}

	var pub *publish.Publisher
	if cfg.MQTT.Enabled {
		pub, err = publish.Connect(cfg.PublishSettings())
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer func() { _ = pub.Close() }()
	}

	// Subscribe before Start so the first device event is not missed.
	var events <-chan monitor.Event
	if pub != nil {
		var unsubscribe func()
		events, unsubscribe = mon.Subscribe(publishBuffer)
		defer unsubscribe()
	}

	if err := mon.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	joined := make(chan error, 1)
	go func() { joined <- mon.Join() }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			if err := mon.Stop(); err != nil {
				return err
			}
			return <-joined
		case err := <-joined:
			if err == nil {
				return nil
			}
			return fmt.Errorf("monitor exited: %w", err)
		}
	})

	if srv != nil {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if pub != nil {
		g.Go(func() error {
			return pub.Run(gctx, events)
		})
	}

	err = g.Wait()
	if errors.Is(err, monitor.ErrStateCorruption) {
		logging.Error("Monitor state corrupted, exiting", zap.Error(err))
	}
	if err != nil {
		return err
	}

	logging.Info("Castwatch stopped")
	return nil
}
