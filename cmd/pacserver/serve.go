package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pacarena/server/internal/brain"
	"github.com/pacarena/server/internal/config"
	"github.com/pacarena/server/internal/logging"
	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/registry"
	"github.com/pacarena/server/internal/room"
	"github.com/pacarena/server/internal/statsink"
	"github.com/pacarena/server/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pacserver HTTP/WebSocket server",
	RunE:  runServe,
}

// runServe wires every ambient and domain component together, following
// clairegregg's central_server main() shape: connect optional backing
// stores, install signal-driven graceful shutdown, then block on
// http.Server.ListenAndServe.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(flagDebug)
	instanceID := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory, directoryReader, teardownDirectory, err := setupDirectory(ctx, cfg, instanceID, logger)
	if err != nil {
		return fmt.Errorf("setup room directory: %w", err)
	}
	defer teardownDirectory()

	var tabular *brain.TabularPolicy
	if cfg.Brain.ModelPath != "" {
		tabular, err = brain.LoadTabularPolicy(cfg.Brain.ModelPath)
		if err != nil {
			logger.Warn("failed to load tabular policy, falling back to heuristic brains", "path", cfg.Brain.ModelPath, "err", err)
			tabular = nil
		}
	}

	sink, teardownSink := setupStatsink(ctx, cfg, logger)
	defer teardownSink()

	m := maze.Reference()
	reg := registry.New(m, cfg.ToRoomConfig(), tabular, tabular != nil && cfg.Brain.UseTabular, directory, directoryReader, logging.Component(logger, "registry"))
	if sink != nil {
		reg.OnRoomCreated = func(r *room.GameRoom) {
			r.OnMatchComplete = func(summary room.MatchSummary) {
				sink.Post(statsink.MatchSummary{
					RoomCode:      summary.RoomCode,
					StartedAt:     summary.StartedAt,
					EndedAt:       summary.EndedAt,
					DurationMs:    summary.EndedAt.Sub(summary.StartedAt).Milliseconds(),
					Winner:        summary.Winner,
					FinalScore:    summary.FinalScore,
					CaptureCount:  summary.CaptureCount,
					DotsRemaining: summary.DotsRemaining,
					StepCount:     summary.StepCount,
				})
			}
		}
	}

	server := transport.NewServer(reg, logging.Component(logger, "transport"))
	router := transport.NewRouter(server)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down pacserver")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		cancel()
	}()

	logger.Info("pacserver listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// setupDirectory wires the room directory: a local sqlite replica always
// runs and is always returned as the reader, since it holds the merged
// view of every instance's rooms even when Kafka is doing the publishing.
// If Kafka brokers are configured, a KafkaAnnouncer both publishes this
// instance's room events and consumes every instance's events into that
// same sqlite replica, so registry.Registry.LookupDirectory can resolve
// rooms hosted on any instance.
func setupDirectory(ctx context.Context, cfg config.Config, instanceID string, logger *log.Logger) (registry.DirectoryPublisher, registry.DirectoryReader, func(), error) {
	dir, err := registry.OpenDirectory(cfg.SQLite.DirectoryDBPath, logging.Component(logger, "directory"))
	if err != nil {
		return nil, nil, func() {}, err
	}

	stop := make(chan struct{})
	go dir.RunSweeper(time.Minute, time.Hour, stop)

	if len(cfg.Kafka.Brokers) == 0 {
		return dir, dir, func() { close(stop); dir.Close() }, nil
	}

	announcer, err := registry.NewKafkaAnnouncer(cfg.Kafka.Brokers, instanceID, logging.Component(logger, "kafka"))
	if err != nil {
		close(stop)
		dir.Close()
		return nil, nil, func() {}, err
	}
	go func() {
		if err := announcer.Consume(dir, stop); err != nil {
			logger.Error("kafka directory consumer stopped", "err", err)
		}
	}()

	teardown := func() {
		close(stop)
		announcer.Close()
		dir.Close()
	}
	return announcer, dir, teardown, nil
}

func setupStatsink(ctx context.Context, cfg config.Config, logger *log.Logger) (*statsink.Sink, func()) {
	if cfg.Mongo.URI == "" {
		return nil, func() {}
	}
	sink, err := statsink.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logging.Component(logger, "statsink"))
	if err != nil {
		logger.Warn("failed to connect statsink, match summaries will not be recorded", "err", err)
		return nil, func() {}
	}
	return sink, sink.Close
}
