package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/sand/crypto-stream-client/config"
	"github.com/sand/crypto-stream-client/internal/entities"
	"github.com/sand/crypto-stream-client/internal/stream"
)

func main() {
	time.Local = time.UTC

	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting stream client",
		"debug", config.App.Debug,
		"websocket_url", config.Stream.WebsocketURL,
		"api_base_url", config.Stream.APIBaseURL)

	client := stream.NewClient(stream.Config{
		WebsocketURL:   config.Stream.WebsocketURL,
		APIBaseURL:     config.Stream.APIBaseURL,
		ReconnectDelay: config.Stream.ReconnectDelay(),
		Notifications:  &logNotificationSink{logger: logger},
		Alerts:         &logAlertSink{logger: logger},
	}, logger)

	cancelConnected := client.Connected().Subscribe(func(connected bool) {
		logger.Info("Connectivity changed", "connected", connected)
	})
	defer cancelConnected()

	if err = client.Connect(context.Background()); err != nil {
		// Not fatal: the client keeps retrying on a fixed delay.
		logger.Warn("Initial connect failed, retrying in background", "error", err)
	}

	// Periodically report feed state so the binary is useful standalone.
	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-statsTicker.C:
			logger.Info("Feed state",
				"preview_trades", len(client.PreviewTrades()),
				"all_trades", len(client.AllTrades()),
				"connected", client.Connected().Get())

		case <-quit:
			logger.Info("Shutting down stream client...")
			if err = client.Close(); err != nil {
				logger.Error("Close failed", "error", err)
				return
			}
			logger.Info("Stream client exited properly")
			return
		}
	}
}

type logNotificationSink struct {
	logger *slog.Logger
}

func (s *logNotificationSink) Push(n entities.Notification) {
	s.logger.Info("Notification received", "type", n.Type, "title", n.Title, "message", n.Message)
}

func (s *logNotificationSink) IncrementUnread() {}

type logAlertSink struct {
	logger *slog.Logger
}

func (s *logAlertSink) Alert(a stream.Alert) {
	s.logger.Info("Alert", "title", a.Title, "message", a.Message, "route", a.Route)
}
