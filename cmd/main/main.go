package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/hoteldex/hotel-admin/config"
	"github.com/hoteldex/hotel-admin/internal/app"
)

func main() {
	setupLogging()

	config, err := conf.LoadConfig()
	if err != nil {
		slog.Error("hotel_admin.main.configuration_error", slog.String("error", err.Error()))
		return
	}

	application, err := app.New(config)
	if err != nil {
		slog.Error("hotel_admin.main.application_initialization_error", slog.String("error", err.Error()))
		return
	}

	initSignals(application)

	slog.Debug("hotel_admin.main.configuration_loaded",
		slog.String("consul", config.Consul.Address),
		slog.String("http_address", config.Consul.PublicAddress),
		slog.String("consul_id", config.Consul.Id),
	)

	slog.Info("hotel_admin.main.starting_application")
	if err := application.Start(); err != nil {
		slog.Error("hotel_admin.main.application_start_error", slog.String("error", err.Error()))
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if os.Getenv("LOG_FORMAT") == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func initSignals(application *app.App) {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		for s := range sigch {
			handleSignal(s, application)
		}
	}()
}

func handleSignal(s os.Signal, application *app.App) {
	if s == syscall.SIGTERM || s == syscall.SIGINT {
		if err := application.Stop(); err != nil {
			return
		}
		slog.Info("hotel_admin.main.received_stop_signal",
			slog.String("signal", s.String()),
			slog.String("status", "service gracefully stopped"),
		)
		os.Exit(0)
	}
}
