package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ilievs/pinhub/config"
	"github.com/ilievs/pinhub/system"
)

func main() {
	configPath := pflag.String("config", "", "path to the YAML config file")
	mqttAddr := pflag.String("mqtt", "", "device MQTT listen address (overrides config)")
	httpAddr := pflag.String("http", "", "HTTP listen address (overrides config)")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error (overrides config)")
	logFormat := pflag.String("log-format", "", "text or json (overrides config)")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("mqtt") {
		cfg.MQTT.Address = *mqttAddr
	}
	if pflag.CommandLine.Changed("http") {
		cfg.HTTP.Address = *httpAddr
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if pflag.CommandLine.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := system.SignalContext(context.Background())
	defer stop()

	if err := RunApplication(ctx, cfg, log); err != nil {
		log.Error("pinhub stopped", "error", err)
		os.Exit(1)
	}
	log.Info("pinhub stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
