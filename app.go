package main

import (
	"context"
	"fmt"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ilievs/pinhub/api"
	"github.com/ilievs/pinhub/config"
	"github.com/ilievs/pinhub/hardware"
	"github.com/ilievs/pinhub/mqtt"
	"github.com/ilievs/pinhub/ota"
	"github.com/ilievs/pinhub/session"
	"github.com/ilievs/pinhub/store"
)

// RunApplication wires the broker, the hardware handlers and the HTTP
// API together and runs them until ctx is cancelled or one of them
// fails.
func RunApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := store.FromConfig(cfg.Users)
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       log.With("component", "mqtt"),
	})

	sessions := session.NewRegistry()
	otaManager := ota.NewManager(st, log.With("component", "ota"))
	hwLog := log.With("component", "hardware")
	dispatcher := hardware.NewDispatcher(
		hardware.NewSetWidgetPropertyLogic(sessions, hwLog),
		hardware.NewInternalLogic(otaManager, cfg.Limits.IdleTimeout(), hwLog),
		hwLog,
	)

	mqttClient := mqtt.NewMochiClient(server)
	gateway := mqtt.NewGateway(st, sessions, dispatcher, mqttClient, mqtt.LinkConfig{
		QueueSize:   cfg.Limits.DeviceQueueSize,
		IdleTimeout: cfg.Limits.IdleTimeout(),
		MsgRate:     cfg.Limits.DeviceMsgRate,
		MsgBurst:    cfg.Limits.DeviceMsgBurst,
	}, hwLog)

	broker := mqtt.NewMochiBroker(server, cfg.MQTT.Address)
	err = broker.Start(
		[]mochi.Hook{new(mqtt.DeviceHook)},
		[]any{&mqtt.HookOptions{Resolver: st, Gateway: gateway}})
	if err != nil {
		return err
	}
	if _, err := gateway.Attach(broker); err != nil {
		return fmt.Errorf("subscribing to device topics: %w", err)
	}

	httpServer := api.NewServer(api.Options{
		Address:      cfg.HTTP.Address,
		APIKey:       cfg.HTTP.APIKey,
		AppQueueSize: cfg.Limits.AppQueueSize,
	}, st, sessions, otaManager, log.With("component", "api"))

	log.Info("starting pinhub", "mqtt", cfg.MQTT.Address, "http", cfg.HTTP.Address,
		"users", len(st.Users()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return broker.Run(ctx)
	})
	g.Go(func() error {
		return httpServer.Run(ctx)
	})
	err = g.Wait()

	gateway.Close()
	otaManager.Wait()
	return err
}
