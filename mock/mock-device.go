package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/spf13/pflag"

	"github.com/ilievs/pinhub/mqtt"
	"github.com/ilievs/pinhub/protocol"
	"github.com/ilievs/pinhub/system"
)

// A simulated board: it reports its hardware info, then keeps changing
// the label and max of the widget on one virtual pin.
func main() {
	broker := pflag.String("broker", "mqtt://localhost:1883", "pinhub MQTT address")
	token := pflag.String("token", "", "device token")
	pin := pflag.Int("pin", 4, "virtual pin to drive")
	heartbeat := pflag.Int("heartbeat", 10, "heartbeat interval in seconds")
	pflag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *token == "" {
		log.Error("--token is required")
		os.Exit(1)
	}

	// App will run until cancelled by user (e.g. ctrl-c)
	ctx, stop := system.SignalContext(context.Background())
	defer stop()

	u, err := url.Parse(*broker)
	if err != nil {
		log.Error("bad broker url", "error", err)
		os.Exit(1)
	}

	inTopic := mqtt.InTopic(*token)
	outTopic := mqtt.OutTopic(*token)

	cliCfg := autopaho.ClientConfig{
		ConnectUsername: *token,
		ServerUrls:      []*url.URL{u},
		KeepAlive:       20,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         0,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Info("mqtt connection up")
			// Subscribing in the OnConnectionUp callback is recommended (ensures the subscription is reestablished if
			// the connection drops)
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: outTopic, QoS: 0},
				},
			}); err != nil {
				log.Warn("failed to subscribe", "topic", outTopic, "error", err)
			}
		},
		OnConnectError: func(err error) {
			log.Warn("error whilst attempting connection", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "mock-" + *token,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					f, err := protocol.Decode(pr.Packet.Payload)
					if err != nil {
						log.Warn("malformed frame from server", "error", err)
						return true, nil
					}
					log.Info("received", "frame", f.String())
					return true, nil
				}},
			OnClientError: func(err error) { log.Warn("client error", "error", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					log.Warn("server requested disconnect", "reason", d.Properties.ReasonString)
				} else {
					log.Warn("server requested disconnect", "code", d.ReasonCode)
				}
			},
		},
	}

	c, err := autopaho.NewConnection(ctx, cliCfg) // starts process; will reconnect until context cancelled
	if err != nil {
		log.Error("failed to start connection", "error", err)
		os.Exit(1)
	}
	if err = c.AwaitConnection(ctx); err != nil {
		return
	}

	var id uint16
	publish := func(cmd protocol.Command, body string) {
		id++
		if id == 0 {
			id = 1
		}
		payload, err := protocol.Encode(protocol.StringMessage(cmd, id, body))
		if err != nil {
			log.Error("failed to encode frame", "error", err)
			return
		}
		if _, err := c.Publish(ctx, &paho.Publish{QoS: 0, Topic: inTopic, Payload: payload}); err != nil && ctx.Err() == nil {
			log.Warn("publish failed", "error", err)
		}
	}

	publish(protocol.BlynkInternal, protocol.Join(
		"ver", "0.5.0", "h-beat", strconv.Itoa(*heartbeat), "buff-in", "256",
		"dev", "mock", "build", "mock-1"))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	beat := time.NewTicker(time.Duration(*heartbeat) * time.Second)
	defer beat.Stop()
	pinStr := strconv.Itoa(*pin)
	for {
		select {
		case <-ticker.C:
			publish(protocol.SetWidgetProperty, protocol.Join(pinStr, "label", fmt.Sprintf("t=%d", time.Now().Unix())))
			publish(protocol.SetWidgetProperty, protocol.Join(pinStr, "max", strconv.Itoa(rand.Intn(200)+50)))
		case <-beat.C:
			publish(protocol.Ping, "")
		case <-ctx.Done():
			<-c.Done()
			return
		}
	}
}
