package mqtt

import (
	mochi "github.com/mochi-mqtt/server/v2"
)

// Publisher sends a payload to an MQTT topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MochiClient publishes through the broker's inline client.
type MochiClient struct {
	server *mochi.Server
}

func NewMochiClient(server *mochi.Server) *MochiClient {
	return &MochiClient{
		server,
	}
}

// Publish sends payload at QoS 0. Nothing is retained.
func (m *MochiClient) Publish(topic string, payload []byte) error {
	return m.server.Publish(topic, payload, false, 0)
}
