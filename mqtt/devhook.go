package mqtt

import (
	"bytes"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

type HookOptions struct {
	Resolver TokenResolver
	Gateway  *Gateway
}

// DeviceHook authenticates devices by the token they send as MQTT
// username, confines each one to its own topics and opens or closes its
// link in the gateway.
type DeviceHook struct {
	mochi.HookBase
	resolver TokenResolver
	gateway  *Gateway
}

func (h *DeviceHook) ID() string {
	return "pinhub-devices"
}

func (h *DeviceHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnConnectAuthenticate,
		mochi.OnACLCheck,
		mochi.OnSessionEstablished,
		mochi.OnDisconnect,
	}, []byte{b})
}

func (h *DeviceHook) Init(config any) error {
	opt, ok := config.(*HookOptions)
	if !ok || opt == nil || opt.Resolver == nil || opt.Gateway == nil {
		return mochi.ErrInvalidConfigType
	}
	h.resolver = opt.Resolver
	h.gateway = opt.Gateway
	return nil
}

func (h *DeviceHook) OnConnectAuthenticate(cl *mochi.Client, pk packets.Packet) bool {
	token := string(pk.Connect.Username)
	if token == "" {
		return false
	}
	_, err := h.resolver.ResolveDeviceToken(token)
	return err == nil
}

// OnACLCheck lets a device publish only to its inbound topic and
// subscribe only to its outbound topic.
func (h *DeviceHook) OnACLCheck(cl *mochi.Client, topic string, write bool) bool {
	if cl.Net.Inline {
		return true
	}
	token := string(cl.Properties.Username)
	if token == "" {
		return false
	}
	if write {
		return topic == InTopic(token)
	}
	return topic == OutTopic(token)
}

func (h *DeviceHook) OnSessionEstablished(cl *mochi.Client, pk packets.Packet) {
	token := string(cl.Properties.Username)
	if _, err := h.gateway.Connect(cl.ID, token, cl); err != nil {
		h.Log.Warn("failed to open device link, closing connection", "client", cl.ID, "error", err)
		cl.Stop(err)
	}
}

func (h *DeviceHook) OnDisconnect(cl *mochi.Client, err error, expire bool) {
	h.gateway.Disconnect(cl.ID, cl)
}
