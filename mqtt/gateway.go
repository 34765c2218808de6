package mqtt

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/ilievs/pinhub/hardware"
	"github.com/ilievs/pinhub/protocol"
	"github.com/ilievs/pinhub/session"
	"github.com/ilievs/pinhub/store"
)

var ErrUnknownLink = errors.New("no link for client")

// TokenResolver finds the device a token belongs to.
type TokenResolver interface {
	ResolveDeviceToken(token string) (store.DeviceRef, error)
}

// Dispatcher handles frames from a logged-in device.
type Dispatcher interface {
	Dispatch(state *hardware.State, msg protocol.Frame)
}

// Gateway connects MQTT clients to the hardware handlers: one
// DeviceLink per connected client, registered in the user's session.
type Gateway struct {
	resolver   TokenResolver
	sessions   *session.Registry
	dispatcher Dispatcher
	pub        Publisher
	cfg        LinkConfig
	log        *slog.Logger

	mu    sync.Mutex
	links map[string]*linkEntry
	wg    sync.WaitGroup
}

type linkEntry struct {
	link  *DeviceLink
	state *hardware.State
}

func NewGateway(resolver TokenResolver, sessions *session.Registry, dispatcher Dispatcher, pub Publisher, cfg LinkConfig, log *slog.Logger) *Gateway {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	return &Gateway{
		resolver:   resolver,
		sessions:   sessions,
		dispatcher: dispatcher,
		pub:        pub,
		cfg:        cfg,
		log:        log,
		links:      make(map[string]*linkEntry),
	}
}

// Connect opens a link for an authenticated client. A link already open
// under the same client id is replaced.
func (g *Gateway) Connect(clientID, token string, client Stopper) (*DeviceLink, error) {
	ref, err := g.resolver.ResolveDeviceToken(token)
	if err != nil {
		return nil, err
	}

	link := newDeviceLink(clientID, token, client, g.pub, g.cfg, g.log)
	state := &hardware.State{UserKey: ref.User, Dash: ref.Dash, Device: ref.Device, Conn: link}

	g.mu.Lock()
	old := g.links[clientID]
	g.links[clientID] = &linkEntry{link: link, state: state}
	g.mu.Unlock()

	if old != nil {
		g.release(old)
	}

	g.sessions.GetOrCreate(ref.User).AddDevice(link, ref.Device.ID)
	link.run(&g.wg, state, g.dispatcher.Dispatch, g.cfg.CheckInterval)
	metricLinks.Inc()

	g.log.Info("device connected", "client", clientID, "user", ref.User,
		"dash", ref.Dash.ID, "device", ref.Device.ID)
	return link, nil
}

// Disconnect closes the link of client. A link that has already been
// replaced by a newer connection with the same id is left alone.
func (g *Gateway) Disconnect(clientID string, client Stopper) {
	g.mu.Lock()
	e, ok := g.links[clientID]
	if !ok || e.link.client != client {
		g.mu.Unlock()
		return
	}
	delete(g.links, clientID)
	g.mu.Unlock()

	g.release(e)
	g.log.Info("device disconnected", "client", clientID, "user", e.state.UserKey)
}

func (g *Gateway) release(e *linkEntry) {
	e.link.close()
	if s, ok := g.sessions.Get(e.state.UserKey); ok {
		s.RemoveDevice(e.link)
	}
	metricLinks.Dec()
}

// HandleInbound decodes a payload that client published under token
// and queues it on the client's link.
func (g *Gateway) HandleInbound(clientID, token string, payload []byte) error {
	g.mu.Lock()
	e, ok := g.links[clientID]
	g.mu.Unlock()
	if !ok || e.link.token != token {
		metricFramesIn.WithLabelValues("unknown_link").Inc()
		return ErrUnknownLink
	}

	f, err := protocol.Decode(payload)
	if err != nil {
		metricFramesIn.WithLabelValues("malformed").Inc()
		g.log.Debug("malformed frame from device", "client", clientID, "error", err)
		return err
	}
	e.link.deliver(f)
	return nil
}

// Attach subscribes the gateway to every device inbound topic.
func (g *Gateway) Attach(broker *MochiBroker) (int, error) {
	return broker.Subscribe(InboundFilter, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		// Origin is the id of the publishing client.
		token, ok := TokenFromTopic(pk.TopicName)
		if !ok || pk.Origin == "" {
			return
		}
		_ = g.HandleInbound(pk.Origin, token, pk.Payload)
	})
}

func (g *Gateway) LinkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.links)
}

// Close drops every link and waits for their goroutines.
func (g *Gateway) Close() {
	g.mu.Lock()
	entries := make([]*linkEntry, 0, len(g.links))
	for id, e := range g.links {
		entries = append(entries, e)
		delete(g.links, id)
	}
	g.mu.Unlock()

	for _, e := range entries {
		g.release(e)
	}
	g.wg.Wait()
}
