package mqtt

import (
	"context"
	"fmt"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// MochiBroker owns the embedded MQTT server devices connect to.
type MochiBroker struct {
	server              *mochi.Server
	address             string
	subscriberIdCounter int
	subscriberMutex     sync.Mutex
}

func NewMochiBroker(server *mochi.Server, address string) *MochiBroker {
	return &MochiBroker{
		server:              server,
		address:             address,
		subscriberIdCounter: 1,
	}
}

// Start registers hooks, each with the config at the same index, and
// the TCP listener. Serving begins with Run.
func (m *MochiBroker) Start(hooks []mochi.Hook, hookConfigs []any) error {
	if len(hooks) != len(hookConfigs) {
		return fmt.Errorf("got %d hooks but %d hook configs", len(hooks), len(hookConfigs))
	}
	for i, hook := range hooks {
		if err := m.server.AddHook(hook, hookConfigs[i]); err != nil {
			return fmt.Errorf("adding hook %s: %w", hook.ID(), err)
		}
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "devices", Address: m.address})
	if err := m.server.AddListener(tcp); err != nil {
		return fmt.Errorf("adding listener on %s: %w", m.address, err)
	}
	return nil
}

// Run serves until ctx is cancelled, then closes the server and every
// client connection.
func (m *MochiBroker) Run(ctx context.Context) error {
	if err := m.server.Serve(); err != nil {
		return err
	}
	<-ctx.Done()
	return m.server.Close()
}

// Subscribe attaches an inline handler to topicFilter and returns the
// subscription id.
func (m *MochiBroker) Subscribe(topicFilter string,
	callbackFn func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet)) (int, error) {

	m.subscriberMutex.Lock()
	defer m.subscriberMutex.Unlock()
	id := m.subscriberIdCounter
	if err := m.server.Subscribe(topicFilter, id, callbackFn); err != nil {
		return 0, err
	}

	m.subscriberIdCounter++
	return id, nil
}
