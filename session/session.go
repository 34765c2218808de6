package session

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/protocol"
)

// Conn is one live connection as seen by the registry. Send must not
// block: it returns false when the frame was dropped because the
// connection is closed or backed up.
type Conn interface {
	ID() string
	Send(f protocol.Frame) bool
}

type deviceEntry struct {
	conn     Conn
	deviceID int
}

type appEntry struct {
	conn Conn
	seq  atomic.Uint32
}

// nextID returns the next message id for this app connection. Ids wrap
// at 16 bits and skip 0.
func (a *appEntry) nextID() uint16 {
	for {
		if id := uint16(a.seq.Add(1)); id != 0 {
			return id
		}
	}
}

// Session holds the live device and app connections of one user.
type Session struct {
	Key core.UserKey

	mu      sync.RWMutex
	devices map[string]deviceEntry
	apps    map[string]*appEntry
}

func newSession(key core.UserKey) *Session {
	return &Session{
		Key:     key,
		devices: make(map[string]deviceEntry),
		apps:    make(map[string]*appEntry),
	}
}

func (s *Session) AddDevice(c Conn, deviceID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[c.ID()]; !ok {
		metricDevices.Inc()
	}
	s.devices[c.ID()] = deviceEntry{conn: c, deviceID: deviceID}
}

func (s *Session) RemoveDevice(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[c.ID()]; ok {
		delete(s.devices, c.ID())
		metricDevices.Dec()
	}
}

func (s *Session) AddApp(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[c.ID()]; !ok {
		metricApps.Inc()
	}
	s.apps[c.ID()] = &appEntry{conn: c}
}

func (s *Session) RemoveApp(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[c.ID()]; ok {
		delete(s.apps, c.ID())
		metricApps.Dec()
	}
}

func (s *Session) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func (s *Session) AppCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps)
}

// IsDeviceOnline reports whether any connection of the device is live.
func (s *Session) IsDeviceOnline(deviceID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.deviceID == deviceID {
			return true
		}
	}
	return false
}

// SendToApps delivers body to every app connection of the session,
// prefixed with "<dashID>-<deviceID>". Each app gets the next id of its
// own sequence. Connections that are closed or full are skipped. It
// returns how many apps accepted the frame.
func (s *Session) SendToApps(cmd protocol.Command, dashID, deviceID int, body string) int {
	s.mu.RLock()
	apps := make([]*appEntry, 0, len(s.apps))
	for _, a := range s.apps {
		apps = append(apps, a)
	}
	s.mu.RUnlock()

	if len(apps) == 0 {
		return 0
	}
	target := strconv.Itoa(dashID) + "-" + strconv.Itoa(deviceID)
	payload := protocol.Join(target, body)

	sent := 0
	for _, a := range apps {
		if a.conn.Send(protocol.StringMessage(cmd, a.nextID(), payload)) {
			sent++
			continue
		}
		metricFanoutDropped.Inc()
	}
	metricFanoutSent.Add(float64(sent))
	return sent
}
