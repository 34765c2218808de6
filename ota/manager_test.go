package ota

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/protocol"
)

var errNoDashboard = errors.New("no dashboard")

type dashboards map[core.UserKey]*core.Dashboard

func (d dashboards) Dashboard(user core.UserKey, dashID int) (*core.Dashboard, error) {
	dash, ok := d[user]
	if !ok || dash.ID != dashID {
		return nil, errNoDashboard
	}
	return dash, nil
}

type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Frame
	full   bool
}

func (c *fakeConn) Send(f protocol.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *fakeConn) Writable() bool { return !c.full }
func (c *fakeConn) SetIdleTimeout(time.Duration) {}

func (c *fakeConn) received() []protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Frame(nil), c.frames...)
}

func setup(t *testing.T) (*Manager, *core.Dashboard, *core.Device) {
	t.Helper()
	dash := core.NewDashboard(1, "home")
	device := &core.Device{ID: 0, Name: "esp"}
	dash.AddDevice(device)
	m := NewManager(dashboards{"alice": dash}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return m, dash, device
}

func otaState(dash *core.Dashboard) *core.OTAInfo {
	return dash.Snapshot().Devices[0].OTA
}

func TestInitiate(t *testing.T) {
	m, dash, _ := setup(t)

	info, err := m.Initiate("alice", 1, 0, "http://fw/1.bin", "b2")
	require.NoError(t, err)
	assert.Equal(t, core.OTAStarted, info.Status)
	require.NotNil(t, otaState(dash))
	assert.Equal(t, "http://fw/1.bin", otaState(dash).URL)

	_, err = m.Initiate("alice", 1, 7, "http://fw/1.bin", "b2")
	assert.ErrorIs(t, err, core.ErrDeviceNotFound)

	_, err = m.Initiate("bob", 1, 0, "http://fw/1.bin", "b2")
	assert.ErrorIs(t, err, errNoDashboard)

	_, err = m.Initiate("alice", 1, 0, "", "b2")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHardwareUpdateSendsRequest(t *testing.T) {
	m, dash, device := setup(t)
	_, err := m.Initiate("alice", 1, 0, "http://fw/1.bin", "b2")
	require.NoError(t, err)

	conn := &fakeConn{}
	m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: "b1"}, dash, device)

	assert.Eventually(t, func() bool {
		return len(conn.received()) == 1
	}, time.Second, 5*time.Millisecond)
	m.Wait()

	assert.Equal(t, protocol.StringMessage(protocol.BlynkInternal, 1, "ota http://fw/1.bin"), conn.received()[0])
	assert.Equal(t, core.OTARequestSent, otaState(dash).Status)

	m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: "b2"}, dash, device)
	m.Wait()
	assert.Equal(t, core.OTASuccess, otaState(dash).Status)
	assert.Len(t, conn.received(), 1)

	m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: "b1"}, dash, device)
	m.Wait()
	assert.Equal(t, core.OTASuccess, otaState(dash).Status)
	assert.Len(t, conn.received(), 1)
}

func TestHardwareUpdateResendsOnlyOnNewBuild(t *testing.T) {
	m, dash, device := setup(t)
	_, err := m.Initiate("alice", 1, 0, "http://fw/1.bin", "b2")
	require.NoError(t, err)

	conn := &fakeConn{}
	heartbeat := func(build string) {
		m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: build}, dash, device)
		m.Wait()
	}

	heartbeat("b1")
	heartbeat("b1")
	heartbeat("b1")
	assert.Len(t, conn.received(), 1)
	assert.Equal(t, core.OTARequestSent, otaState(dash).Status)
	assert.Equal(t, 1, otaState(dash).Attempts)

	heartbeat("b0")
	heartbeat("b1")
	assert.Len(t, conn.received(), 3)
	assert.Equal(t, 3, otaState(dash).Attempts)

	heartbeat("b0")
	assert.Len(t, conn.received(), 3)
	assert.Equal(t, core.OTAFailure, otaState(dash).Status)

	heartbeat("b1")
	heartbeat("b2")
	assert.Len(t, conn.received(), 3)
	assert.Equal(t, core.OTAFailure, otaState(dash).Status)
}

func TestHardwareUpdateWithoutPendingUpdate(t *testing.T) {
	m, dash, device := setup(t)
	conn := &fakeConn{}
	m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: "b1"}, dash, device)
	m.Wait()
	assert.Empty(t, conn.received())
	assert.Nil(t, otaState(dash))
}

func TestHardwareUpdateDropped(t *testing.T) {
	m, dash, device := setup(t)
	_, err := m.Initiate("alice", 1, 0, "http://fw/1.bin", "b2")
	require.NoError(t, err)

	conn := &fakeConn{full: true}
	m.InitiateHardwareUpdate(conn, "alice", core.HardwareInfo{Build: "b1"}, dash, device)
	m.Wait()
	assert.Equal(t, core.OTAStarted, otaState(dash).Status)
}

func TestNextIDSkipsZero(t *testing.T) {
	m, _, _ := setup(t)
	m.seq.Store(0xFFFF)
	assert.Equal(t, uint16(1), m.nextID())
}
