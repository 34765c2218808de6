package ota

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/hardware"
	"github.com/ilievs/pinhub/protocol"
)

var ErrInvalidRequest = errors.New("invalid ota request")

// maxAttempts is how many ota requests a device gets before the update
// is marked failed.
const maxAttempts = 3

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pinhub",
	Name:      "ota_requests_total",
	Help:      "OTA requests sent to hardware, by outcome.",
}, []string{"result"})

// Dashboards finds a user's dashboard.
type Dashboards interface {
	Dashboard(user core.UserKey, dashID int) (*core.Dashboard, error)
}

// Manager keeps track of firmware updates started by a user and offers
// them to hardware when it reports its build.
type Manager struct {
	dashboards Dashboards
	log        *slog.Logger
	now        func() time.Time

	seq atomic.Uint32
	wg  sync.WaitGroup
}

func NewManager(dashboards Dashboards, log *slog.Logger) *Manager {
	return &Manager{
		dashboards: dashboards,
		log:        log,
		now:        time.Now,
	}
}

// Initiate marks a firmware update as started for a device. The device
// is told about it the next time it reports its hardware info.
func (m *Manager) Initiate(user core.UserKey, dashID, deviceID int, url, build string) (core.OTAInfo, error) {
	if url == "" || build == "" {
		return core.OTAInfo{}, fmt.Errorf("%w: url and build are required", ErrInvalidRequest)
	}
	dash, err := m.dashboards.Dashboard(user, dashID)
	if err != nil {
		return core.OTAInfo{}, err
	}
	device, ok := dash.Device(deviceID)
	if !ok {
		return core.OTAInfo{}, fmt.Errorf("%w: %d", core.ErrDeviceNotFound, deviceID)
	}

	now := m.now()
	info := core.OTAInfo{
		URL:         url,
		Build:       build,
		Status:      core.OTAStarted,
		InitiatedAt: now,
		UpdatedAt:   now,
	}
	dash.UpdateDeviceOTA(device, func(*core.OTAInfo) *core.OTAInfo {
		c := info
		return &c
	})
	dash.Touch()

	m.log.Info("ota initiated", "user", user, "dash", dashID, "device", deviceID, "build", build)
	return info, nil
}

// InitiateHardwareUpdate checks the reported build against a pending
// update in the background and never blocks the caller.
func (m *Manager) InitiateHardwareUpdate(conn hardware.DeviceConn, userKey core.UserKey, info core.HardwareInfo, dash *core.Dashboard, device *core.Device) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.checkBuild(conn, userKey, info, dash, device)
	}()
}

func (m *Manager) checkBuild(conn hardware.DeviceConn, userKey core.UserKey, info core.HardwareInfo, dash *core.Dashboard, device *core.Device) {
	dash.UpdateDeviceOTA(device, func(ota *core.OTAInfo) *core.OTAInfo {
		if ota == nil || ota.Status == core.OTASuccess || ota.Status == core.OTAFailure {
			return ota
		}
		next := *ota
		switch {
		case info.Build != "" && info.Build == ota.Build:
			next.Status = core.OTASuccess
			metricRequests.WithLabelValues("success").Inc()
			m.log.Info("ota finished", "user", userKey, "device", device.ID, "build", info.Build)
		case ota.URL == "":
			return ota
		case ota.Status == core.OTARequestSent && info.Build == ota.Reported:
			// still running the firmware it had when asked, update in progress
			return ota
		case ota.Attempts >= maxAttempts:
			next.Status = core.OTAFailure
			metricRequests.WithLabelValues("failed").Inc()
			m.log.Warn("ota gave up", "user", userKey, "device", device.ID,
				"reported", info.Build, "target", ota.Build, "attempts", ota.Attempts)
		default:
			body := protocol.Join("ota", ota.URL)
			if !conn.Send(protocol.StringMessage(protocol.BlynkInternal, m.nextID(), body)) {
				metricRequests.WithLabelValues("dropped").Inc()
				m.log.Warn("ota request dropped", "user", userKey, "device", device.ID)
				return ota
			}
			next.Status = core.OTARequestSent
			next.Attempts++
			next.Reported = info.Build
			metricRequests.WithLabelValues("sent").Inc()
			m.log.Debug("ota request sent", "user", userKey, "device", device.ID,
				"reported", info.Build, "target", ota.Build)
		}
		next.UpdatedAt = m.now()
		return &next
	})
}

// nextID is the message id for server-initiated frames. It skips 0.
func (m *Manager) nextID() uint16 {
	for {
		if id := uint16(m.seq.Add(1)); id != 0 {
			return id
		}
	}
}

// Wait blocks until every background check has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
