package hardware

import (
	"time"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/protocol"
)

// DeviceConn is the outbound side of a hardware connection.
type DeviceConn interface {
	// Send queues f without blocking and reports whether it was accepted.
	Send(f protocol.Frame) bool
	// Writable is false while the outbound path is backed up.
	Writable() bool
	// SetIdleTimeout swaps the read-idle timeout of a live connection.
	SetIdleTimeout(d time.Duration)
}

// State is what a hardware connection knows about itself once it has
// logged in.
type State struct {
	UserKey core.UserKey
	Dash    *core.Dashboard
	Device  *core.Device
	Conn    DeviceConn
}

// OTATrigger decides whether a device that just reported its hardware
// info should be offered new firmware. Implementations must return
// without waiting on the device.
type OTATrigger interface {
	InitiateHardwareUpdate(conn DeviceConn, userKey core.UserKey, info core.HardwareInfo, dash *core.Dashboard, device *core.Device)
}
