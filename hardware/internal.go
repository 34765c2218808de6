package hardware

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/protocol"
)

// heartbeatFactor is how many missed heartbeats a device gets before
// its connection counts as idle.
const heartbeatFactor = 2.3

// maxHeartbeatInterval caps the interval a device may report, in
// seconds. The resulting timeout still fits a time.Duration.
const maxHeartbeatInterval = math.MaxInt32

// InternalLogic handles the internal command hardware uses to report
// its info ("ver ... h-beat ...") and to ask for the time ("rtc").
type InternalLogic struct {
	ota                 OTATrigger
	hardwareIdleTimeout time.Duration
	now                 func() time.Time
	log                 *slog.Logger
}

// NewInternalLogic builds the handler. A zero hardwareIdleTimeout means
// idle detection is off and heartbeats never retune it.
func NewInternalLogic(ota OTATrigger, hardwareIdleTimeout time.Duration, log *slog.Logger) *InternalLogic {
	return &InternalLogic{
		ota:                 ota,
		hardwareIdleTimeout: hardwareIdleTimeout,
		now:                 time.Now,
		log:                 log,
	}
}

func (l *InternalLogic) MessageReceived(state *State, msg protocol.Frame) {
	parts := protocol.SplitAll(msg.Body)
	if len(parts) == 0 || parts[0] == "" {
		respond(state, msg, protocol.IllegalCommand)
		return
	}

	switch parts[0][0] {
	case 'v', 'f', 'h', 'b', 'd', 'c', 't':
		l.parseHardwareInfo(state, parts, msg)
	case 'r':
		l.sendRTC(state, msg)
	default:
		// app info and ota acks need no answer
		observe(msg.Command, resultIgnored)
	}
}

func (l *InternalLogic) parseHardwareInfo(state *State, parts []string, msg protocol.Frame) {
	info := core.ParseHardwareInfo(parts)
	interval := info.HeartbeatInterval

	l.log.Debug("info command", "heartbeat", interval)

	if l.hardwareIdleTimeout != 0 && interval > 0 {
		timeout := IdleTimeoutFor(interval)
		l.log.Debug("changing read timeout", "timeout", timeout)
		state.Conn.SetIdleTimeout(timeout)
	}

	if state.Device != nil {
		state.Dash.RecordHardwareInfo(state.Device, info)
		if l.ota != nil {
			l.ota.InitiateHardwareUpdate(state.Conn, state.UserKey, info, state.Dash, state.Device)
		}
	}

	respond(state, msg, protocol.OK)
}

// IdleTimeoutFor returns the read-idle timeout for a device that sends
// a heartbeat every interval seconds. Intervals above
// maxHeartbeatInterval are treated as maxHeartbeatInterval.
func IdleTimeoutFor(interval int) time.Duration {
	if interval <= 0 {
		return 0
	}
	interval = min(interval, maxHeartbeatInterval)
	seconds := math.Ceil(float64(interval) * heartbeatFactor)
	return time.Duration(seconds) * time.Second
}

// sendRTC answers a time request when the dashboard has a clock widget.
// The reply is dropped, not queued, when the device is not keeping up.
func (l *InternalLogic) sendRTC(state *State, msg protocol.Frame) {
	rtc, ok := state.Dash.WidgetByKind(core.KindRTC)
	if !ok || !state.Conn.Writable() {
		observe(msg.Command, resultDropped)
		return
	}
	body := protocol.Join("rtc", strconv.FormatInt(rtcTime(rtc, l.now()), 10))
	state.Conn.Send(protocol.StringMessage(protocol.BlynkInternal, msg.ID, body))
	observe(msg.Command, resultOK)
}

// rtcTime is the epoch second shifted by the widget's zone offset, so
// hardware without zone data can show local time.
func rtcTime(rtc core.Widget, now time.Time) int64 {
	if rtc.TzName == "" {
		return now.Unix()
	}
	loc, err := time.LoadLocation(rtc.TzName)
	if err != nil {
		return now.Unix()
	}
	_, offset := now.In(loc).Zone()
	return now.Unix() + int64(offset)
}
