package hardware

import (
	"log/slog"

	"github.com/ilievs/pinhub/protocol"
)

// Dispatcher routes frames from a logged-in hardware connection to the
// handler for their command.
type Dispatcher struct {
	setProperty *SetWidgetPropertyLogic
	internal    *InternalLogic
	log         *slog.Logger
}

func NewDispatcher(setProperty *SetWidgetPropertyLogic, internal *InternalLogic, log *slog.Logger) *Dispatcher {
	return &Dispatcher{setProperty: setProperty, internal: internal, log: log}
}

// Dispatch handles one frame. It never fails: every problem turns into
// a response code, or into silence where the protocol wants that.
func (d *Dispatcher) Dispatch(state *State, msg protocol.Frame) {
	conn := &answerTracker{DeviceConn: state.Conn, id: msg.ID}
	tracked := *state
	tracked.Conn = conn
	state = &tracked

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("hardware handler panicked", "user", state.UserKey, "frame", msg, "panic", r)
			if !conn.answered {
				respond(state, msg, protocol.IllegalCommandBody)
			}
		}
	}()

	switch msg.Command {
	case protocol.Response:
		// acks for frames the server pushed, such as ota requests
		observe(msg.Command, resultIgnored)
	case protocol.SetWidgetProperty:
		d.setProperty.MessageReceived(state, msg)
	case protocol.BlynkInternal:
		d.internal.MessageReceived(state, msg)
	case protocol.Ping:
		respond(state, msg, protocol.OK)
	default:
		d.log.Debug("unsupported hardware command", "frame", msg)
		respond(state, msg, protocol.IllegalCommand)
	}
}

// answerTracker notes whether a response to id was already sent, so a
// handler that panics after answering is not answered twice.
type answerTracker struct {
	DeviceConn
	id       uint16
	answered bool
}

func (c *answerTracker) Send(f protocol.Frame) bool {
	if f.Command == protocol.Response && f.ID == c.id {
		c.answered = true
	}
	return c.DeviceConn.Send(f)
}
