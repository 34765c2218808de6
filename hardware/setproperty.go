package hardware

import (
	"log/slog"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/protocol"
	"github.com/ilievs/pinhub/session"
)

// SetWidgetPropertyLogic lets hardware change widget properties with
// bodies of the form "<pin> <property> <value>".
type SetWidgetPropertyLogic struct {
	sessions *session.Registry
	log      *slog.Logger
}

func NewSetWidgetPropertyLogic(sessions *session.Registry, log *slog.Logger) *SetWidgetPropertyLogic {
	return &SetWidgetPropertyLogic{sessions: sessions, log: log}
}

func (l *SetWidgetPropertyLogic) MessageReceived(state *State, msg protocol.Frame) {
	parts := protocol.Split3(msg.Body)
	if len(parts) != 3 || parts[0] == "" || state.Device == nil {
		l.log.Debug("setProperty command body has wrong format", "body", msg.Body)
		respond(state, msg, protocol.IllegalCommand)
		return
	}

	property, value := parts[1], parts[2]
	if property == "" || value == "" {
		l.log.Debug("setProperty command body has wrong format", "body", msg.Body)
		respond(state, msg, protocol.IllegalCommandBody)
		return
	}

	dash := state.Dash
	if !dash.IsActive() {
		observe(msg.Command, resultDropped)
		return
	}

	p, err := core.LookupProperty(property)
	if err != nil || p.AppOnly() {
		l.log.Debug("unsupported set property", "property", property)
		respond(state, msg, protocol.IllegalCommandBody)
		return
	}

	pin, err := core.ParsePin(parts[0])
	if err != nil {
		l.log.Debug("setProperty with bad pin", "error", err)
		respond(state, msg, protocol.IllegalCommandBody)
		return
	}

	deviceID := state.Device.ID
	result, err := dash.ApplyPinProperty(deviceID, pin, p, value, func() {
		respond(state, msg, protocol.OK)
		if s, ok := l.sessions.Get(state.UserKey); ok {
			s.SendToApps(protocol.SetWidgetProperty, dash.ID, deviceID, msg.Body)
		}
	})
	if err != nil {
		l.log.Debug("error setting widget property", "pin", pin, "property", p, "error", err)
		respond(state, msg, protocol.IllegalCommandBody)
		return
	}
	if result == core.PropertyInactive {
		// deactivated after the first check
		observe(msg.Command, resultDropped)
		return
	}
	l.log.Debug("widget property set", "user", state.UserKey, "dash", dash.ID,
		"device", deviceID, "pin", pin, "property", p, "result", result)
}
