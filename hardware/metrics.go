package hardware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ilievs/pinhub/protocol"
)

const (
	resultOK                 = "ok"
	resultIllegalCommand     = "illegal_command"
	resultIllegalCommandBody = "illegal_command_body"
	resultDropped            = "dropped"
	resultIgnored            = "ignored"
)

var metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pinhub",
	Name:      "hardware_commands_total",
	Help:      "Hardware commands handled, by command and outcome.",
}, []string{"command", "result"})

func observe(cmd protocol.Command, result string) {
	metricCommands.WithLabelValues(cmd.String(), result).Inc()
}

// respond writes a response frame for msg and records the outcome.
func respond(state *State, msg protocol.Frame, code protocol.Code) {
	state.Conn.Send(protocol.ResponseFrame(msg.ID, code))
	switch code {
	case protocol.OK:
		observe(msg.Command, resultOK)
	case protocol.IllegalCommand:
		observe(msg.Command, resultIllegalCommand)
	default:
		observe(msg.Command, resultIllegalCommandBody)
	}
}
