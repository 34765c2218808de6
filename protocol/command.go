package protocol

import "strconv"

// Command is the one-byte command code that opens every frame.
type Command uint8

const (
	Response          Command = 0
	Ping              Command = 6
	BlynkInternal     Command = 17
	SetWidgetProperty Command = 19
	Hardware          Command = 20
)

func (c Command) String() string {
	switch c {
	case Response:
		return "response"
	case Ping:
		return "ping"
	case BlynkInternal:
		return "internal"
	case SetWidgetProperty:
		return "setProperty"
	case Hardware:
		return "hardware"
	}
	return "cmd" + strconv.Itoa(int(c))
}

// Code is the status carried by a Response frame.
type Code uint16

const (
	OK                 Code = 200
	IllegalCommand     Code = 2
	IllegalCommandBody Code = 11
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case IllegalCommand:
		return "ILLEGAL_COMMAND"
	case IllegalCommandBody:
		return "ILLEGAL_COMMAND_BODY"
	}
	return "code" + strconv.Itoa(int(c))
}
