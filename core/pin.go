package core

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidPin = errors.New("invalid pin")

// MaxPin is the highest pin number hardware can address.
const MaxPin = 127

type PinType string

const (
	PinVirtual PinType = "VIRTUAL"
	PinDigital PinType = "DIGITAL"
	PinAnalog  PinType = "ANALOG"
)

// Short returns the one-letter form used in storage keys.
func (t PinType) Short() string {
	switch t {
	case PinVirtual:
		return "v"
	case PinDigital:
		return "d"
	case PinAnalog:
		return "a"
	}
	return "?"
}

func (t PinType) Valid() bool {
	return t == PinVirtual || t == PinDigital || t == PinAnalog
}

// ParsePin reads a pin number as sent by hardware. Pins share the
// signed-byte range of the device libraries, so 0..127.
func ParsePin(s string) (uint8, error) {
	v, err := strconv.ParseInt(s, 10, 8)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, s)
	}
	return uint8(v), nil
}
