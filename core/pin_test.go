package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePin(t *testing.T) {
	pin, err := ParsePin("17")
	require.NoError(t, err)
	assert.Equal(t, uint8(17), pin)

	pin, err = ParsePin("127")
	require.NoError(t, err)
	assert.Equal(t, uint8(127), pin)

	for _, bad := range []string{"", "128", "-1", "v4", "4.0"} {
		_, err := ParsePin(bad)
		assert.ErrorIs(t, err, ErrInvalidPin, bad)
	}
}

func TestPinPropertyKeyString(t *testing.T) {
	k := PinPropertyKey{DeviceID: 0, PinType: PinVirtual, Pin: 122, Property: PropLabel}
	assert.Equal(t, "0-v122-label", k.String())
}

func TestPinPropertyStorage(t *testing.T) {
	s := NewPinPropertyStorage()
	k1 := PinPropertyKey{DeviceID: 0, PinType: PinVirtual, Pin: 1, Property: PropLabel}
	k2 := PinPropertyKey{DeviceID: 1, PinType: PinVirtual, Pin: 1, Property: PropLabel}
	s.Put(k1, "a")
	s.Put(k1, "b")
	s.Put(k2, "c")
	assert.Equal(t, 2, s.Len())

	v, ok := s.Get(k1)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	s.RemoveDevice(0)
	_, ok = s.Get(k1)
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"1-v1-label": "c"}, s.Snapshot())
}

func TestParseHardwareInfo(t *testing.T) {
	info := ParseHardwareInfo([]string{
		"ver", "0.5.0", "h-beat", "10", "buff-in", "256", "dev", "Arduino",
		"cpu", "ATmega328P", "con", "W5100", "build", "Jan_1_2026", "fw", "1.0.1", "tmpl", "TMPL1", "junk",
	})
	assert.Equal(t, HardwareInfo{
		Version:           "0.5.0",
		FirmwareVersion:   "1.0.1",
		HeartbeatInterval: 10,
		BuffIn:            256,
		BoardType:         "Arduino",
		CPUType:           "ATmega328P",
		ConnectionType:    "W5100",
		Build:             "Jan_1_2026",
		TemplateID:        "TMPL1",
	}, info)

	info = ParseHardwareInfo([]string{"h-beat", "ten"})
	assert.Equal(t, 0, info.HeartbeatInterval)
}
