package core

import "fmt"

// PinPropertyKey addresses one property of one pin.
type PinPropertyKey struct {
	DeviceID int
	PinType  PinType
	Pin      uint8
	Property Property
}

func (k PinPropertyKey) String() string {
	return fmt.Sprintf("%d-%s%d-%s", k.DeviceID, k.PinType.Short(), k.Pin, k.Property)
}

// PinPropertyStorage holds property values sent for pins that had no
// widget at the time. It is not safe for concurrent use; the owning
// Dashboard guards it.
type PinPropertyStorage struct {
	values map[PinPropertyKey]string
}

func NewPinPropertyStorage() *PinPropertyStorage {
	return &PinPropertyStorage{values: make(map[PinPropertyKey]string)}
}

func (s *PinPropertyStorage) Put(key PinPropertyKey, value string) {
	s.values[key] = value
}

func (s *PinPropertyStorage) Get(key PinPropertyKey) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *PinPropertyStorage) Len() int {
	return len(s.values)
}

// RemoveDevice drops every value stored for the device.
func (s *PinPropertyStorage) RemoveDevice(deviceID int) {
	for k := range s.values {
		if k.DeviceID == deviceID {
			delete(s.values, k)
		}
	}
}

// Snapshot returns the values keyed by their string form.
func (s *PinPropertyStorage) Snapshot() map[string]string {
	out := make(map[string]string, s.Len())
	for k, v := range s.values {
		out[k.String()] = v
	}
	return out
}
