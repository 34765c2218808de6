package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrDeviceNotFound = errors.New("device not found")

// PropertyResult tells a caller of ApplyPinProperty what happened.
type PropertyResult int

const (
	// PropertyInactive means the dashboard was inactive and nothing changed.
	PropertyInactive PropertyResult = iota
	// PropertyApplied means at least one widget was updated.
	PropertyApplied
	// PropertyStored means no widget matched and the value went to the
	// pin property storage.
	PropertyStored
)

func (r PropertyResult) String() string {
	switch r {
	case PropertyInactive:
		return "inactive"
	case PropertyApplied:
		return "applied"
	case PropertyStored:
		return "stored"
	}
	return "unknown"
}

// Dashboard is one user project. Every field below mu is guarded by it,
// including the HardwareInfo and OTA state of the dashboard's devices.
type Dashboard struct {
	ID   int
	Name string

	mu          sync.Mutex
	active      bool
	updatedAt   time.Time
	widgets     []*Widget
	devices     []*Device
	pinsStorage *PinPropertyStorage
	now         func() time.Time
}

func NewDashboard(id int, name string) *Dashboard {
	return &Dashboard{
		ID:          id,
		Name:        name,
		pinsStorage: NewPinPropertyStorage(),
		now:         time.Now,
	}
}

// SetClock replaces the time source used for updatedAt.
func (d *Dashboard) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

func (d *Dashboard) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dashboard) Activate() {
	d.setActive(true)
}

func (d *Dashboard) Deactivate() {
	d.setActive(false)
}

func (d *Dashboard) setActive(active bool) {
	d.mu.Lock()
	d.active = active
	d.updatedAt = d.now()
	d.mu.Unlock()
}

func (d *Dashboard) UpdatedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updatedAt
}

// Touch marks the dashboard as modified now.
func (d *Dashboard) Touch() {
	d.mu.Lock()
	d.updatedAt = d.now()
	d.mu.Unlock()
}

// ApplyPinProperty sets a hardware-originated property on every widget
// bound to (deviceID, pin, VIRTUAL). Either all matching widgets are
// updated or none are. With no matching widget the raw value is kept in
// the pin property storage instead.
//
// commit, when not nil, runs under the dashboard lock after a
// successful change, so anything it emits is ordered the same way as
// the mutations themselves. It must not block.
func (d *Dashboard) ApplyPinProperty(deviceID int, pin uint8, p Property, value string, commit func()) (PropertyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return PropertyInactive, nil
	}
	if p.AppOnly() {
		return PropertyInactive, fmt.Errorf("%w: %s is app only", ErrUnsupportedProperty, p)
	}

	var matched, updated []*Widget
	for _, w := range d.widgets {
		if !w.IsSame(deviceID, pin, PinVirtual) {
			continue
		}
		c := w.Clone()
		if err := c.SetProperty(p, value); err != nil {
			return PropertyInactive, fmt.Errorf("widget %d: %w", w.ID, err)
		}
		matched = append(matched, w)
		updated = append(updated, c)
	}

	result := PropertyApplied
	if len(matched) == 0 {
		d.pinsStorage.Put(PinPropertyKey{DeviceID: deviceID, PinType: PinVirtual, Pin: pin, Property: p}, value)
		result = PropertyStored
	}
	for i, w := range matched {
		*w = *updated[i]
	}
	d.updatedAt = d.now()

	if commit != nil {
		commit()
	}
	return result, nil
}

// SetWidgetProperty is the app-side property update, addressed by
// widget id. Layout properties are allowed and the dashboard does not
// need to be active.
func (d *Dashboard) SetWidgetProperty(widgetID int64, p Property, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.widgetLocked(widgetID)
	if w == nil {
		return fmt.Errorf("%w: %d", ErrWidgetNotFound, widgetID)
	}
	c := w.Clone()
	if err := c.SetAppProperty(p, value); err != nil {
		return err
	}
	*w = *c
	d.updatedAt = d.now()
	return nil
}

// PinProperty reads a value from the pin property storage.
func (d *Dashboard) PinProperty(deviceID int, pinType PinType, pin uint8, p Property) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pinsStorage.Get(PinPropertyKey{DeviceID: deviceID, PinType: pinType, Pin: pin, Property: p})
}

// AddWidget copies w into the dashboard. It does not consult the pin
// property storage: values stored for w's pin stay where they are.
func (d *Dashboard) AddWidget(w Widget) error {
	if err := w.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.widgetLocked(w.ID) != nil {
		return fmt.Errorf("%w: %d", ErrWidgetExists, w.ID)
	}
	d.widgets = append(d.widgets, w.Clone())
	d.updatedAt = d.now()
	return nil
}

// UpdateWidget replaces the widget with the same id. Like AddWidget it
// never restores stored pin properties.
func (d *Dashboard) UpdateWidget(w Widget) error {
	if err := w.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	existing := d.widgetLocked(w.ID)
	if existing == nil {
		return fmt.Errorf("%w: %d", ErrWidgetNotFound, w.ID)
	}
	*existing = *w.Clone()
	d.updatedAt = d.now()
	return nil
}

func (d *Dashboard) DeleteWidget(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, w := range d.widgets {
		if w.ID == id {
			d.widgets = append(d.widgets[:i], d.widgets[i+1:]...)
			d.updatedAt = d.now()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrWidgetNotFound, id)
}

// Widget returns a copy of the widget with the given id.
func (d *Dashboard) Widget(id int64) (Widget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w := d.widgetLocked(id); w != nil {
		return *w.Clone(), true
	}
	return Widget{}, false
}

// WidgetByKind returns a copy of the first widget of kind k.
func (d *Dashboard) WidgetByKind(k Kind) (Widget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.widgets {
		if w.Type == k {
			return *w.Clone(), true
		}
	}
	return Widget{}, false
}

func (d *Dashboard) widgetLocked(id int64) *Widget {
	for _, w := range d.widgets {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// AddDevice attaches a device. The dashboard takes ownership of dev.
func (d *Dashboard) AddDevice(dev *Device) {
	d.mu.Lock()
	d.devices = append(d.devices, dev)
	d.mu.Unlock()
}

func (d *Dashboard) Device(id int) (*Device, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dev := range d.devices {
		if dev.ID == id {
			return dev, true
		}
	}
	return nil, false
}

// RemoveDevice detaches a device and drops the pin properties stored
// for it. Widgets bound to the device stay.
func (d *Dashboard) RemoveDevice(id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, dev := range d.devices {
		if dev.ID == id {
			d.devices = append(d.devices[:i], d.devices[i+1:]...)
			d.pinsStorage.RemoveDevice(id)
			d.updatedAt = d.now()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
}

// RecordHardwareInfo stores what the device reported and marks the
// dashboard as modified.
func (d *Dashboard) RecordHardwareInfo(dev *Device, info HardwareInfo) {
	d.mu.Lock()
	dev.HardwareInfo = &info
	d.updatedAt = d.now()
	d.mu.Unlock()
}

// UpdateDeviceOTA runs fn on the device's OTA record under the
// dashboard lock. fn receives nil when no update was ever initiated and
// may return a replacement record.
func (d *Dashboard) UpdateDeviceOTA(dev *Device, fn func(ota *OTAInfo) *OTAInfo) {
	d.mu.Lock()
	dev.OTA = fn(dev.OTA)
	d.mu.Unlock()
}

// Snapshot is a point-in-time copy of a dashboard, safe to serialize.
type Snapshot struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	IsActive    bool              `json:"isActive"`
	UpdatedAt   int64             `json:"updatedAt"`
	Widgets     []Widget          `json:"widgets"`
	Devices     []Device          `json:"devices"`
	PinsStorage map[string]string `json:"pinsStorage"`
}

func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		ID:          d.ID,
		Name:        d.Name,
		IsActive:    d.active,
		Widgets:     make([]Widget, 0, len(d.widgets)),
		Devices:     make([]Device, 0, len(d.devices)),
		PinsStorage: d.pinsStorage.Snapshot(),
	}
	if !d.updatedAt.IsZero() {
		s.UpdatedAt = d.updatedAt.UnixMilli()
	}
	for _, w := range d.widgets {
		s.Widgets = append(s.Widgets, *w.Clone())
	}
	for _, dev := range d.devices {
		s.Devices = append(s.Devices, dev.clone())
	}
	return s
}
