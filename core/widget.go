package core

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrInvalidWidget  = errors.New("invalid widget")
	ErrWidgetNotFound = errors.New("widget not found")
	ErrWidgetExists   = errors.New("widget already exists")
)

// Kind is the variant tag of a widget.
type Kind string

const (
	KindSlider           Kind = "SLIDER"
	KindVerticalSlider   Kind = "VERTICAL_SLIDER"
	KindStep             Kind = "STEP"
	KindVerticalStep     Kind = "VERTICAL_STEP"
	KindGauge            Kind = "GAUGE"
	KindDigit4Display    Kind = "DIGIT4_DISPLAY"
	KindLevelDisplay     Kind = "LEVEL_DISPLAY"
	KindButton           Kind = "BUTTON"
	KindStyledButton     Kind = "STYLED_BUTTON"
	KindPlayer           Kind = "PLAYER"
	KindMenu             Kind = "MENU"
	KindSegmentedControl Kind = "SEGMENTED_CONTROL"
	KindVideo            Kind = "VIDEO"
	KindImage            Kind = "IMAGE"
	KindRTC              Kind = "RTC"
	KindTerminal         Kind = "TERMINAL"
	KindLabel            Kind = "LABEL"
)

var kinds = []Kind{
	KindSlider, KindVerticalSlider, KindStep, KindVerticalStep, KindGauge,
	KindDigit4Display, KindLevelDisplay, KindButton, KindStyledButton,
	KindPlayer, KindMenu, KindSegmentedControl, KindVideo, KindImage,
	KindRTC, KindTerminal, KindLabel,
}

func (k Kind) Valid() bool {
	return slices.Contains(kinds, k)
}

// HasRange reports whether the variant carries min/max bounds.
func (k Kind) HasRange() bool {
	switch k {
	case KindSlider, KindVerticalSlider, KindStep, KindVerticalStep,
		KindGauge, KindDigit4Display, KindLevelDisplay:
		return true
	}
	return false
}

func (k Kind) HasStep() bool {
	return k == KindStep || k == KindVerticalStep
}

func (k Kind) HasOnOffLabels() bool {
	return k == KindButton || k == KindStyledButton
}

func (k Kind) HasPlayState() bool {
	return k == KindPlayer
}

func (k Kind) HasLabels() bool {
	return k == KindMenu || k == KindSegmentedControl
}

// HasURL reports whether the variant accepts the url property, either
// as a single URL or as one slot of its URL list.
func (k Kind) HasURL() bool {
	return k == KindVideo || k == KindImage
}

func (k Kind) HasURLs() bool {
	return k == KindImage
}

func (k Kind) HasOpacity() bool {
	return k == KindImage
}

// Widget is a dashboard UI element. Common fields apply to every kind;
// the variant fields below them are only meaningful for kinds whose
// capability predicate allows them.
type Widget struct {
	ID     int64  `json:"id" yaml:"id"`
	Type   Kind   `json:"type" yaml:"type"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Color  int32  `json:"color,omitempty" yaml:"color,omitempty"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	TabID  int    `json:"tabId" yaml:"tabId"`

	DeviceID int     `json:"deviceId" yaml:"deviceId"`
	Pin      uint8   `json:"pin" yaml:"pin"`
	PinType  PinType `json:"pinType,omitempty" yaml:"pinType,omitempty"`

	Min      float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max      float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Step     float64  `json:"step,omitempty" yaml:"step,omitempty"`
	OnLabel  string   `json:"onLabel,omitempty" yaml:"onLabel,omitempty"`
	OffLabel string   `json:"offLabel,omitempty" yaml:"offLabel,omitempty"`
	IsOnPlay bool     `json:"isOnPlay,omitempty" yaml:"isOnPlay,omitempty"`
	Labels   []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	URLs     []string `json:"urls,omitempty" yaml:"urls,omitempty"`
	Opacity  float64  `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	TzName   string   `json:"tzName,omitempty" yaml:"tzName,omitempty"`
}

func (w *Widget) Clone() *Widget {
	c := *w
	c.Labels = slices.Clone(w.Labels)
	c.URLs = slices.Clone(w.URLs)
	return &c
}

// IsSame reports whether the widget is bound to the given address.
// Several widgets may share one address.
func (w *Widget) IsSame(deviceID int, pin uint8, pinType PinType) bool {
	return w.PinType == pinType && w.Pin == pin && w.DeviceID == deviceID
}

func (w *Widget) Validate() error {
	if !w.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidWidget, w.Type)
	}
	if w.PinType != "" && !w.PinType.Valid() {
		return fmt.Errorf("%w: unknown pin type %q", ErrInvalidWidget, w.PinType)
	}
	if w.Pin > MaxPin {
		return fmt.Errorf("%w: pin %d out of range", ErrInvalidWidget, w.Pin)
	}
	if w.Opacity < 0 || w.Opacity > 1 {
		return fmt.Errorf("%w: opacity %v", ErrInvalidWidget, w.Opacity)
	}
	return nil
}
