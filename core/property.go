package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ilievs/pinhub/protocol"
)

var (
	ErrUnknownProperty     = errors.New("unknown property")
	ErrUnsupportedProperty = errors.New("property not supported by widget")
	ErrInvalidValue        = errors.New("invalid property value")
)

// Property is a widget property name as it appears on the wire.
type Property string

const (
	PropLabel    Property = "label"
	PropColor    Property = "color"
	PropMin      Property = "min"
	PropMax      Property = "max"
	PropStep     Property = "step"
	PropOnLabel  Property = "onLabel"
	PropOffLabel Property = "offLabel"
	PropIsOnPlay Property = "isOnPlay"
	PropLabels   Property = "labels"
	PropURL      Property = "url"
	PropURLs     Property = "urls"
	PropOpacity  Property = "opacity"
	PropX        Property = "x"
	PropY        Property = "y"
	PropWidth    Property = "width"
	PropHeight   Property = "height"
)

type propertyRule struct {
	// appOnly properties can never be set from hardware.
	appOnly bool
	// supports is nil for properties every kind accepts.
	supports func(Kind) bool
	apply    func(w *Widget, value string) error
}

var propertyRules = map[Property]propertyRule{
	PropLabel: {apply: func(w *Widget, v string) error {
		if v == "" {
			return fmt.Errorf("%w: empty label", ErrInvalidValue)
		}
		w.Label = v
		return nil
	}},
	PropColor: {apply: func(w *Widget, v string) error {
		c, err := ParseColor(v)
		if err != nil {
			return err
		}
		w.Color = c
		return nil
	}},
	PropMin: {supports: Kind.HasRange, apply: func(w *Widget, v string) error {
		return setFloat(&w.Min, v)
	}},
	PropMax: {supports: Kind.HasRange, apply: func(w *Widget, v string) error {
		return setFloat(&w.Max, v)
	}},
	PropStep: {supports: Kind.HasStep, apply: func(w *Widget, v string) error {
		return setFloat(&w.Step, v)
	}},
	PropOnLabel: {supports: Kind.HasOnOffLabels, apply: func(w *Widget, v string) error {
		w.OnLabel = v
		return nil
	}},
	PropOffLabel: {supports: Kind.HasOnOffLabels, apply: func(w *Widget, v string) error {
		w.OffLabel = v
		return nil
	}},
	PropIsOnPlay: {supports: Kind.HasPlayState, apply: func(w *Widget, v string) error {
		switch {
		case strings.EqualFold(v, "true"):
			w.IsOnPlay = true
		case strings.EqualFold(v, "false"):
			w.IsOnPlay = false
		default:
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
		}
		return nil
	}},
	PropLabels: {supports: Kind.HasLabels, apply: func(w *Widget, v string) error {
		w.Labels = protocol.SplitAll(v)
		return nil
	}},
	PropURL:  {supports: Kind.HasURL, apply: applyURL},
	PropURLs: {supports: Kind.HasURLs, apply: func(w *Widget, v string) error {
		w.URLs = protocol.SplitAll(v)
		return nil
	}},
	PropOpacity: {supports: Kind.HasOpacity, apply: func(w *Widget, v string) error {
		f, err := parseFloat(v)
		if err != nil {
			return err
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("%w: opacity %v outside 0..1", ErrInvalidValue, f)
		}
		w.Opacity = f
		return nil
	}},
	PropX:      {appOnly: true, apply: func(w *Widget, v string) error { return setInt(&w.X, v) }},
	PropY:      {appOnly: true, apply: func(w *Widget, v string) error { return setInt(&w.Y, v) }},
	PropWidth:  {appOnly: true, apply: func(w *Widget, v string) error { return setInt(&w.Width, v) }},
	PropHeight: {appOnly: true, apply: func(w *Widget, v string) error { return setInt(&w.Height, v) }},
}

// LookupProperty resolves a wire property name.
func LookupProperty(name string) (Property, error) {
	p := Property(name)
	if _, ok := propertyRules[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return p, nil
}

// AppOnly reports whether the property may only be changed by apps.
func (p Property) AppOnly() bool {
	return propertyRules[p].appOnly
}

// Supports reports whether widgets of kind k accept p.
func (p Property) Supports(k Kind) bool {
	rule, ok := propertyRules[p]
	if !ok {
		return false
	}
	return rule.supports == nil || rule.supports(k)
}

// SetProperty applies a hardware-originated property update. App-only
// properties are refused. On error the widget may be partially
// modified, so callers wanting atomicity apply to a Clone.
func (w *Widget) SetProperty(p Property, value string) error {
	return w.setProperty(p, value, false)
}

// SetAppProperty is SetProperty for app-originated updates, which may
// also move and resize the widget.
func (w *Widget) SetAppProperty(p Property, value string) error {
	return w.setProperty(p, value, true)
}

func (w *Widget) setProperty(p Property, value string, fromApp bool) error {
	rule, ok := propertyRules[p]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, p)
	}
	if rule.appOnly && !fromApp {
		return fmt.Errorf("%w: %s is app only", ErrUnsupportedProperty, p)
	}
	if rule.supports != nil && !rule.supports(w.Type) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedProperty, p, w.Type)
	}
	return rule.apply(w, value)
}

// ParseColor converts #RRGGBB into the packed RGBA value apps expect:
// the RGB bits shifted left one byte with a fully opaque alpha.
func ParseColor(v string) (int32, error) {
	if len(v) != 7 || v[0] != '#' {
		return 0, fmt.Errorf("%w: color %q", ErrInvalidValue, v)
	}
	rgb, err := strconv.ParseUint(v[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: color %q", ErrInvalidValue, v)
	}
	return int32(uint32(rgb)<<8 | 0xFF), nil
}

// applyURL handles both url forms. A widget holding a URL list takes
// "<index> <url>" with a 1-based index; an index past the list is
// ignored. Any other value replaces the whole URL.
func applyURL(w *Widget, v string) error {
	if !w.Type.HasURLs() {
		w.URL = v
		return nil
	}
	parts := protocol.Split2(v)
	if len(parts) == 1 {
		w.URLs = []string{v}
		return nil
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("%w: url index %q", ErrInvalidValue, parts[0])
	}
	if index >= 1 && index <= len(w.URLs) {
		w.URLs[index-1] = parts[1]
	}
	return nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v)
	}
	return f, nil
}

func setFloat(dst *float64, v string) error {
	f, err := parseFloat(v)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setInt(dst *int, v string) error {
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return fmt.Errorf("%w: %q is not a position", ErrInvalidValue, v)
	}
	*dst = i
	return nil
}
