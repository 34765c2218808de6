package core

import (
	"strconv"
	"time"
)

// Device is one piece of hardware attached to a dashboard. The
// HardwareInfo and OTA fields are guarded by the owning Dashboard.
type Device struct {
	ID           int           `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Token        string        `json:"-" yaml:"token"`
	BoardType    string        `json:"boardType,omitempty" yaml:"boardType,omitempty"`
	HardwareInfo *HardwareInfo `json:"hardwareInfo,omitempty" yaml:"-"`
	OTA          *OTAInfo      `json:"ota,omitempty" yaml:"-"`
}

func (d *Device) clone() Device {
	c := *d
	if d.HardwareInfo != nil {
		info := *d.HardwareInfo
		c.HardwareInfo = &info
	}
	if d.OTA != nil {
		ota := *d.OTA
		c.OTA = &ota
	}
	return c
}

// HardwareInfo is what a device reports about itself in its info frame.
type HardwareInfo struct {
	Version           string `json:"version,omitempty"`
	FirmwareVersion   string `json:"firmwareVersion,omitempty"`
	HeartbeatInterval int    `json:"heartbeatInterval,omitempty"`
	BuffIn            int    `json:"buffIn,omitempty"`
	BoardType         string `json:"boardType,omitempty"`
	CPUType           string `json:"cpuType,omitempty"`
	ConnectionType    string `json:"connectionType,omitempty"`
	Build             string `json:"build,omitempty"`
	TemplateID        string `json:"templateId,omitempty"`
}

// ParseHardwareInfo reads key/value pairs such as
// "ver 0.5.0 h-beat 10 buff-in 256 dev Arduino". Unknown keys and
// malformed numbers are ignored; a trailing key without a value is
// dropped.
func ParseHardwareInfo(tokens []string) HardwareInfo {
	var info HardwareInfo
	for i := 0; i+1 < len(tokens); i += 2 {
		value := tokens[i+1]
		switch tokens[i] {
		case "ver":
			info.Version = value
		case "fw":
			info.FirmwareVersion = value
		case "h-beat":
			info.HeartbeatInterval = atoiOrZero(value)
		case "buff-in":
			info.BuffIn = atoiOrZero(value)
		case "dev":
			info.BoardType = value
		case "cpu":
			info.CPUType = value
		case "con":
			info.ConnectionType = value
		case "build":
			info.Build = value
		case "tmpl":
			info.TemplateID = value
		}
	}
	return info
}

func atoiOrZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

type OTAStatus string

const (
	OTAStarted     OTAStatus = "started"
	OTARequestSent OTAStatus = "request_sent"
	OTASuccess     OTAStatus = "success"
	OTAFailure     OTAStatus = "failure"
)

// OTAInfo tracks a firmware update initiated for a device.
type OTAInfo struct {
	URL         string    `json:"url"`
	Build       string    `json:"build"`
	Status      OTAStatus `json:"status"`
	// Attempts counts ota requests sent to the device. Reported is the
	// build the device ran when the last one went out.
	Attempts    int       `json:"attempts"`
	Reported    string    `json:"reported,omitempty"`
	InitiatedAt time.Time `json:"initiatedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
