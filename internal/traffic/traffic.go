// Traffic modes, speeds, and wire-level event rows.
package traffic

import (
	"time"

	"netsim/internal/device"
	"netsim/internal/stats"
)

// Mode selects how transfer pairs are picked.
type Mode string

// Traffic pattern modes.
const (
	ModeRandom      Mode = "random"
	ModeHotspot     Mode = "hotspot"
	ModeHeavyTalker Mode = "heavy_talker"
)

// ParseMode validates a mode received from a control message.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeRandom, ModeHotspot, ModeHeavyTalker:
		return Mode(s), true
	}
	return "", false
}

// Speed selects the inter-event delay range.
type Speed string

// Simulation speeds.
const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// ParseSpeed validates a speed level received from a control message.
func ParseSpeed(s string) (Speed, bool) {
	switch Speed(s) {
	case SpeedSlow, SpeedNormal, SpeedFast:
		return Speed(s), true
	}
	return "", false
}

// Transfer protocols.
const (
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
)

// Outbound message type discriminators. These are wire-stable.
const (
	TypeTransferEvent = "transfer_event"
	TypeAlert         = "alert"
	TypeStatsReset    = "stats_reset"
	TypeDevices       = "devices"
)

// TransferEvent is one simulated transfer plus post-transfer stats
// snapshots for both endpoints. Produced once per tick, broadcast
// immediately, never persisted by the engine.
type TransferEvent struct {
	Type      string         `json:"type"`
	FromID    int            `json:"from_id"`
	ToID      int            `json:"to_id"`
	Bytes     int64          `json:"bytes"`
	Protocol  string         `json:"protocol"`
	Timestamp time.Time      `json:"timestamp"`
	FromStats stats.Snapshot `json:"from_stats"`
	ToStats   stats.Snapshot `json:"to_stats"`
}

// AlertEvent is the wire form of a high-traffic alert.
type AlertEvent struct {
	Type     string `json:"type"`
	Level    string `json:"level"`
	DeviceID int    `json:"device_id"`
	Message  string `json:"message"`
}

// NewAlertEvent wraps an accumulator alert for broadcast.
func NewAlertEvent(a stats.Alert) AlertEvent {
	return AlertEvent{Type: TypeAlert, Level: a.Level, DeviceID: a.DeviceID, Message: a.Message}
}

// ResetEvent tells every viewer to clear its local stats view.
type ResetEvent struct {
	Type string `json:"type"`
}

// NewResetEvent returns the stats_reset confirmation message.
func NewResetEvent() ResetEvent {
	return ResetEvent{Type: TypeStatsReset}
}

// DeviceList is sent once per connection so new viewers can render the
// network before the first event arrives.
type DeviceList struct {
	Type    string          `json:"type"`
	Devices []device.Device `json:"devices"`
}

// NewDeviceList wraps the registry for the on-connect message.
func NewDeviceList(devices []device.Device) DeviceList {
	return DeviceList{Type: TypeDevices, Devices: devices}
}
