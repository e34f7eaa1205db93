// Per-device and global traffic counters with threshold alerts.
package stats

import (
	"fmt"

	"netsim/internal/device"
)

// Snapshot is the wire-facing view of one device's counters.
type Snapshot struct {
	BytesSent     int64 `json:"bytes_sent"`
	BytesReceived int64 `json:"bytes_received"`
	TransferCount int64 `json:"transfer_count"`
}

// Global aggregates counters across all devices.
type Global struct {
	TransferCount int64 `json:"transfer_count"`
	TotalBytes    int64 `json:"total_bytes"`
}

// Alert is raised once per device per reset epoch when its cumulative
// sent bytes cross the high-traffic threshold.
type Alert struct {
	DeviceID int    `json:"device_id"`
	Level    string `json:"level"`
	Message  string `json:"message"`
}

// AlertLevelWarning is the only level currently emitted.
const AlertLevelWarning = "warning"

type record struct {
	Snapshot
	alerted bool
}

// Accumulator owns the counters for every registered device. It is not
// self-locking: the engine's mutex is the single exclusivity boundary
// for all reads and writes.
type Accumulator struct {
	threshold int64
	names     map[int]string
	order     []int
	records   map[int]*record
	global    Global
}

// NewAccumulator creates zeroed counters for every device in the
// registry. Records are never removed during a session; Reset zeroes
// them in place.
func NewAccumulator(reg *device.Registry, threshold int64) *Accumulator {
	a := &Accumulator{
		threshold: threshold,
		names:     make(map[int]string),
		records:   make(map[int]*record),
	}
	for _, d := range reg.Devices() {
		a.names[d.ID] = d.Name
		a.order = append(a.order, d.ID)
		a.records[d.ID] = &record{}
	}
	return a
}

// Apply records one completed transfer and returns post-update
// snapshots for both endpoints plus any newly fired alerts. The
// threshold check is sender-only and fires at most once until Reset.
func (a *Accumulator) Apply(fromID, toID int, bytes int64) (from, to Snapshot, alerts []Alert) {
	f := a.record(fromID)
	t := a.record(toID)

	f.BytesSent += bytes
	f.TransferCount++
	t.BytesReceived += bytes
	t.TransferCount++
	a.global.TransferCount++
	a.global.TotalBytes += bytes

	if !f.alerted && f.BytesSent > a.threshold {
		f.alerted = true
		alerts = append(alerts, Alert{
			DeviceID: fromID,
			Level:    AlertLevelWarning,
			Message:  fmt.Sprintf("%s has sent %s this session", a.name(fromID), FormatBytes(f.BytesSent)),
		})
	}
	return f.Snapshot, t.Snapshot, alerts
}

// Reset zeroes every device's counters and alerted flag along with the
// global counters. Device records survive the reset.
func (a *Accumulator) Reset() {
	for _, r := range a.records {
		*r = record{}
	}
	a.global = Global{}
}

// Global returns the aggregate counters.
func (a *Accumulator) Global() Global {
	return a.global
}

// Snapshot returns the counters for one device.
func (a *Accumulator) Snapshot(id int) (Snapshot, bool) {
	r, ok := a.records[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.Snapshot, true
}

// TopSender returns the device with the strictly greatest bytes_sent.
// Ties break toward the lowest id; ok=false when all counters are zero.
func (a *Accumulator) TopSender() (int, bool) {
	return a.top(func(r *record) int64 { return r.BytesSent })
}

// TopReceiver returns the device with the strictly greatest
// bytes_received, with the same tie and zero semantics as TopSender.
func (a *Accumulator) TopReceiver() (int, bool) {
	return a.top(func(r *record) int64 { return r.BytesReceived })
}

func (a *Accumulator) top(value func(*record) int64) (int, bool) {
	bestID := 0
	var best int64
	found := false
	for _, id := range a.order {
		v := value(a.records[id])
		if v > best || (found && v == best && id < bestID) {
			best = v
			bestID = id
			found = true
		}
	}
	if !found || best == 0 {
		return 0, false
	}
	return bestID, true
}

func (a *Accumulator) record(id int) *record {
	r, ok := a.records[id]
	if !ok {
		// Unregistered ids should not reach here (registry invariants
		// are load-time preconditions) but a stray id must not crash
		// the loop.
		r = &record{}
		a.records[id] = r
		a.order = append(a.order, id)
	}
	return r
}

func (a *Accumulator) name(id int) string {
	if n, ok := a.names[id]; ok {
		return n
	}
	return fmt.Sprintf("device %d", id)
}

// FormatBytes renders n in the largest sensible unit, one decimal.
func FormatBytes(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
