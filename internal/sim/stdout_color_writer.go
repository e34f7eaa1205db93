// ColorStdoutWriter prints human-friendly, colorized events to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"netsim/internal/config"
	"netsim/internal/device"
	"netsim/internal/stats"
	"netsim/internal/traffic"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints events using ANSI colors.
type ColorStdoutWriter struct {
	cfg     *config.SimulationConfig
	reg     *device.Registry
	devices map[int]device.Device
	out     io.Writer
	once    sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig, reg *device.Registry) *ColorStdoutWriter {
	devices := make(map[int]device.Device)
	for _, d := range reg.Devices() {
		devices[d.ID] = d
	}
	return &ColorStdoutWriter{cfg: cfg, reg: reg, devices: devices, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}

	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "High Traffic Threshold:\t%s\n", stats.FormatBytes(w.cfg.HighTrafficThresholdBytes))
	fmt.Fprintf(tw, "Transfer Size Range:\t%d-%d B\n", w.cfg.TransferMinBytes, w.cfg.TransferMaxBytes)
	fmt.Fprintf(tw, "Hotspot Router Probability:\t%.2f\n", w.cfg.HotspotRouterProbability)
	fmt.Fprintf(tw, "Heavy Talker Rotation:\t%s\n", w.cfg.HeavyTalkerRotation())
	fmt.Fprintf(tw, "Heavy Talker Send Probability:\t%.2f\n", w.cfg.HeavyTalkerSendProbability)
	tw.Flush()

	fmt.Fprintln(w.out, "\nDevices:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tKind\tAddress\tMAC\n")
	for _, d := range w.reg.Devices() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Kind, d.Address, d.MAC)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func (w *ColorStdoutWriter) name(id int) string {
	if d, ok := w.devices[id]; ok {
		return d.Name
	}
	return fmt.Sprintf("#%d", id)
}

// WriteTransfer outputs a single transfer event in colorized format.
func (w *ColorStdoutWriter) WriteTransfer(ev traffic.TransferEvent) error {
	w.once.Do(w.printOverview)

	protoColor := colorGreen
	if ev.Protocol == traffic.ProtocolUDP {
		protoColor = colorYellow
	}

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, ev.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%s%s%s -> %s%s%s ", colorCyan, w.name(ev.FromID), colorReset, colorBlue, w.name(ev.ToID), colorReset)
	fmt.Fprintf(w.out, "%s%s%s ", protoColor, ev.Protocol, colorReset)
	fmt.Fprintf(w.out, "%s%s%s ", colorMagenta, stats.FormatBytes(ev.Bytes), colorReset)
	fmt.Fprintf(w.out, "%ssent=%s recv=%s%s", colorGray, stats.FormatBytes(ev.FromStats.BytesSent), stats.FormatBytes(ev.ToStats.BytesReceived), colorReset)
	fmt.Fprintln(w.out)
	return nil
}

// WriteAlert prints a high-traffic alert to STDOUT.
func (w *ColorStdoutWriter) WriteAlert(ev traffic.AlertEvent) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%sALERT%s [%s] %s\n", colorRed, colorReset, ev.Level, ev.Message)
	return nil
}

// WriteReset prints the reset confirmation.
func (w *ColorStdoutWriter) WriteReset() error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%sstats reset%s\n", colorYellow, colorReset)
	return nil
}
