// Writer implementation printing events to STDOUT
package sim

import (
	"encoding/json"
	"fmt"

	"netsim/internal/traffic"
)

// StdoutWriter prints events to STDOUT as JSON lines.
type StdoutWriter struct{}

// WriteTransfer outputs a single transfer event.
func (w *StdoutWriter) WriteTransfer(ev traffic.TransferEvent) error {
	data, _ := json.Marshal(ev)
	fmt.Println(string(data))
	return nil
}

// WriteAlert outputs a high-traffic alert.
func (w *StdoutWriter) WriteAlert(ev traffic.AlertEvent) error {
	data, _ := json.Marshal(ev)
	fmt.Println(string(data))
	return nil
}

// WriteReset outputs the reset confirmation.
func (w *StdoutWriter) WriteReset() error {
	data, _ := json.Marshal(traffic.NewResetEvent())
	fmt.Println(string(data))
	return nil
}
