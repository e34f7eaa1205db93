package sim

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"netsim/internal/traffic"
)

// ReplayLog replays recorded events from r to writer. A speed >0
// accelerates playback relative to the recorded transfer timestamps.
// If speed <= 0, no artificial delay is inserted.
func ReplayLog(r io.Reader, writer EventWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return err
		}

		switch head.Type {
		case traffic.TypeTransferEvent:
			var ev traffic.TransferEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return err
			}
			if !prev.IsZero() && speed > 0 {
				diff := ev.Timestamp.Sub(prev)
				if speed != 1 {
					diff = time.Duration(float64(diff) / speed)
				}
				if diff > 0 {
					time.Sleep(diff)
				}
			}
			if err := writer.WriteTransfer(ev); err != nil {
				return err
			}
			prev = ev.Timestamp
		case traffic.TypeAlert:
			var ev traffic.AlertEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return err
			}
			if err := writer.WriteAlert(ev); err != nil {
				return err
			}
		case traffic.TypeStatsReset:
			if err := writer.WriteReset(); err != nil {
				return err
			}
		}
		// Unknown types are skipped so newer logs stay replayable.
	}
}

// ReplayLogFile opens a file and replays its events.
func ReplayLogFile(path string, writer EventWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
