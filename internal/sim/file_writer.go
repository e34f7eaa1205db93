package sim

import (
	"encoding/json"
	"os"

	"netsim/internal/traffic"
)

// FileWriter appends every event kind to one JSONL log, suitable for
// later replay.
type FileWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates (truncates) the log file at path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteTransfer logs a single transfer event.
func (f *FileWriter) WriteTransfer(ev traffic.TransferEvent) error {
	return f.enc.Encode(ev)
}

// WriteAlert logs a high-traffic alert.
func (f *FileWriter) WriteAlert(ev traffic.AlertEvent) error {
	return f.enc.Encode(ev)
}

// WriteReset logs the reset confirmation.
func (f *FileWriter) WriteReset() error {
	return f.enc.Encode(traffic.NewResetEvent())
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	return f.file.Close()
}
