package sim

import "netsim/internal/traffic"

// EventWriter is an interface to support different output sinks for
// the event stream.
type EventWriter interface {
	WriteTransfer(traffic.TransferEvent) error
	WriteAlert(traffic.AlertEvent) error
	WriteReset() error
}

// MultiWriter fans events out to multiple writers.
type MultiWriter struct {
	writers []EventWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(writers ...EventWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteTransfer sends a transfer event to all writers.
func (mw *MultiWriter) WriteTransfer(ev traffic.TransferEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteTransfer(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlert sends an alert to all writers.
func (mw *MultiWriter) WriteAlert(ev traffic.AlertEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteAlert(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteReset sends the reset confirmation to all writers.
func (mw *MultiWriter) WriteReset() error {
	for _, w := range mw.writers {
		if err := w.WriteReset(); err != nil {
			return err
		}
	}
	return nil
}
