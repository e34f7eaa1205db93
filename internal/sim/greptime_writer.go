package sim

import (
	"context"
	"log"
	"strconv"
	"time"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"netsim/internal/traffic"
)

// GreptimeWriter exports the event stream to GreptimeDB via the
// ingester client. Transfers and alerts land in separate tables.
type GreptimeWriter struct {
	client        *greptime.Client
	transferTable string
	alertTable    string
}

// NewGreptimeWriter creates a GreptimeDB writer. Tables are created on
// first write by the ingester.
func NewGreptimeWriter(endpoint, database, transferTable, alertTable string) (*GreptimeWriter, error) {
	if transferTable == "" {
		transferTable = "net_transfers"
	}
	if alertTable == "" {
		alertTable = "net_alerts"
	}
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeWriter{
		client:        client,
		transferTable: transferTable,
		alertTable:    alertTable,
	}, nil
}

// WriteTransfer inserts a single transfer event row.
func (w *GreptimeWriter) WriteTransfer(ev traffic.TransferEvent) error {
	tbl, err := table.New(w.transferTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("from_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("to_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("bytes", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("protocol", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("from_bytes_sent", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("to_bytes_received", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	if err := tbl.AddRow(
		strconv.Itoa(ev.FromID),
		strconv.Itoa(ev.ToID),
		ev.Bytes,
		ev.Protocol,
		ev.FromStats.BytesSent,
		ev.ToStats.BytesReceived,
		ev.Timestamp,
	); err != nil {
		return err
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		log.Printf("[GreptimeWriter] transfer write failed: %v", err)
		return err
	}
	return nil
}

// WriteAlert inserts a single alert row.
func (w *GreptimeWriter) WriteAlert(ev traffic.AlertEvent) error {
	tbl, err := table.New(w.alertTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("device_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("level", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("message", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	if err := tbl.AddRow(strconv.Itoa(ev.DeviceID), ev.Level, ev.Message, time.Now().UTC()); err != nil {
		return err
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		log.Printf("[GreptimeWriter] alert write failed: %v", err)
		return err
	}
	return nil
}

// WriteReset is a no-op for the time-series sink; resets only matter to
// live viewers.
func (w *GreptimeWriter) WriteReset() error {
	return nil
}
