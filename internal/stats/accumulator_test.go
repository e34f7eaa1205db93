package stats

import (
	"strings"
	"testing"

	"netsim/internal/device"
)

func testRegistry(t *testing.T) *device.Registry {
	t.Helper()
	r, err := device.NewRegistry([]device.Device{
		{ID: 1, Name: "Router", Kind: device.KindRouter},
		{ID: 2, Name: "A", Kind: device.KindHost},
		{ID: 3, Name: "B", Kind: device.KindHost},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestApply_CounterConservation(t *testing.T) {
	a := NewAccumulator(testRegistry(t), 512000)

	transfers := []struct {
		from, to int
		bytes    int64
	}{
		{1, 2, 100},
		{2, 3, 250},
		{3, 1, 50},
		{1, 3, 600},
	}
	var total int64
	for _, tr := range transfers {
		a.Apply(tr.from, tr.to, tr.bytes)
		total += tr.bytes
	}

	g := a.Global()
	if g.TransferCount != int64(len(transfers)) {
		t.Errorf("global transfer_count=%d, want %d", g.TransferCount, len(transfers))
	}
	if g.TotalBytes != total {
		t.Errorf("global total_bytes=%d, want %d", g.TotalBytes, total)
	}

	s1, _ := a.Snapshot(1)
	if s1.BytesSent != 700 || s1.BytesReceived != 50 || s1.TransferCount != 3 {
		t.Errorf("device 1 counters wrong: %+v", s1)
	}
	s3, _ := a.Snapshot(3)
	if s3.BytesSent != 50 || s3.BytesReceived != 850 {
		t.Errorf("device 3 counters wrong: %+v", s3)
	}
}

func TestApply_AlertOncePerEpoch(t *testing.T) {
	a := NewAccumulator(testRegistry(t), 1000)

	_, _, alerts := a.Apply(2, 3, 900)
	if len(alerts) != 0 {
		t.Fatalf("unexpected alert below threshold: %+v", alerts)
	}
	_, _, alerts = a.Apply(2, 3, 900)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	al := alerts[0]
	if al.DeviceID != 2 || al.Level != AlertLevelWarning {
		t.Errorf("unexpected alert: %+v", al)
	}
	if !strings.Contains(al.Message, "A") || !strings.Contains(al.Message, "1.8 KB") {
		t.Errorf("alert message missing name or formatted total: %q", al.Message)
	}

	// Repeated crossings in the same epoch never refire.
	_, _, alerts = a.Apply(2, 1, 5000)
	if len(alerts) != 0 {
		t.Errorf("alert refired within epoch: %+v", alerts)
	}

	// Receivers never alert, regardless of bytes_received.
	_, _, alerts = a.Apply(1, 3, 50000)
	for _, al := range alerts {
		if al.DeviceID == 3 {
			t.Errorf("receiver alerted: %+v", al)
		}
	}
}

func TestReset_CompletenessAndRearm(t *testing.T) {
	a := NewAccumulator(testRegistry(t), 1000)
	a.Apply(2, 3, 5000)
	a.Reset()

	if g := a.Global(); g.TransferCount != 0 || g.TotalBytes != 0 {
		t.Errorf("global not zeroed: %+v", g)
	}
	for _, id := range []int{1, 2, 3} {
		s, ok := a.Snapshot(id)
		if !ok {
			t.Fatalf("device %d record destroyed by reset", id)
		}
		if s != (Snapshot{}) {
			t.Errorf("device %d not zeroed: %+v", id, s)
		}
	}

	// Same device can alert again after reset.
	_, _, alerts := a.Apply(2, 3, 5000)
	if len(alerts) != 1 {
		t.Errorf("expected alert to re-arm after reset, got %d", len(alerts))
	}
}

func TestTopSenderReceiver(t *testing.T) {
	a := NewAccumulator(testRegistry(t), 512000)

	if _, ok := a.TopSender(); ok {
		t.Error("expected no top sender on fresh accumulator")
	}
	if _, ok := a.TopReceiver(); ok {
		t.Error("expected no top receiver on fresh accumulator")
	}

	a.Apply(2, 1, 100)
	a.Apply(3, 1, 100)
	// Tie on bytes_sent between 2 and 3 breaks toward the lowest id.
	if id, ok := a.TopSender(); !ok || id != 2 {
		t.Errorf("top sender=%d ok=%v, want 2", id, ok)
	}
	if id, ok := a.TopReceiver(); !ok || id != 1 {
		t.Errorf("top receiver=%d ok=%v, want 1", id, ok)
	}

	a.Apply(3, 2, 500)
	if id, _ := a.TopSender(); id != 3 {
		t.Errorf("top sender=%d, want 3", id)
	}
}

func TestEndToEndScenario(t *testing.T) {
	a := NewAccumulator(testRegistry(t), 512000)

	_, _, alerts := a.Apply(1, 2, 100000)
	if len(alerts) != 0 {
		t.Fatalf("alert fired after first transfer: %+v", alerts)
	}
	_, _, alerts = a.Apply(1, 3, 450000)
	if len(alerts) != 1 || alerts[0].DeviceID != 1 {
		t.Fatalf("expected one alert for device 1 after second transfer, got %+v", alerts)
	}
	if !strings.Contains(alerts[0].Message, "537.1 KB") {
		t.Errorf("alert message %q does not reference sent total", alerts[0].Message)
	}

	g := a.Global()
	if g.TransferCount != 2 || g.TotalBytes != 550000 {
		t.Errorf("global=%+v, want {2 550000}", g)
	}
	s1, _ := a.Snapshot(1)
	if s1.BytesSent != 550000 {
		t.Errorf("device 1 bytes_sent=%d, want 550000", s1.BytesSent)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{550000, "537.1 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.n); got != c.want {
			t.Errorf("FormatBytes(%d)=%q, want %q", c.n, got, c.want)
		}
	}
}
