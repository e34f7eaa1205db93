package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"netsim/internal/device"
	"netsim/internal/sim"
	"netsim/internal/stats"
	"netsim/internal/traffic"
)

// fakeSim records control calls and serves canned state.
type fakeSim struct {
	mu       sync.Mutex
	played   int
	paused   int
	resets   int
	speeds   []string
	modes    []string
	statuses sim.Status
}

func (f *fakeSim) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played++
}

func (f *fakeSim) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused++
}

func (f *fakeSim) SetSpeed(level string) bool {
	if _, ok := traffic.ParseSpeed(level); !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speeds = append(f.speeds, level)
	return true
}

func (f *fakeSim) SetMode(mode string) bool {
	if _, ok := traffic.ParseMode(mode); !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	return true
}

func (f *fakeSim) ResetStats(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeSim) Devices() []device.Device {
	return device.Default().Devices()
}

func (f *fakeSim) Status() sim.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses
}

func (f *fakeSim) DeviceStats(id int) (stats.Snapshot, bool) {
	return stats.Snapshot{BytesSent: int64(id) * 100}, true
}

func (f *fakeSim) counts() (played, paused, resets int, speeds, modes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.played, f.paused, f.resets, append([]string(nil), f.speeds...), append([]string(nil), f.modes...)
}

func testServer(t *testing.T) (*httptest.Server, *fakeSim, *Hub) {
	t.Helper()
	fs := &fakeSim{statuses: sim.Status{Running: true, Speed: traffic.SpeedNormal, Mode: traffic.ModeRandom}}
	hub := NewHub(fs)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := New(":0", fs, hub, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, fs, hub
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestServer_Devices(t *testing.T) {
	ts, _, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/devices")
	if err != nil {
		t.Fatalf("GET /devices: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body struct {
		Devices []struct {
			ID    int            `json:"id"`
			Name  string         `json:"name"`
			Stats stats.Snapshot `json:"stats"`
		} `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Devices) != 5 {
		t.Fatalf("expected 5 devices, got %d", len(body.Devices))
	}
	if body.Devices[0].Stats.BytesSent != int64(body.Devices[0].ID)*100 {
		t.Errorf("stats not joined onto device: %+v", body.Devices[0])
	}
}

func TestServer_Stats(t *testing.T) {
	ts, _, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  sim.Status `json:"status"`
		Viewers int        `json:"viewers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Status.Running || body.Status.Speed != traffic.SpeedNormal {
		t.Errorf("unexpected status: %+v", body.Status)
	}
}

func TestWebSocket_OnConnectDeviceList(t *testing.T) {
	ts, _, _ := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg traffic.DeviceList
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read on-connect message: %v", err)
	}
	if msg.Type != traffic.TypeDevices {
		t.Errorf("first message type=%q, want %q", msg.Type, traffic.TypeDevices)
	}
	if len(msg.Devices) != 5 {
		t.Errorf("expected 5 devices, got %d", len(msg.Devices))
	}
}

func TestWebSocket_BroadcastReachesViewer(t *testing.T) {
	ts, _, hub := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var onConnect traffic.DeviceList
	if err := conn.ReadJSON(&onConnect); err != nil {
		t.Fatalf("read on-connect: %v", err)
	}

	// Registration is async; wait until the hub sees the viewer.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ev := traffic.TransferEvent{
		Type: traffic.TypeTransferEvent, FromID: 2, ToID: 3,
		Bytes: 1024, Protocol: traffic.ProtocolTCP, Timestamp: time.Now().UTC(),
	}
	if err := hub.WriteTransfer(ev); err != nil {
		t.Fatalf("WriteTransfer: %v", err)
	}

	var got traffic.TransferEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if got.Type != traffic.TypeTransferEvent || got.Bytes != 1024 {
		t.Errorf("broadcast mismatch: %+v", got)
	}
}

func TestWebSocket_SetSpeedLevelField(t *testing.T) {
	ts, fs, _ := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The set_speed action carries its value in "level".
	if err := conn.WriteJSON(map[string]string{"type": "control", "action": "set_speed", "level": "slow"}); err != nil {
		t.Fatalf("write control: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, _, _, speeds, _ := fs.counts()
		if len(speeds) == 1 {
			if speeds[0] != "slow" {
				t.Fatalf("speeds=%v, want [slow]", speeds)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("set_speed with level field was not applied")
}

func TestWebSocket_ControlDispatch(t *testing.T) {
	ts, fs, _ := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(m map[string]string) {
		t.Helper()
		if err := conn.WriteJSON(m); err != nil {
			t.Fatalf("write control: %v", err)
		}
	}

	send(map[string]string{"type": "control", "action": "pause"})
	// Unknown type and invalid level are both ignored.
	send(map[string]string{"type": "hello", "action": "play"})
	send(map[string]string{"type": "control", "action": "set_speed", "level": "warp"})
	send(map[string]string{"type": "control", "action": "set_speed", "level": "fast"})
	send(map[string]string{"type": "control", "action": "set_mode", "mode": "hotspot"})
	send(map[string]string{"type": "control", "action": "reset_stats"})
	send(map[string]string{"type": "control", "action": "play"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		played, paused, resets, speeds, modes := fs.counts()
		if played == 1 && paused == 1 && resets == 1 && len(speeds) == 1 && len(modes) == 1 {
			if speeds[0] != "fast" || modes[0] != "hotspot" {
				t.Fatalf("wrong parameters: speeds=%v modes=%v", speeds, modes)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	played, paused, resets, speeds, modes := fs.counts()
	t.Fatalf("controls not dispatched: played=%d paused=%d resets=%d speeds=%v modes=%v",
		played, paused, resets, speeds, modes)
}
