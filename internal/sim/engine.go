// Engine orchestrating the simulation clock and shared state.
package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"netsim/internal/config"
	"netsim/internal/device"
	"netsim/internal/logging"
	"netsim/internal/stats"
	"netsim/internal/traffic"
)

// Engine owns the shared simulation state: the play/pause flag, speed,
// mode, the pattern selector's rotation state, and the accumulator.
// One mutex guards all of it; the inter-tick wait and event emission
// happen outside the guarded section.
type Engine struct {
	cfg      *config.SimulationConfig
	registry *device.Registry
	writer   EventWriter

	mu       sync.Mutex
	running  bool
	speed    traffic.Speed
	mode     traffic.Mode
	selector *traffic.Selector
	acc      *stats.Accumulator

	rng    *rand.Rand
	now    func() time.Time
	resume chan struct{}
}

// NewEngine wires the engine from config and registry. rng and now may
// be nil for production defaults; tests inject seeded versions.
func NewEngine(cfg *config.SimulationConfig, registry *device.Registry, writer EventWriter, rng *rand.Rand, now func() time.Time) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		registry: registry,
		writer:   writer,
		running:  true,
		speed:    traffic.SpeedNormal,
		mode:     traffic.ModeRandom,
		selector: traffic.NewSelector(rng, now, cfg.HotspotRouterProbability, cfg.HeavyTalkerSendProbability, cfg.HeavyTalkerRotation()),
		acc:      stats.NewAccumulator(registry, cfg.HighTrafficThresholdBytes),
		rng:      rng,
		now:      now,
		resume:   make(chan struct{}, 1),
	}
}

// SetWriter replaces the event sink. The websocket hub both drives the
// engine and consumes its stream, so it is wired in after construction.
// Must be called before Run.
func (e *Engine) SetWriter(w EventWriter) {
	e.mu.Lock()
	e.writer = w
	e.mu.Unlock()
}

// Run drives the clock loop until ctx is done. While paused the loop
// idles on the resume signal instead of sampling delays, so no event is
// owed for time spent paused.
func (e *Engine) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting engine", "devices", e.registry.Len())

	for {
		e.mu.Lock()
		running, speed := e.running, e.speed
		e.mu.Unlock()

		if !running {
			select {
			case <-ctx.Done():
				log.Info("stopping engine")
				return
			case <-e.resume:
			}
			continue
		}

		timer := time.NewTimer(e.sampleDelay(speed))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("stopping engine")
			return
		case <-timer.C:
		}
		e.tick(ctx)
	}
}

// tick performs one wait-then-maybe-emit cycle's emit half: pick a
// pair, synthesize a transfer, apply it, and hand the results to the
// writer. Skips emission when paused mid-wait or when fewer than two
// devices are registered.
func (e *Engine) tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	e.mu.Lock()
	if !e.running || e.registry.Len() < 2 {
		e.mu.Unlock()
		return
	}

	from, to := e.selector.Pick(e.registry, e.mode)
	size := e.cfg.TransferMinBytes + e.rng.Int63n(e.cfg.TransferMaxBytes-e.cfg.TransferMinBytes+1)
	protocol := traffic.ProtocolTCP
	if e.rng.Intn(2) == 1 {
		protocol = traffic.ProtocolUDP
	}

	fromStats, toStats, alerts := e.acc.Apply(from.ID, to.ID, size)
	event := traffic.TransferEvent{
		Type:      traffic.TypeTransferEvent,
		FromID:    from.ID,
		ToID:      to.ID,
		Bytes:     size,
		Protocol:  protocol,
		Timestamp: e.now().UTC(),
		FromStats: fromStats,
		ToStats:   toStats,
	}
	e.mu.Unlock()

	// Fan-out happens outside the exclusivity boundary.
	if err := e.writer.WriteTransfer(event); err != nil {
		log.Error("transfer write failed", "from", event.FromID, "to", event.ToID, "err", err)
	}
	for _, a := range alerts {
		log.Warn("high traffic alert", "device_id", a.DeviceID, "message", a.Message)
		if err := e.writer.WriteAlert(traffic.NewAlertEvent(a)); err != nil {
			log.Error("alert write failed", "device_id", a.DeviceID, "err", err)
		}
	}
}

func (e *Engine) sampleDelay(speed traffic.Speed) time.Duration {
	var r config.DelayRange
	switch speed {
	case traffic.SpeedSlow:
		r = e.cfg.Speeds.Slow
	case traffic.SpeedFast:
		r = e.cfg.Speeds.Fast
	default:
		r = e.cfg.Speeds.Normal
	}
	min, max := r.Min(), r.Max()
	if max <= min {
		return min
	}
	return min + time.Duration(e.rng.Int63n(int64(max-min)+1))
}

// Play resumes the clock. Idempotent when already running.
func (e *Engine) Play() {
	e.mu.Lock()
	was := e.running
	e.running = true
	e.mu.Unlock()
	if !was {
		select {
		case e.resume <- struct{}{}:
		default:
		}
	}
}

// Pause stops event emission. Idempotent when already paused. The
// change is visible to the clock within at most one tick boundary.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// SetSpeed validates and applies a speed level. Invalid input is
// rejected without touching state; the change takes effect on the next
// tick's delay computation.
func (e *Engine) SetSpeed(level string) bool {
	speed, ok := traffic.ParseSpeed(level)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return true
}

// SetMode validates and applies a traffic mode. Switching away from
// heavy_talker clears the rotation state so a later switch back starts
// fresh.
func (e *Engine) SetMode(mode string) bool {
	m, ok := traffic.ParseMode(mode)
	if !ok {
		return false
	}
	e.mu.Lock()
	if e.mode == traffic.ModeHeavyTalker && m != traffic.ModeHeavyTalker {
		e.selector.ResetTalker()
	}
	e.mode = m
	e.mu.Unlock()
	return true
}

// ResetStats zeroes every counter and the heavy-talker rotation state
// in one contract, then confirms to every connected viewer.
func (e *Engine) ResetStats(ctx context.Context) {
	e.mu.Lock()
	e.acc.Reset()
	e.selector.ResetTalker()
	e.mu.Unlock()

	if err := e.writer.WriteReset(); err != nil {
		logging.FromContext(ctx).Error("reset write failed", "err", err)
	}
}

// Devices returns the ordered device registry.
func (e *Engine) Devices() []device.Device {
	return e.registry.Devices()
}

// Status is a point-in-time view of the simulation for REST consumers.
type Status struct {
	Running     bool          `json:"running"`
	Speed       traffic.Speed `json:"speed"`
	Mode        traffic.Mode  `json:"mode"`
	Global      stats.Global  `json:"global"`
	TopSender   *int          `json:"top_sender,omitempty"`
	TopReceiver *int          `json:"top_receiver,omitempty"`
}

// Status reports the current simulation state and aggregate counters.
// Top sender/receiver are computed views, absent when all counters are
// zero.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Running: e.running,
		Speed:   e.speed,
		Mode:    e.mode,
		Global:  e.acc.Global(),
	}
	if id, ok := e.acc.TopSender(); ok {
		st.TopSender = &id
	}
	if id, ok := e.acc.TopReceiver(); ok {
		st.TopReceiver = &id
	}
	return st
}

// DeviceStats returns the current counters for one device.
func (e *Engine) DeviceStats(id int) (stats.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc.Snapshot(id)
}
