package traffic

import (
	"math/rand"
	"time"

	"netsim/internal/device"
)

// Selector picks (source, destination) pairs according to the current
// mode. It keeps the heavy-talker rotation state and is not
// self-locking: the engine serializes access alongside the rest of the
// simulation state.
type Selector struct {
	rng *rand.Rand
	now func() time.Time

	hotspotBias    float64       // probability a hotspot pick involves the router
	talkerSendBias float64       // probability the heavy talker is the source
	rotation       time.Duration // heavy-talker window length

	talkerID    int
	talkerSince time.Time
	hasTalker   bool
}

// NewSelector builds a selector with an injected randomness source and
// clock so tests can drive exact branch choices.
func NewSelector(rng *rand.Rand, now func() time.Time, hotspotBias, talkerSendBias float64, rotation time.Duration) *Selector {
	return &Selector{
		rng:            rng,
		now:            now,
		hotspotBias:    hotspotBias,
		talkerSendBias: talkerSendBias,
		rotation:       rotation,
	}
}

// Pick returns two distinct devices drawn from reg according to mode.
// The caller must guarantee at least two registered devices.
func (s *Selector) Pick(reg *device.Registry, mode Mode) (from, to device.Device) {
	switch mode {
	case ModeHotspot:
		return s.pickHotspot(reg)
	case ModeHeavyTalker:
		return s.pickHeavyTalker(reg)
	default:
		return s.pickRandom(reg.Devices())
	}
}

// Talker reports the current heavy-talker device id, if one is set.
func (s *Selector) Talker() (int, bool) {
	return s.talkerID, s.hasTalker
}

// ResetTalker clears the heavy-talker rotation state. Called when the
// stats epoch resets and when the mode switches away from heavy_talker,
// so pattern continuity never leaks across those boundaries.
func (s *Selector) ResetTalker() {
	s.talkerID = 0
	s.talkerSince = time.Time{}
	s.hasTalker = false
}

func (s *Selector) pickRandom(devices []device.Device) (device.Device, device.Device) {
	i := s.rng.Intn(len(devices))
	j := s.rng.Intn(len(devices) - 1)
	if j >= i {
		j++
	}
	return devices[i], devices[j]
}

func (s *Selector) pickHotspot(reg *device.Registry) (device.Device, device.Device) {
	devices := reg.Devices()
	router, ok := reg.Router()
	if !ok {
		return s.pickRandom(devices)
	}

	var peers []device.Device
	for _, d := range devices {
		if d.ID != router.ID {
			peers = append(peers, d)
		}
	}
	// Degenerate set: without two non-router peers the peer-to-peer
	// branch cannot produce a distinct pair, so behave like random.
	if len(peers) < 2 {
		if len(peers) == 0 {
			return s.pickRandom(devices)
		}
		if s.rng.Float64() < 0.5 {
			return router, peers[0]
		}
		return peers[0], router
	}

	if s.rng.Float64() < s.hotspotBias {
		other := peers[s.rng.Intn(len(peers))]
		if s.rng.Float64() < 0.5 {
			return router, other
		}
		return other, router
	}
	return s.pickRandom(peers)
}

func (s *Selector) pickHeavyTalker(reg *device.Registry) (device.Device, device.Device) {
	devices := reg.Devices()
	now := s.now()
	if !s.hasTalker || now.Sub(s.talkerSince) > s.rotation {
		s.talkerID = devices[s.rng.Intn(len(devices))].ID
		s.talkerSince = now
		s.hasTalker = true
	}

	talker, ok := reg.ByID(s.talkerID)
	if !ok {
		// Talker vanished from the registry; rotate next pick.
		s.ResetTalker()
		return s.pickRandom(devices)
	}

	var others []device.Device
	for _, d := range devices {
		if d.ID != talker.ID {
			others = append(others, d)
		}
	}
	other := others[s.rng.Intn(len(others))]
	if s.rng.Float64() < s.talkerSendBias {
		return talker, other
	}
	return other, talker
}
