// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"netsim/internal/device"
)

// DelayRange bounds the random inter-event delay for one speed.
type DelayRange struct {
	MinMS int `yaml:"min_ms"`
	MaxMS int `yaml:"max_ms"`
}

// Min returns the lower bound as a duration.
func (d DelayRange) Min() time.Duration { return time.Duration(d.MinMS) * time.Millisecond }

// Max returns the upper bound as a duration.
func (d DelayRange) Max() time.Duration { return time.Duration(d.MaxMS) * time.Millisecond }

// SpeedTable maps each speed level to its delay range.
type SpeedTable struct {
	Slow   DelayRange `yaml:"slow"`
	Normal DelayRange `yaml:"normal"`
	Fast   DelayRange `yaml:"fast"`
}

// SimulationConfig is the root configuration for the traffic simulator.
type SimulationConfig struct {
	ListenAddr                 string          `yaml:"listen_addr"`
	HighTrafficThresholdBytes  int64           `yaml:"high_traffic_threshold_bytes"`
	TransferMinBytes           int64           `yaml:"transfer_min_bytes"`
	TransferMaxBytes           int64           `yaml:"transfer_max_bytes"`
	HotspotRouterProbability   float64         `yaml:"hotspot_router_probability"`
	HeavyTalkerRotationSeconds float64         `yaml:"heavy_talker_rotation_seconds"`
	HeavyTalkerSendProbability float64         `yaml:"heavy_talker_send_probability"`
	Speeds                     SpeedTable      `yaml:"speeds"`
	Devices                    []device.Device `yaml:"devices"`
}

// Default returns the configuration used when no file is supplied.
func Default() *SimulationConfig {
	cfg := &SimulationConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset tunable with its default value.
func (c *SimulationConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.HighTrafficThresholdBytes == 0 {
		c.HighTrafficThresholdBytes = 512000
	}
	if c.TransferMinBytes == 0 {
		c.TransferMinBytes = 256
	}
	if c.TransferMaxBytes == 0 {
		c.TransferMaxBytes = 65536
	}
	if c.HotspotRouterProbability == 0 {
		c.HotspotRouterProbability = 0.85
	}
	if c.HeavyTalkerRotationSeconds == 0 {
		c.HeavyTalkerRotationSeconds = 30
	}
	if c.HeavyTalkerSendProbability == 0 {
		c.HeavyTalkerSendProbability = 0.70
	}
	if c.Speeds.Slow == (DelayRange{}) {
		c.Speeds.Slow = DelayRange{MinMS: 4000, MaxMS: 5000}
	}
	if c.Speeds.Normal == (DelayRange{}) {
		c.Speeds.Normal = DelayRange{MinMS: 1000, MaxMS: 3000}
	}
	if c.Speeds.Fast == (DelayRange{}) {
		c.Speeds.Fast = DelayRange{MinMS: 300, MaxMS: 1000}
	}
}

// HeavyTalkerRotation returns the rotation window as a duration.
func (c *SimulationConfig) HeavyTalkerRotation() time.Duration {
	return time.Duration(c.HeavyTalkerRotationSeconds * float64(time.Second))
}

// Load loads YAML config, validates it against a CUE schema, and fills
// defaults for anything the file leaves unset.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *SimulationConfig) Validate() error {
	if c.TransferMinBytes <= 0 || c.TransferMaxBytes < c.TransferMinBytes {
		return fmt.Errorf("transfer byte range [%d, %d] invalid", c.TransferMinBytes, c.TransferMaxBytes)
	}
	for _, r := range []struct {
		name string
		d    DelayRange
	}{
		{"slow", c.Speeds.Slow},
		{"normal", c.Speeds.Normal},
		{"fast", c.Speeds.Fast},
	} {
		if r.d.MinMS <= 0 || r.d.MaxMS < r.d.MinMS {
			return fmt.Errorf("speed %s delay range [%d, %d] invalid", r.name, r.d.MinMS, r.d.MaxMS)
		}
	}
	if c.HotspotRouterProbability < 0 || c.HotspotRouterProbability > 1 {
		return fmt.Errorf("hotspot_router_probability %f outside [0, 1]", c.HotspotRouterProbability)
	}
	if c.HeavyTalkerSendProbability < 0 || c.HeavyTalkerSendProbability > 1 {
		return fmt.Errorf("heavy_talker_send_probability %f outside [0, 1]", c.HeavyTalkerSendProbability)
	}
	return nil
}

// Registry builds the device registry from the configured devices,
// falling back to the built-in LAN when none are listed.
func (c *SimulationConfig) Registry() (*device.Registry, error) {
	if len(c.Devices) == 0 {
		return device.Default(), nil
	}
	return device.NewRegistry(c.Devices)
}
