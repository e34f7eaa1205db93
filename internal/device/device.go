// Device registry for the simulated network.
package device

import "fmt"

// Device kinds.
const (
	KindRouter = "router"
	KindHost   = "host"
)

// Device is one node on the simulated network. Immutable after load.
type Device struct {
	ID      int    `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Address string `json:"ip_address" yaml:"ip_address"`
	MAC     string `json:"mac_address" yaml:"mac_address"`
}

// Registry holds the ordered device set. Read-only once loaded.
type Registry struct {
	devices []Device
}

// NewRegistry validates the device list and returns a registry.
// Duplicate IDs and unknown kinds are load-time errors; everything
// downstream treats registry invariants as preconditions.
func NewRegistry(devices []Device) (*Registry, error) {
	seen := make(map[int]struct{}, len(devices))
	for _, d := range devices {
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("duplicate device id %d", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Kind != KindRouter && d.Kind != KindHost {
			return nil, fmt.Errorf("device %d: unknown kind %q", d.ID, d.Kind)
		}
	}
	r := &Registry{devices: make([]Device, len(devices))}
	copy(r.devices, devices)
	return r, nil
}

// Default returns the built-in five-device LAN used when the
// configuration does not list any devices.
func Default() *Registry {
	r, _ := NewRegistry([]Device{
		{ID: 1, Name: "Hotspot", Kind: KindRouter, Address: "192.168.1.1", MAC: "AA:BB:CC:DD:EE:01"},
		{ID: 2, Name: "Alice's Phone", Kind: KindHost, Address: "192.168.1.10", MAC: "00:11:22:33:44:55"},
		{ID: 3, Name: "Bob's Laptop", Kind: KindHost, Address: "192.168.1.11", MAC: "66:77:88:99:AA:BB"},
		{ID: 4, Name: "Carol's Tablet", Kind: KindHost, Address: "192.168.1.12", MAC: "CC:DD:EE:FF:00:11"},
		{ID: 5, Name: "Guest Phone", Kind: KindHost, Address: "192.168.1.13", MAC: "22:33:44:55:66:77"},
	})
	return r
}

// Devices returns the ordered device list.
func (r *Registry) Devices() []Device {
	return r.devices
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// Router returns the device acting as the network center. When no
// device has the router kind, the first device stands in; an empty
// registry returns ok=false.
func (r *Registry) Router() (Device, bool) {
	for _, d := range r.devices {
		if d.Kind == KindRouter {
			return d, true
		}
	}
	if len(r.devices) > 0 {
		return r.devices[0], true
	}
	return Device{}, false
}

// ByID looks a device up by its id.
func (r *Registry) ByID(id int) (Device, bool) {
	for _, d := range r.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
