package models

import (
	"fmt"
	"net"
	"strings"
)

// NewMAC returns the upper-case, colon separated form that l2ping and the hub expect.
func NewMAC(mac string) MAC {
	mac = strings.TrimSpace(mac)
	mac = strings.Replace(mac, "-", ":", -1)
	return MAC(strings.ToUpper(mac))
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// It accepts hyphen or colon separators and validates the MAC address format.
func (m *MAC) UnmarshalText(text []byte) error {
	if m == nil {
		return fmt.Errorf("MAC: UnmarshalText on nil pointer")
	}
	mac := NewMAC(string(text))
	if _, err := net.ParseMAC(string(mac)); err != nil {
		return err
	}
	*m = mac
	return nil
}

func (m MAC) String() string {
	return string(m)
}

// NewDetected builds a Detected set from names.
func NewDetected(names ...string) Detected {
	d := make(Detected, len(names))
	for _, n := range names {
		d[n] = struct{}{}
	}
	return d
}

// Has reports whether name was detected.
func (d Detected) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Names returns the detected names in registry order.
func (d Detected) Names(r Registry) []string {
	names := make([]string, 0, len(d))
	for _, dev := range r {
		if d.Has(dev.Name) {
			names = append(names, dev.Name)
		}
	}
	return names
}

// Names returns the device names in registry order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for _, dev := range r {
		names = append(names, dev.Name)
	}
	return names
}

// Validate checks that names are non-empty and unique and that every MAC parses.
func (r Registry) Validate() error {
	if len(r) == 0 {
		return ErrEmptyRegistry
	}
	seen := make(map[string]bool, len(r))
	for _, dev := range r {
		if dev.Name == "" {
			return fmt.Errorf("%w: device with MAC %q has no name", ErrInvalidDevice, dev.MAC)
		}
		if seen[dev.Name] {
			return fmt.Errorf("%w: duplicate device name %q", ErrInvalidDevice, dev.Name)
		}
		seen[dev.Name] = true
		if _, err := net.ParseMAC(string(dev.MAC)); err != nil {
			return fmt.Errorf("%w: device %q: %v", ErrInvalidDevice, dev.Name, err)
		}
	}
	return nil
}

// Any reports whether the transition set is non-empty.
func (t Transitions) Any() bool {
	return len(t.Arrived) > 0 || len(t.Left) > 0
}
