// Package led drives a board status LED to show whether Bluetooth scanning is degraded.
package led

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

var (
	sysfsPath = "/sys/class/leds"
)

// Profile describes the sysfs values that put an LED into the degraded and normal patterns.
type Profile struct {
	Name               string
	DegradedTrigger    string
	DegradedBrightness string
	NormalTrigger      string
	NormalBrightness   string
}

// Boards known to carry a user-controllable status LED.
var knownProfiles = []Profile{
	{ // OrangePiZero3
		Name:             "red:status",
		DegradedTrigger:  "heartbeat",
		NormalTrigger:    "none",
		NormalBrightness: "0",
	},
	{ // RaspberryPi Zero 2w / 3 / 4
		Name:             "ACT",
		DegradedTrigger:  "heartbeat",
		NormalTrigger:    "default-on",
		NormalBrightness: "1",
	},
}

// Indicator shows the scan state on the first LED found. Without an LED it only logs.
type Indicator struct {
	logger   *zap.SugaredLogger
	profile  Profile
	base     string
	exists   bool
	mu       sync.Mutex
	degraded *bool
}

// NewIndicator picks the LED named by override, or else the first known board LED present.
func NewIndicator(logger *zap.SugaredLogger, override string) *Indicator {
	profiles := knownProfiles
	if override != "" {
		profiles = []Profile{{
			Name:             override,
			DegradedTrigger:  "heartbeat",
			NormalTrigger:    "none",
			NormalBrightness: "0",
		}}
	}

	for _, p := range profiles {
		base := filepath.Join(sysfsPath, p.Name)
		if _, err := os.Stat(base); err == nil {
			logger.Infof("Using status LED %v", p.Name)
			return &Indicator{logger: logger, profile: p, base: base, exists: true}
		}
	}

	logger.Info("No status LED found, scan state will only be logged")
	return &Indicator{logger: logger}
}

// ShowDegraded sets the LED pattern. Repeated calls with the same state are no-ops.
func (i *Indicator) ShowDegraded(degraded bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.degraded != nil && *i.degraded == degraded {
		return
	}
	i.degraded = &degraded

	if degraded {
		i.logger.Warn("Bluetooth scanning degraded")
	} else {
		i.logger.Info("Bluetooth scanning healthy")
	}
	if !i.exists {
		return
	}

	if degraded {
		i.write("trigger", i.profile.DegradedTrigger)
		i.write("brightness", i.profile.DegradedBrightness)
		return
	}
	i.write("trigger", i.profile.NormalTrigger)
	i.write("brightness", i.profile.NormalBrightness)
}

// write sets a sysfs attribute of the LED, skipping empty values.
func (i *Indicator) write(attr, value string) {
	if value == "" {
		return
	}
	path := filepath.Join(i.base, attr)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		i.logger.Warnf("Failed to write %q to %v: %v", value, path, err)
	}
}
