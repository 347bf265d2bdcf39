package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"relloyd/bluepresence/models"
)

var (
	ErrorDevicesJSON = fmt.Errorf("invalid PHONE_MACS JSON")
	devicesFileMu    sync.Mutex
)

// DevicesConfig represents the YAML registry saved to disk.
type DevicesConfig struct {
	Devices models.Registry `yaml:"devices"` // ordered list of name + mac
}

// LoadRegistry returns the device registry from PHONE_MACS if set, else from the devices file.
func LoadRegistry(logger *zap.SugaredLogger, cfg *AppConfig) (models.Registry, error) {
	var (
		r   models.Registry
		err error
	)
	if strings.TrimSpace(cfg.PhoneMACs) != "" {
		r, err = ParsePhoneMACs(cfg.PhoneMACs)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %d devices from PHONE_MACS", len(r))
	} else {
		dc, err := GetConfig[DevicesConfig](&devicesFileMu, cfg.DevicesFile, func() DevicesConfig { return DevicesConfig{} })
		if err != nil {
			return nil, fmt.Errorf("failed to load devices file %q: %w", cfg.DevicesFile, err)
		}
		r = dc.Devices
		logger.Infof("Loaded %d devices from %v", len(r), cfg.DevicesFile)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ParsePhoneMACs decodes a JSON object of name to MAC, keeping the key order of the input.
func ParsePhoneMACs(s string) (models.Registry, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrorDevicesJSON, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected an object", ErrorDevicesJSON)
	}

	var r models.Registry
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrorDevicesJSON, err)
		}
		name := tok.(string) // object keys are always strings
		var mac string
		if err := dec.Decode(&mac); err != nil {
			return nil, fmt.Errorf("%w: device %q: %v", ErrorDevicesJSON, name, err)
		}
		r = append(r, models.Device{Name: name, MAC: models.NewMAC(mac)})
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return nil, fmt.Errorf("%w: %v", ErrorDevicesJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the object", ErrorDevicesJSON)
	}
	return r, nil
}
