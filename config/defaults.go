package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var (
	AppHomeDir = ".bluepresence"
	// AppCfg is the application configuration.
	AppCfg AppConfig
	// BuildTime is set by the go build command - probably see the Makefile.
	BuildTime string
	// BuildVersion is set by the go build command - probably see the Makefile.
	BuildVersion string
)

func init() {
	// Load app config from the environment.
	err := envconfig.Process("", &AppCfg)
	if err != nil {
		fmt.Println("failed to process app config:", err)
		os.Exit(1)
	}
}

type AppConfig struct {
	LogLevel       string         `envconfig:"LOG_LEVEL" default:"info"`
	DelayStart     bool           `envconfig:"DELAY_START" default:"false"`
	DebugConfig    DebugConfig    `envconfig:"DEBUG"`
	PresenceConfig PresenceConfig `envconfig:"PRESENCE"`
	ScanConfig     ScanConfig     `envconfig:"SCAN"`
	RecoveryConfig RecoveryConfig `envconfig:"RECOVERY"`
	HubConfig      HubConfig      `envconfig:"HA"`
	MQTTConfig     MQTTConfig     `envconfig:"MQTT"`
	WebConfig      WebConfig      `envconfig:"WEB"`
	// PhoneMACs is a JSON object of device name to MAC address. It takes priority over DevicesFile.
	PhoneMACs string `envconfig:"PHONE_MACS"`
	// DevicesFile is the YAML registry file, relative to the app home dir unless absolute.
	DevicesFile string `envconfig:"DEVICES_FILE" default:"devices.yaml"`
	// LEDName selects a sysfs LED under /sys/class/leds instead of the known board LEDs.
	LEDName string `envconfig:"LED_NAME"`
	// LEDGPIOLine drives an LED wired to a GPIO line instead of a sysfs LED. Negative disables it.
	LEDGPIOLine int    `envconfig:"LED_GPIO_LINE" default:"-1"`
	LEDGPIOChip string `envconfig:"LED_GPIO_CHIP" default:"gpiochip0"`
}

type DebugConfig struct {
	// DebugEnabled when set true allows time for a dlv debug session to be started before continuing main.
	DebugEnabled bool `envconfig:"ENABLED" default:"false"`
	// DebugTime is the delay before starting main in which time you should connect a dlv debugging session.
	DebugTime time.Duration `envconfig:"TIME_SECONDS" default:"30s"`
}

type PresenceConfig struct {
	// Timeout is how long a device stays present after it was last detected.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5m"`
}

type ScanConfig struct {
	Interval     time.Duration `envconfig:"INTERVAL" default:"10s"`
	PingTimeout  time.Duration `envconfig:"PING_TIMEOUT" default:"3s"`
	Command      string        `envconfig:"COMMAND" default:"l2ping"`
	// PingWaitSeconds is passed to l2ping -t.
	PingWaitSeconds int `envconfig:"PING_WAIT_SECONDS" default:"2"`
}

type RecoveryConfig struct {
	// FailureThreshold is the number of consecutive failing scan cycles before recovery runs. Zero disables recovery.
	FailureThreshold int `envconfig:"FAILURE_THRESHOLD" default:"15"`
	// Adapter is the HCI device index, e.g. 0 for hci0.
	Adapter int `envconfig:"ADAPTER" default:"0"`
	// Command replaces the HCI reset when set, e.g. "hciconfig hci0 reset".
	Command string        `envconfig:"COMMAND"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type HubConfig struct {
	URL          string        `envconfig:"URL"`
	Token        string        `envconfig:"TOKEN"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"5s"`
	EntityPrefix string        `envconfig:"ENTITY_PREFIX" default:"bluetooth"`
	// Discover looks for Home Assistant over mDNS when URL is empty.
	Discover        bool          `envconfig:"DISCOVER" default:"false"`
	DiscoverTimeout time.Duration `envconfig:"DISCOVER_TIMEOUT" default:"10s"`
}

type MQTTConfig struct {
	Enabled     bool   `envconfig:"ENABLED" default:"false"`
	Broker      string `envconfig:"BROKER" default:"tcp://localhost:1883"`
	ClientID    string `envconfig:"CLIENT_ID" default:"bluepresence"`
	TopicPrefix string `envconfig:"TOPIC_PREFIX" default:"bluepresence"`
}

type WebConfig struct {
	WebEnabled bool `envconfig:"ENABLED" default:"true"`
	WebPort    int  `envconfig:"PORT" default:"8080"`
	// MaxScanAge is the longest gap since the last scan that still counts as healthy.
	MaxScanAge time.Duration `envconfig:"MAX_SCAN_AGE" default:"30s"`
	// MaxErrorCount is the consecutive failing cycle count at which the service reports unhealthy.
	MaxErrorCount int `envconfig:"MAX_ERROR_COUNT" default:"10"`
}

// Validate checks the values that the presence engine relies on.
func (c *AppConfig) Validate() error {
	if c.PresenceConfig.Timeout <= 0 {
		return fmt.Errorf("PRESENCE_TIMEOUT must be positive, got %v", c.PresenceConfig.Timeout)
	}
	if c.ScanConfig.Interval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %v", c.ScanConfig.Interval)
	}
	if c.ScanConfig.PingTimeout <= 0 {
		return fmt.Errorf("SCAN_PING_TIMEOUT must be positive, got %v", c.ScanConfig.PingTimeout)
	}
	if c.RecoveryConfig.FailureThreshold < 0 {
		return fmt.Errorf("RECOVERY_FAILURE_THRESHOLD must not be negative, got %v", c.RecoveryConfig.FailureThreshold)
	}
	if c.HubConfig.URL == "" && !c.HubConfig.Discover && !c.MQTTConfig.Enabled {
		return fmt.Errorf("no hub configured: set HA_URL, HA_DISCOVER or MQTT_ENABLED")
	}
	return nil
}
