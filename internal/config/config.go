// Package config loads the receiver configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/hc-receiver/internal/gpio"
)

// Controller binds a controller identifier to the GPIO pin its data line is
// wired to.
type Controller struct {
	ID  int `yaml:"id"`
	Pin int `yaml:"pin"`
}

// Config is the daemon configuration.
type Config struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Chip        string        `yaml:"chip"`
	HTTP        string        `yaml:"http"`
	WSBroker    string        `yaml:"ws_broker"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	Devices     string        `yaml:"devices"`
	QueueSize   int           `yaml:"queue_size"`
	Controllers []Controller  `yaml:"controllers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Broker:      "tcp://192.168.1.200:1883",
		Chip:        gpio.DefaultChip,
		HTTP:        ":80",
		WSBroker:    "=broker",
		Heartbeat:   15 * time.Minute,
		LogLevel:    "info",
		LogFormat:   "console",
		QueueSize:   16,
		Controllers: []Controller{{ID: 1, Pin: gpio.DefaultPin}},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. A controllers list in the document
// replaces the default list.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	cfg.Controllers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Controllers == nil {
		cfg.Controllers = Default().Controllers
	}
	return cfg, nil
}

// Finish fills derived values. It assigns a random MQTT client id when none
// is configured so several receivers can share a broker.
func (c *Config) Finish() {
	if c.ClientID == "" {
		c.ClientID = "hc-receiver-" + uuid.NewString()[:8]
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return fmt.Errorf("broker is required")
	}
	if strings.TrimSpace(c.Chip) == "" {
		return fmt.Errorf("chip is required")
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	if len(c.Controllers) == 0 {
		return fmt.Errorf("at least one controller is required")
	}
	ids := make(map[int]bool)
	pins := make(map[int]bool)
	for i, ctl := range c.Controllers {
		if ctl.Pin < 0 {
			return fmt.Errorf("controller[%d]: pin %d is invalid", i, ctl.Pin)
		}
		if ids[ctl.ID] {
			return fmt.Errorf("controller[%d]: id %d is used twice", i, ctl.ID)
		}
		if pins[ctl.Pin] {
			return fmt.Errorf("controller[%d]: pin %d is used twice", i, ctl.Pin)
		}
		ids[ctl.ID] = true
		pins[ctl.Pin] = true
	}
	return nil
}

// ParseControllers parses a "id:pin,id:pin" list as given on the command line.
func ParseControllers(s string) ([]Controller, error) {
	var out []Controller
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, pinStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("controller %q: want id:pin", part)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("controller %q: id: %w", part, err)
		}
		pin, err := strconv.Atoi(pinStr)
		if err != nil {
			return nil, fmt.Errorf("controller %q: pin: %w", part, err)
		}
		out = append(out, Controller{ID: id, Pin: pin})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no controllers in %q", s)
	}
	return out, nil
}
