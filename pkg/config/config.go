// Package config loads the emulator daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/ioboard.go/pkg/proto"
)

// Config configures the emulator daemon.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Listen string       `yaml:"listen"` // websocket listen address, e.g. :8980
	Board  BoardConfig  `yaml:"board"`
	TickMs int          `yaml:"tick_ms"`
}

// SerialConfig selects a serial port to serve the protocol on.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// BoardConfig overrides the simulated board capabilities. Zero
// fields keep the defaults.
type BoardConfig struct {
	Pins  byte `yaml:"pins"`
	PWMs  byte `yaml:"pwms"`
	UARTs byte `yaml:"uarts"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{BaudRate: 115200},
		TickMs: 10,
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	conf := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse %s: %v", path, err)
	}
	return conf, nil
}

// ProtoBoard resolves the board description.
func (c *Config) ProtoBoard() proto.Board {
	b := proto.DefaultBoard
	if c.Board.Pins != 0 {
		b.NumPins = c.Board.Pins
	}
	if c.Board.PWMs != 0 {
		b.NumPWMs = c.Board.PWMs
	}
	if c.Board.UARTs != 0 {
		b.NumUARTs = c.Board.UARTs
	}
	return b
}

// TickInterval resolves the link scheduling interval.
func (c *Config) TickInterval() time.Duration {
	if c.TickMs <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(c.TickMs) * time.Millisecond
}
