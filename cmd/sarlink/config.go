package main

import (
	"fmt"
	"time"

	"github.com/appnet-org/meshsar/pkg/logging"
	"github.com/appnet-org/meshsar/pkg/packet"
	"github.com/appnet-org/meshsar/pkg/transport"
	"github.com/caarlos0/env/v11"
)

const (
	ModeSend = "send"
	ModeRecv = "recv"
	ModeDump = "dump"
)

// Config holds the sarlink configuration, read from the environment.
type Config struct {
	Mode          string        `env:"SARLINK_MODE" envDefault:"recv"`
	Listen        string        `env:"SARLINK_LISTEN" envDefault:"127.0.0.1:17000"`
	Peer          string        `env:"SARLINK_PEER"`
	MTU           int           `env:"SARLINK_MTU" envDefault:"23"`
	SegmentSize   int           `env:"SARLINK_SEGMENT_SIZE" envDefault:"0"`
	PduType       string        `env:"SARLINK_PDU_TYPE" envDefault:"NetworkPdu"`
	Strict        bool          `env:"SARLINK_STRICT" envDefault:"false"`
	StatsInterval time.Duration `env:"SARLINK_STATS_INTERVAL" envDefault:"0s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadConfig parses the configuration from environ, or from the process
// environment when environ is nil.
func LoadConfig(environ map[string]string) (*Config, error) {
	var cfg Config
	var err error
	if environ == nil {
		err = env.Parse(&cfg)
	} else {
		err = env.ParseWithOptions(&cfg, env.Options{Environment: environ})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse sarlink config: %w", err)
	}
	return &cfg, nil
}

// Validate checks mode-specific requirements.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSend:
		if c.Peer == "" {
			return fmt.Errorf("mode %q requires SARLINK_PEER", c.Mode)
		}
	case ModeRecv, ModeDump:
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", c.Mode, ModeSend, ModeRecv, ModeDump)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("negative stats interval %s", c.StatsInterval)
	}
	if _, err := c.ResolveSegmentSize(); err != nil {
		return err
	}
	if _, err := c.ResolvePduType(); err != nil {
		return err
	}
	return nil
}

// ResolveSegmentSize returns SARLINK_SEGMENT_SIZE when set, otherwise the
// capacity derived from SARLINK_MTU.
func (c *Config) ResolveSegmentSize() (int, error) {
	if c.SegmentSize != 0 {
		if c.SegmentSize < 1 {
			return 0, fmt.Errorf("%w: %d", transport.ErrInvalidSegmentSize, c.SegmentSize)
		}
		return c.SegmentSize, nil
	}
	return transport.SegmentSizeForMTU(c.MTU)
}

// ResolvePduType parses SARLINK_PDU_TYPE.
func (c *Config) ResolvePduType() (packet.PduType, error) {
	return packet.ParsePduType(c.PduType)
}

// LoggingConfig returns the logging settings.
func (c *Config) LoggingConfig() *logging.Config {
	return &logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
	}
}
