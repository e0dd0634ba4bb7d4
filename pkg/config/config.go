// Package config loads the navcomm connection list from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/logging"
)

const DefaultFile = "navcomm.toml"

type Config struct {
	Log         logging.Config `toml:"log"`
	QueueSize   int            `toml:"queue_size,omitempty"`
	Connections []Connection   `toml:"connection"`
}

// Connection is one [[connection]] table.
type Connection struct {
	Name              string `toml:"name,omitempty"`
	Enabled           bool   `toml:"enabled"`
	Transport         string `toml:"transport"`
	Protocol          string `toml:"protocol,omitempty"`
	Port              string `toml:"port,omitempty"`
	Baudrate          int    `toml:"baudrate,omitempty"`
	Host              string `toml:"host,omitempty"`
	NetPort           int    `toml:"net_port,omitempty"`
	NetProtocol       string `toml:"net_protocol,omitempty"`
	Interface         string `toml:"interface,omitempty"`
	ReconnectAttempts uint   `toml:"reconnect_attempts,omitempty"`
	ReadTimeout       string `toml:"read_timeout,omitempty"`
}

func Default() *Config {
	return &Config{
		Log: logging.Config{Level: "info"},
		Connections: []Connection{
			{
				Name:      "gps",
				Enabled:   false,
				Transport: "serial",
				Protocol:  "nmea0183",
				Port:      "/dev/ttyUSB0",
				Baudrate:  navcomm.DefaultNMEA0183Baudrate,
			},
		},
	}
}

// Load reads path. A missing file is created with the default config.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// Enabled returns the connections that should be opened.
func (c *Config) Enabled() []Connection {
	var out []Connection
	for _, conn := range c.Connections {
		if conn.Enabled {
			out = append(out, conn)
		}
	}
	return out
}

// Params converts the table to validated connection parameters.
func (c *Connection) Params() (*navcomm.ConnectionParams, error) {
	transport, err := navcomm.ParseTransport(c.Transport)
	if err != nil {
		return nil, err
	}
	protocol, err := navcomm.ParseProtocol(c.Protocol)
	if err != nil {
		return nil, err
	}
	netProtocol, err := navcomm.ParseNetProtocol(c.NetProtocol)
	if err != nil {
		return nil, err
	}
	p := &navcomm.ConnectionParams{
		Transport:         transport,
		Protocol:          protocol,
		Port:              c.Port,
		Baudrate:          c.Baudrate,
		Host:              c.Host,
		NetPort:           c.NetPort,
		NetProtocol:       netProtocol,
		Interface:         c.Interface,
		ReconnectAttempts: c.ReconnectAttempts,
	}
	if c.ReadTimeout != "" {
		d, err := time.ParseDuration(c.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("read_timeout: %w", err)
		}
		p.ReadTimeout = d
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// FromParams is the inverse of Params, used when adding connections.
func FromParams(name string, p *navcomm.ConnectionParams) Connection {
	c := Connection{
		Name:              name,
		Enabled:           true,
		Transport:         p.Transport.String(),
		Port:              p.Port,
		Baudrate:          p.Baudrate,
		Host:              p.Host,
		NetPort:           p.NetPort,
		Interface:         p.Interface,
		ReconnectAttempts: p.ReconnectAttempts,
	}
	if p.Protocol != navcomm.ProtocolUndefined {
		c.Protocol = p.Protocol.String()
	}
	if p.NetProtocol != navcomm.NetUndefined {
		c.NetProtocol = p.NetProtocol.String()
	}
	if p.ReadTimeout > 0 {
		c.ReadTimeout = p.ReadTimeout.String()
	}
	return c
}
