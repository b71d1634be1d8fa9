package client

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/skycoin/sgip/pkg/session"
)

// Version of the configuration format.
const Version = "1.0"

// DefaultConnectTimeout bounds the TCP dial.
const DefaultConnectTimeout = session.Duration(10 * time.Second)

// Backoff between dial retries, doubled after every failure.
const (
	retryBackoff = 200 * time.Millisecond
	retryFactor  = 2
)

// ConnectionConfig locates the gateway.
type ConnectionConfig struct {
	Host           string           `json:"host" yaml:"host"`
	Port           int              `json:"port" yaml:"port"`
	ConnectTimeout session.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	// RetryThreshold bounds how long failed dials are retried. Zero
	// disables retries.
	RetryThreshold session.Duration `json:"retry_threshold" yaml:"retry_threshold"`
}

// Address returns host:port.
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsConfig configures the Prometheus endpoint of the CLI.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr      string `json:"addr" yaml:"addr"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Config is the configuration of one SGIP client connection.
type Config struct {
	Version    string           `json:"version" yaml:"version"`
	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Session    session.Config   `json:"session" yaml:"session"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns a Config pointing at a local gateway on the
// standard SGIP port.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Connection: ConnectionConfig{
			Host:           "127.0.0.1",
			Port:           8801,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Session: session.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: "sgip",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Connection.Host == "" {
		return errors.New("connection.host is required")
	}
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return errors.Errorf("connection.port out of range: %d", c.Connection.Port)
	}
	if c.Connection.RetryThreshold < 0 {
		return errors.New("connection.retry_threshold must be >= 0")
	}
	return errors.Wrap(c.Session.Validate(), "session")
}

// ReadConfig reads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Missing fields keep their
// defaults.
func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config")
	}
	defer f.Close() // nolint: errcheck

	return DecodeConfig(f, isYAML(path))
}

// DecodeConfig decodes a configuration from r on top of DefaultConfig.
func DecodeConfig(r io.Reader, asYAML bool) (*Config, error) {
	conf := DefaultConfig()
	var err error
	if asYAML {
		err = yaml.NewDecoder(r).Decode(conf)
	} else {
		err = json.NewDecoder(r).Decode(conf)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
