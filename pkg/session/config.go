package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/skycoin/sgip/pkg/sgip"
)

// Default timings used by DefaultConfig.
const (
	DefaultBindTimeout       = Duration(5 * time.Second)
	DefaultWindowWaitTimeout = Duration(30 * time.Second)
	DefaultWindowSize        = 1
)

// Config holds per session parameters. Negative durations disable the
// matching timer.
type Config struct {
	Name          string `json:"name" yaml:"name"`
	SourceNodeID  uint32 `json:"source_node_id" yaml:"source_node_id"`
	LoginType     uint8  `json:"login_type" yaml:"login_type"`
	LoginName     string `json:"login_name" yaml:"login_name"`
	LoginPassword string `json:"login_password" yaml:"login_password"`

	LogPduEnabled   bool `json:"log_pdu" yaml:"log_pdu"`
	LogBytesEnabled bool `json:"log_bytes" yaml:"log_bytes"`

	BindTimeout           Duration `json:"bind_timeout" yaml:"bind_timeout"`
	WriteTimeout          Duration `json:"write_timeout" yaml:"write_timeout"`
	RequestExpiryTimeout  Duration `json:"request_expiry_timeout" yaml:"request_expiry_timeout"`
	WindowWaitTimeout     Duration `json:"window_wait_timeout" yaml:"window_wait_timeout"`
	WindowMonitorInterval Duration `json:"window_monitor_interval" yaml:"window_monitor_interval"`
	WindowSize            int      `json:"window_size" yaml:"window_size"`

	// HandlerPoolSize > 0 dispatches inbound requests to a worker pool of
	// that size instead of the transport read loop.
	HandlerPoolSize int `json:"handler_pool_size" yaml:"handler_pool_size"`
}

// DefaultConfig returns a Config for an SP logging into an SMG.
func DefaultConfig() Config {
	return Config{
		Name:                  "sgip",
		LoginType:             sgip.LoginSPToSMG,
		LogPduEnabled:         true,
		BindTimeout:           DefaultBindTimeout,
		RequestExpiryTimeout:  -1,
		WindowWaitTimeout:     DefaultWindowWaitTimeout,
		WindowMonitorInterval: -1,
		WindowSize:            DefaultWindowSize,
	}
}

// Validate checks values that would make a session unusable.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return errors.Errorf("window_size must be > 0, got %d", c.WindowSize)
	}
	if len(c.LoginName) > 16 {
		return errors.Errorf("login_name longer than 16 bytes: %q", c.LoginName)
	}
	if len(c.LoginPassword) > 16 {
		return errors.New("login_password longer than 16 bytes")
	}
	if c.HandlerPoolSize < 0 {
		return errors.Errorf("handler_pool_size must be >= 0, got %d", c.HandlerPoolSize)
	}
	return nil
}

// Duration wraps time.Duration to read either a number of nanoseconds or
// a duration string such as "5s".
type Duration time.Duration

// D returns the value as time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json marshaling
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements unmarshal from json
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case int:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
	default:
		return errors.New("invalid duration")
	}
	return nil
}
