package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/castwatch/castwatch/internal/discovery"
	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/publish"
	"github.com/castwatch/castwatch/internal/server"
)

// CurrentVersion is the only supported config file version
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	HTTP      HTTPConfig      `yaml:"http"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MonitorConfig controls the refresh loop.
type MonitorConfig struct {
	DeviceRefresh  Duration `yaml:"device_refresh"`  // How often discovery runs
	StatusRefresh  Duration `yaml:"status_refresh"`  // How often statuses are polled
	Retries        int      `yaml:"retries"`         // Extra attempts per device and cycle
	RetryDelay     Duration `yaml:"retry_delay"`     // Pause between attempts
	ConnectTimeout Duration `yaml:"connect_timeout"` // Bound on opening a device channel
	ReadTimeout    Duration `yaml:"read_timeout"`    // Bound on one status read
	Concurrency    int      `yaml:"concurrency"`     // Devices polled in parallel
}

// DiscoveryConfig controls mDNS browsing.
type DiscoveryConfig struct {
	Timeout Duration `yaml:"timeout"`
	Service string   `yaml:"service"`
	Domain  string   `yaml:"domain"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`
}

// MQTTConfig controls event publishing to a broker.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Retained    bool   `yaml:"retained"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; empty disables logging
	Format string `yaml:"format"` // console or json
}

// Duration is a time.Duration written as a Go duration string ("1s", "250ms").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"1s\": %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	mon := monitor.DefaultConfig()
	return &Config{
		Version: CurrentVersion,
		Monitor: MonitorConfig{
			DeviceRefresh:  Duration(mon.DeviceRefreshPeriod),
			StatusRefresh:  Duration(mon.StatusRefreshPeriod),
			Retries:        mon.Retries,
			RetryDelay:     Duration(mon.RetryDelay),
			ConnectTimeout: Duration(mon.ConnectTimeout),
			ReadTimeout:    Duration(mon.ReadTimeout),
			Concurrency:    mon.Concurrency,
		},
		Discovery: DiscoveryConfig{
			Timeout: Duration(discovery.DefaultScanTimeout),
			Service: discovery.ServiceType,
			Domain:  discovery.ServiceDomain,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    server.DefaultPort,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			ClientID:    "castwatch",
			TopicPrefix: publish.DefaultTopicPrefix,
			QoS:         1,
			Retained:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Version != CurrentVersion {
		add("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	for _, d := range []struct {
		key   string
		value Duration
	}{
		{"monitor.device_refresh", c.Monitor.DeviceRefresh},
		{"monitor.status_refresh", c.Monitor.StatusRefresh},
		{"monitor.connect_timeout", c.Monitor.ConnectTimeout},
		{"monitor.read_timeout", c.Monitor.ReadTimeout},
		{"discovery.timeout", c.Discovery.Timeout},
	} {
		if d.value <= 0 {
			add("%s must be positive, got %s", d.key, d.value)
		}
	}
	if c.Monitor.RetryDelay < 0 {
		add("monitor.retry_delay must not be negative, got %s", c.Monitor.RetryDelay)
	}
	if c.Monitor.Retries < 0 {
		add("monitor.retries must not be negative, got %d", c.Monitor.Retries)
	}
	if c.Monitor.Concurrency < 1 {
		add("monitor.concurrency must be at least 1, got %d", c.Monitor.Concurrency)
	}
	if c.Discovery.Service == "" {
		add("discovery.service must not be empty")
	}

	if c.HTTP.Enabled {
		if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
			add("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
		}
		if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
			add("http.tls_cert and http.tls_key must be set together")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			add("mqtt.broker must not be empty")
		}
		if c.MQTT.ClientID == "" {
			add("mqtt.client_id must not be empty")
		}
		if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			add("mqtt.topic_prefix must not contain wildcards, got %q", c.MQTT.TopicPrefix)
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		add("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		add("logging.format must be console or json, got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// MonitorSettings converts the monitor section for monitor.New.
func (c *Config) MonitorSettings() monitor.Config {
	return monitor.Config{
		DeviceRefreshPeriod: c.Monitor.DeviceRefresh.Std(),
		StatusRefreshPeriod: c.Monitor.StatusRefresh.Std(),
		Retries:             c.Monitor.Retries,
		RetryDelay:          c.Monitor.RetryDelay.Std(),
		ConnectTimeout:      c.Monitor.ConnectTimeout.Std(),
		ReadTimeout:         c.Monitor.ReadTimeout.Std(),
		Concurrency:         c.Monitor.Concurrency,
	}
}

// Scanner builds the mDNS scanner from the discovery section.
func (c *Config) Scanner() *discovery.Scanner {
	s := discovery.NewScanner()
	s.Timeout = c.Discovery.Timeout.Std()
	s.Service = c.Discovery.Service
	s.Domain = c.Discovery.Domain
	return s
}

// ServerSettings converts the http section for server.New.
func (c *Config) ServerSettings() server.Config {
	return server.Config{
		Host:     c.HTTP.Host,
		Port:     c.HTTP.Port,
		CertPath: c.HTTP.TLSCert,
		KeyPath:  c.HTTP.TLSKey,
	}
}

// PublishSettings converts the mqtt section for publish.Connect.
func (c *Config) PublishSettings() publish.Config {
	return publish.Config{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Username:       c.MQTT.Username,
		Password:       c.MQTT.Password,
		TopicPrefix:    c.MQTT.TopicPrefix,
		QoS:            byte(c.MQTT.QoS), //nolint:gosec // range checked by Validate
		Retained:       c.MQTT.Retained,
		ConnectTimeout: c.Monitor.ConnectTimeout.Std(),
	}
}
