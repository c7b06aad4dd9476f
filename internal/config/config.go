package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefixSplitter and envPrefixReassembler namespace the environment
// variables of the two roles so both can run on the same host.
const (
	envPrefixSplitter    = "OSC_SPLITTER_"
	envPrefixReassembler = "OSC_REASSEMBLER_"
)

// SplitterConfig represents the complete splitter configuration
type SplitterConfig struct {
	Listen       Endpoint `yaml:"listen" envPrefix:"LISTEN_"`
	Target       Endpoint `yaml:"target" envPrefix:"TARGET_"`
	InputAddress string   `yaml:"input_address" env:"INPUT_ADDRESS"`
	OutputPrefix string   `yaml:"output_prefix" env:"OUTPUT_PREFIX"`

	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	Monitoring MonitoringConfig `yaml:"monitoring" envPrefix:"MONITORING_"`
	Tap        TapConfig        `yaml:"tap" envPrefix:"TAP_"`
}

// ReassemblerConfig represents the complete reassembler configuration
type ReassemblerConfig struct {
	Listen        Endpoint `yaml:"listen" envPrefix:"LISTEN_"`
	Target        Endpoint `yaml:"target" envPrefix:"TARGET_"`
	InputPrefix   string   `yaml:"input_prefix" env:"INPUT_PREFIX"`
	OutputAddress string   `yaml:"output_address" env:"OUTPUT_ADDRESS"`
	ValueCount    int      `yaml:"value_count" env:"VALUE_COUNT"`

	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	Monitoring MonitoringConfig `yaml:"monitoring" envPrefix:"MONITORING_"`
	Tap        TapConfig        `yaml:"tap" envPrefix:"TAP_"`
}

// Endpoint identifies one UDP host and port pair
type Endpoint struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

// ServerConfig contains UDP server tuning parameters
type ServerConfig struct {
	Workers    int `yaml:"workers" env:"WORKERS"`
	QueueSize  int `yaml:"queue_size" env:"QUEUE_SIZE"`
	ReadBuffer int `yaml:"read_buffer" env:"READ_BUFFER"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// MonitoringConfig contains the HTTP monitoring server configuration
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Address string `yaml:"address" env:"ADDRESS"`
	Port    int    `yaml:"port" env:"PORT"`
}

// TapConfig contains the optional MQTT tap configuration
type TapConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	BrokerURL string `yaml:"broker_url" env:"BROKER_URL"`
	Topic     string `yaml:"topic" env:"TOPIC"`
	ClientID  string `yaml:"client_id" env:"CLIENT_ID"`
	Username  string `yaml:"username" env:"USERNAME"`
	Password  string `yaml:"password" env:"PASSWORD"`
	QoS       int    `yaml:"qos" env:"QOS"`
}

// DefaultSplitterConfig returns the splitter defaults: listen on
// 0.0.0.0:12000 for /wek/outputs and fan out to 127.0.0.1:12001 under
// /parsed/output-.
func DefaultSplitterConfig() *SplitterConfig {
	return &SplitterConfig{
		Listen:       Endpoint{Host: "0.0.0.0", Port: 12000},
		Target:       Endpoint{Host: "127.0.0.1", Port: 12001},
		InputAddress: "/wek/outputs",
		OutputPrefix: "/parsed/output-",
		Server:       defaultServerConfig(),
		Logging:      defaultLoggingConfig(),
		Monitoring:   MonitoringConfig{Enabled: false, Address: "0.0.0.0", Port: 9090},
		Tap:          defaultTapConfig("osc-bridge/splitter"),
	}
}

// DefaultReassemblerConfig returns the reassembler defaults: listen on
// 0.0.0.0:12001 for /parsed/output-* and emit /wek/outputs with five values
// to 127.0.0.1:12000.
func DefaultReassemblerConfig() *ReassemblerConfig {
	return &ReassemblerConfig{
		Listen:        Endpoint{Host: "0.0.0.0", Port: 12001},
		Target:        Endpoint{Host: "127.0.0.1", Port: 12000},
		InputPrefix:   "/parsed/output-",
		OutputAddress: "/wek/outputs",
		ValueCount:    5,
		Server:        defaultServerConfig(),
		Logging:       defaultLoggingConfig(),
		Monitoring:    MonitoringConfig{Enabled: false, Address: "0.0.0.0", Port: 9091},
		Tap:           defaultTapConfig("osc-bridge/reassembler"),
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Workers:    4,
		QueueSize:  1024,
		ReadBuffer: 65536,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}

func defaultTapConfig(topic string) TapConfig {
	return TapConfig{
		Enabled:   false,
		BrokerURL: "tcp://localhost:1883",
		Topic:     topic,
		QoS:       0,
	}
}

// LoadSplitter builds the splitter configuration by layering an optional
// YAML file and OSC_SPLITTER_* environment variables over the defaults.
// Callers apply flag overrides afterwards and then call Validate.
func LoadSplitter(path string) (*SplitterConfig, error) {
	config := DefaultSplitterConfig()

	if path != "" {
		if err := loadYAML(path, config); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefixSplitter}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return config, nil
}

// LoadReassembler builds the reassembler configuration by layering an
// optional YAML file and OSC_REASSEMBLER_* environment variables over the
// defaults. Callers apply flag overrides afterwards and then call Validate.
func LoadReassembler(path string) (*ReassemblerConfig, error) {
	config := DefaultReassemblerConfig()

	if path != "" {
		if err := loadYAML(path, config); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefixReassembler}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return config, nil
}

// loadYAML overlays the file at path onto config, which already carries the
// defaults, so omitted keys keep their default values.
func loadYAML(path string, config any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate performs comprehensive validation of the splitter configuration
func (c *SplitterConfig) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen config: %w", err)
	}

	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target config: %w", err)
	}

	if err := validateAddressPattern("input_address", c.InputAddress); err != nil {
		return err
	}

	if err := validateAddressPattern("output_prefix", c.OutputPrefix); err != nil {
		return err
	}

	return c.validateSections()
}

func (c *SplitterConfig) validateSections() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	if err := c.Tap.Validate(); err != nil {
		return fmt.Errorf("tap config: %w", err)
	}

	return nil
}

// Validate performs comprehensive validation of the reassembler configuration
func (c *ReassemblerConfig) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen config: %w", err)
	}

	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target config: %w", err)
	}

	if err := validateAddressPattern("input_prefix", c.InputPrefix); err != nil {
		return err
	}

	if err := validateAddressPattern("output_address", c.OutputAddress); err != nil {
		return err
	}

	if c.ValueCount < 1 {
		return fmt.Errorf("value_count must be at least 1, got %d", c.ValueCount)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	if err := c.Tap.Validate(); err != nil {
		return fmt.Errorf("tap config: %w", err)
	}

	return nil
}

// Validate validates one UDP endpoint
func (e *Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", e.Port)
	}

	return nil
}

// Addr returns the endpoint as a host:port string
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Validate validates UDP server configuration
func (s *ServerConfig) Validate() error {
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	if s.ReadBuffer < 1024 {
		return fmt.Errorf("read_buffer must be at least 1024 bytes, got %d", s.ReadBuffer)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path; any non-empty value is valid.
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// Validate validates monitoring configuration
func (m *MonitoringConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("address cannot be empty when monitoring is enabled")
		}
	}

	return nil
}

// Addr returns the monitoring listen address as a host:port string
func (m *MonitoringConfig) Addr() string {
	return net.JoinHostPort(m.Address, strconv.Itoa(m.Port))
}

// Validate validates tap configuration
func (t *TapConfig) Validate() error {
	if t.Enabled {
		if t.BrokerURL == "" {
			return fmt.Errorf("broker_url cannot be empty when the tap is enabled")
		}

		if t.Topic == "" {
			return fmt.Errorf("topic cannot be empty when the tap is enabled")
		}

		if t.QoS < 0 || t.QoS > 2 {
			return fmt.Errorf("qos must be 0, 1 or 2, got %d", t.QoS)
		}
	}

	return nil
}

// validateAddressPattern checks that a configured address or prefix looks
// like an OSC address: non-empty and starting with '/'.
func validateAddressPattern(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	if value[0] != '/' {
		return fmt.Errorf("%s must start with '/', got '%s'", field, value)
	}

	return nil
}

// Sanitized returns the splitter configuration as a map for the monitoring
// API, with credentials removed.
func (c *SplitterConfig) Sanitized() map[string]interface{} {
	return map[string]interface{}{
		"listen":        map[string]interface{}{"host": c.Listen.Host, "port": c.Listen.Port},
		"target":        map[string]interface{}{"host": c.Target.Host, "port": c.Target.Port},
		"input_address": c.InputAddress,
		"output_prefix": c.OutputPrefix,
		"server":        c.Server.sanitized(),
		"logging":       c.Logging.sanitized(),
		"monitoring":    c.Monitoring.sanitized(),
		"tap":           c.Tap.sanitized(),
	}
}

// Sanitized returns the reassembler configuration as a map for the
// monitoring API, with credentials removed.
func (c *ReassemblerConfig) Sanitized() map[string]interface{} {
	return map[string]interface{}{
		"listen":         map[string]interface{}{"host": c.Listen.Host, "port": c.Listen.Port},
		"target":         map[string]interface{}{"host": c.Target.Host, "port": c.Target.Port},
		"input_prefix":   c.InputPrefix,
		"output_address": c.OutputAddress,
		"value_count":    c.ValueCount,
		"server":         c.Server.sanitized(),
		"logging":        c.Logging.sanitized(),
		"monitoring":     c.Monitoring.sanitized(),
		"tap":            c.Tap.sanitized(),
	}
}

func (s *ServerConfig) sanitized() map[string]interface{} {
	return map[string]interface{}{
		"workers":     s.Workers,
		"queue_size":  s.QueueSize,
		"read_buffer": s.ReadBuffer,
	}
}

func (l *LoggingConfig) sanitized() map[string]interface{} {
	return map[string]interface{}{
		"level":  l.Level,
		"format": l.Format,
		"output": l.Output,
	}
}

func (m *MonitoringConfig) sanitized() map[string]interface{} {
	return map[string]interface{}{
		"enabled": m.Enabled,
		"address": m.Address,
		"port":    m.Port,
	}
}

func (t *TapConfig) sanitized() map[string]interface{} {
	// Note: the password is intentionally omitted.
	return map[string]interface{}{
		"enabled":    t.Enabled,
		"broker_url": t.BrokerURL,
		"topic":      t.Topic,
		"client_id":  t.ClientID,
		"username":   t.Username,
		"qos":        t.QoS,
	}
}
