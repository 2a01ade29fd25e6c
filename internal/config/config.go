// Package config loads the gateway's YAML configuration file, modeled on
// the same defaults-then-overlay pattern the rest of this codebase's
// sibling tools use: a struct is seeded with documented defaults, then
// yaml.Unmarshal overlays whatever the operator's file actually sets.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Session SessionConfig `yaml:"session"`
	Reaper  ReaperConfig  `yaml:"reaper"`
	Decoder DecoderConfig `yaml:"decoder"`
	Publish PublishConfig `yaml:"publish"`
	Command CommandConfig `yaml:"command"`
	Log     LogConfig     `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type ListenConfig struct {
	Port int `yaml:"port"`
}

type SessionConfig struct {
	IdleTimeoutS       int `yaml:"idle_timeout_s"`
	UnauthTimeoutS     int `yaml:"unauth_timeout_s"`
	TouchMinIntervalMs int `yaml:"touch_min_interval_ms"`
}

func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutS) * time.Second
}

func (s SessionConfig) UnauthTimeout() time.Duration {
	return time.Duration(s.UnauthTimeoutS) * time.Second
}

func (s SessionConfig) TouchMinInterval() time.Duration {
	return time.Duration(s.TouchMinIntervalMs) * time.Millisecond
}

type ReaperConfig struct {
	IntervalS int `yaml:"interval_s"`
}

func (r ReaperConfig) Interval() time.Duration {
	return time.Duration(r.IntervalS) * time.Second
}

type DecoderConfig struct {
	MaxFrameBytes     int `yaml:"max_frame_bytes"`
	SearchWindowBytes int `yaml:"search_window_bytes"`
}

type PublishConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	RetryMax      int `yaml:"retry_max"`
}

type CommandConfig struct {
	RetryMax int `yaml:"retry_max"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"` // empty means stderr
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	SessionTopic   string   `yaml:"session_topic"`
	TelemetryTopic string   `yaml:"telemetry_topic"`
	CommandTopic   string   `yaml:"command_topic"`
	LocationTopic  string   `yaml:"location_topic"`
	CommandGroupID string   `yaml:"command_group_id"`
}

// Load reads and parses the YAML file at path, applying the gateway's
// documented defaults first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the gateway's configuration with every documented
// default populated.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 5023},
		Session: SessionConfig{
			IdleTimeoutS:       600,
			UnauthTimeoutS:     60,
			TouchMinIntervalMs: 1000,
		},
		Reaper: ReaperConfig{IntervalS: 60},
		Decoder: DecoderConfig{
			MaxFrameBytes:     1024,
			SearchWindowBytes: 100,
		},
		Publish: PublishConfig{
			QueueCapacity: 4096,
			RetryMax:      5,
		},
		Command: CommandConfig{RetryMax: 3},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			Address:  "127.0.0.1:6379",
			PoolSize: 16,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"127.0.0.1:9092"},
			SessionTopic:   "device.session",
			TelemetryTopic: "device.telemetry",
			CommandTopic:   "device.command",
			LocationTopic:  "device.location",
			CommandGroupID: "gt06-gateway",
		},
	}
}
