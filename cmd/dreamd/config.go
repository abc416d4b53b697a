package main

import (
	"fmt"

	"github.com/skillsenselab/dreamflow/config"
	"github.com/skillsenselab/dreamflow/gateway"
	"github.com/skillsenselab/dreamflow/observability"
	"github.com/skillsenselab/dreamflow/security"
)

// Config is the dreamd service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pipeline PipelineConfig             `yaml:"pipeline" mapstructure:"pipeline"`
	Gateway  gateway.Config             `yaml:"gateway" mapstructure:"gateway"`
	Kafka    KafkaConfig                `yaml:"kafka" mapstructure:"kafka"`
	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

// PipelineConfig locates the topology definition.
type PipelineConfig struct {
	// File is an explicit topology file path. Takes precedence over
	// Name/SearchPaths when set.
	File string `yaml:"file" mapstructure:"file"`
	// Name is the topology name resolved against SearchPaths.
	Name string `yaml:"name" mapstructure:"name"`
	// SearchPaths lists directories searched for {name}.yaml.
	SearchPaths []string `yaml:"search_paths" mapstructure:"search_paths"`
}

// KafkaConfig holds broker settings shared by all kafka-backed datasets.
type KafkaConfig struct {
	Brokers []string            `yaml:"brokers" mapstructure:"brokers"`
	TLS     *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Gateway.ApplyDefaults()

	if c.Pipeline.Name == "" {
		c.Pipeline.Name = "pipeline"
	}
	if len(c.Pipeline.SearchPaths) == 0 {
		c.Pipeline.SearchPaths = []string{"./cmd/dreamd", "."}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("config.gateway: %w", err)
	}
	if c.Pipeline.File == "" && c.Pipeline.Name == "" {
		return fmt.Errorf("config.pipeline: file or name is required")
	}
	if c.Kafka.TLS != nil {
		if err := c.Kafka.TLS.Validate(); err != nil {
			return fmt.Errorf("config.kafka: %w", err)
		}
	}
	return nil
}
