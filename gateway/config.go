package gateway

import (
	"fmt"
	"time"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	// RequestTimeout bounds how long one request waits on the
	// correlation cache before returning 504. The topology's gateway
	// binding may override it.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// MaxPromptLength caps the accepted prompt size in bytes.
	MaxPromptLength int `yaml:"max_prompt_length" mapstructure:"max_prompt_length"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		// net/http arms the write deadline when the request is read, so
		// it must outlast the whole correlation await, not just the
		// response serialization.
		c.WriteTimeout = int(c.RequestTimeout/time.Second) + 15
	}
	if c.MaxPromptLength == 0 {
		c.MaxPromptLength = 4096
	}
}

// SetRequestTimeout updates the await bound and stretches the write
// deadline when it would no longer cover the request.
func (c *Config) SetRequestTimeout(d time.Duration) {
	c.RequestTimeout = d
	if c.WriteTimeout > 0 && time.Duration(c.WriteTimeout)*time.Second <= d {
		c.WriteTimeout = int(d/time.Second) + 15
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("gateway.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("gateway.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("gateway.request_timeout must be non-negative (got: %s)", c.RequestTimeout)
	}
	if c.WriteTimeout > 0 && time.Duration(c.WriteTimeout)*time.Second <= c.RequestTimeout {
		return fmt.Errorf("gateway.write_timeout (%ds) must exceed gateway.request_timeout (%s) or be 0; the write deadline covers the whole request", c.WriteTimeout, c.RequestTimeout)
	}
	return nil
}
