package bootstrap

import (
	"github.com/skillsenselab/dreamflow/config"
)

// Config is the interface constraint for application configuration
// types. Any struct that embeds config.ServiceConfig satisfies it via
// promoted methods.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Gateway gateway.Config `yaml:"gateway" mapstructure:"gateway"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
