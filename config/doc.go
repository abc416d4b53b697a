// Package config loads service configuration from YAML files and
// environment variables.
//
// It uses Viper for file loading and env binding, and godotenv for
// .env files. Environment variables override file values using
// underscore-separated paths (e.g. GATEWAY_PORT overrides
// gateway.port).
//
// # Usage
//
//	var cfg dreamd.Config
//	err := config.Load("dreamd", &cfg)
//	cfg.ApplyDefaults()
//	err = cfg.Validate()
package config
