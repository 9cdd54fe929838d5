// Package config loads seenindex settings from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
)

// Default values, mirrored in applyDefaults.
const (
	DefaultBloomBits = 27
	DefaultRounds    = 23
	DefaultEncoding  = "raw"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the configuration for the seenindex CLI.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	BloomBits    int       `mapstructure:"bloom_bits"`
	Rounds       uint32    `mapstructure:"rounds"`
	Encoding     string    `mapstructure:"encoding"`
	Canonicalize bool      `mapstructure:"canonicalize"`
	Log          LogConfig `mapstructure:"log"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	errBloomBits = errors.New("bloom_bits must satisfy 3 <= n <= 31")
	errRounds    = errors.New("rounds must be at least 1")
	errEncoding  = errors.New("encoding must be raw, gzip or zlib")
)

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.BloomBits < 3 || c.BloomBits > 31 {
		return fmt.Errorf("%w: got %d", errBloomBits, c.BloomBits)
	}
	if c.Rounds == 0 {
		return errRounds
	}
	switch c.Encoding {
	case "raw", "gzip", "zlib":
	default:
		return fmt.Errorf("%w: got %q", errEncoding, c.Encoding)
	}
	return nil
}
