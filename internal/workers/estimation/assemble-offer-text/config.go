// internal/workers/estimation/assemble-offer-text/config.go
package assembleoffertext

import "time"

type Config struct {
	Timeout time.Duration
	// FallbackToDefaults assembles from the built-in templates when the
	// template store cannot be read.
	FallbackToDefaults bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            15 * time.Second,
		FallbackToDefaults: true,
	}
}
