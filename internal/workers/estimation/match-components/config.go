// internal/workers/estimation/match-components/config.go
package matchcomponents

import "time"

type Config struct {
	Timeout time.Duration
	// AllowPartialMatch completes the job with notes when catalog lookups
	// fail instead of failing it for a retry.
	AllowPartialMatch bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
