// internal/workers/estimation/analyze-offer-risks/config.go
package analyzeofferrisks

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
