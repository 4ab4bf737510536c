// internal/workers/learning/auto-calibrate-estimates/config.go
package autocalibrateestimates

import "time"

type Config struct {
	Timeout time.Duration
	// PublishProposals announces non-empty proposal sets on the
	// notification topic.
	PublishProposals bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          time.Minute,
		PublishProposals: true,
	}
}
