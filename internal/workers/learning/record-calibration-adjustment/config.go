// internal/workers/learning/record-calibration-adjustment/config.go
package recordcalibrationadjustment

import "time"

type Config struct {
	Timeout time.Duration
	// DefaultAppliedBy is stamped on adjustments whose job names no approver.
	DefaultAppliedBy string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          15 * time.Second,
		DefaultAppliedBy: "workflow",
	}
}
