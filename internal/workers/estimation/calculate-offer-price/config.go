// internal/workers/estimation/calculate-offer-price/config.go
package calculateofferprice

import "time"

type Config struct {
	Timeout time.Duration
	// UseLearnedRiskBuffer asks the learning engine for the buffer when the
	// job does not carry one.
	UseLearnedRiskBuffer bool
	PersistCalculation   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              20 * time.Second,
		UseLearnedRiskBuffer: true,
		PersistCalculation:   true,
	}
}
