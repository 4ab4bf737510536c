// internal/workers/learning/collect-project-feedback/config.go
package collectprojectfeedback

import "time"

type Config struct {
	Timeout time.Duration
	// CompleteOnProjectFailure completes the job when only single projects
	// failed; their errors are returned in the job variables.
	CompleteOnProjectFailure bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:                  2 * time.Minute,
		CompleteOnProjectFailure: true,
	}
}
