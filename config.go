package mts

// Config parameterizes a simulation run
type Config struct {
	// FairnessCap bounds consecutive equal-priority grants to one direction
	// while the other direction waits.
	FairnessCap int
	// TimeScale is wall time per unit of simulated time.
	TimeScale float64
	// Clock overrides the scaled wall clock, mainly for tests.
	Clock Clock
}

// DefaultConfig returns the configuration used by the command line tool
func DefaultConfig() Config {
	return Config{
		FairnessCap: DefaultFairnessCap,
		TimeScale:   1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.FairnessCap < 1 {
		return NewConfigurationError("Config", "fairness cap must be >= 1")
	}
	if c.Clock == nil && c.TimeScale <= 0 {
		return NewConfigurationError("Config", "time scale must be > 0")
	}
	return nil
}

func (c Config) clock() Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return NewScaledClock(c.TimeScale)
}
