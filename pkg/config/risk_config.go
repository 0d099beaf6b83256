package config

import "time"

// RiskCentralConfig configures the bureau client and its resilience settings.
type RiskCentralConfig struct {
	URL            string
	RequestTimeout time.Duration
	CallBudget     time.Duration

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	BreakerWindowSize    int
	BreakerMinimumCalls  int
	BreakerFailureRate   float64
	BreakerOpenDuration  time.Duration
	BreakerHalfOpenCalls int

	// FailureRate is only read by the bureau simulator to inject 503s.
	FailureRate float64
}

func loadRiskCentral() RiskCentralConfig {
	return RiskCentralConfig{
		URL:            getEnv("RISK_CENTRAL_URL", "http://localhost:8081"),
		RequestTimeout: getDurationEnv("RISK_CENTRAL_TIMEOUT", 2*time.Second),
		CallBudget:     getDurationEnv("RISK_CENTRAL_CALL_BUDGET", 5*time.Second),

		RetryMaxAttempts:     getIntEnv("RISK_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: getDurationEnv("RISK_RETRY_INITIAL_INTERVAL", 200*time.Millisecond),
		RetryMaxInterval:     getDurationEnv("RISK_RETRY_MAX_INTERVAL", 2*time.Second),

		BreakerWindowSize:    getIntEnv("RISK_CB_WINDOW_SIZE", 10),
		BreakerMinimumCalls:  getIntEnv("RISK_CB_MIN_CALLS", 5),
		BreakerFailureRate:   getFloatEnv("RISK_CB_FAILURE_RATE", 50),
		BreakerOpenDuration:  getDurationEnv("RISK_CB_OPEN_DURATION", 10*time.Second),
		BreakerHalfOpenCalls: getIntEnv("RISK_CB_HALF_OPEN_CALLS", 3),

		FailureRate: getFloatEnv("RISK_CENTRAL_FAILURE_RATE", 0),
	}
}
