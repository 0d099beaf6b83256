// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}
	if strings.TrimSpace(c.RiskCentral.URL) == "" {
		missing = append(missing, "RISK_CENTRAL_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// ValidateCredit checks that decision thresholds and resilience settings are in range.
func (c *Config) ValidateCredit() error {
	var invalid []string

	cr := c.Credit
	if cr.MinTenureMonths < 0 {
		invalid = append(invalid, "MIN_TENURE_MONTHS must be >= 0")
	}
	if !cr.MaxPaymentToIncome.IsPositive() || cr.MaxPaymentToIncome.GreaterThan(decimal.NewFromInt(1)) {
		invalid = append(invalid, "MAX_PAYMENT_TO_INCOME must be in (0, 1]")
	}
	if !cr.MaxAmountIncomeMultiplier.IsPositive() {
		invalid = append(invalid, "MAX_AMOUNT_INCOME_MULTIPLIER must be > 0")
	}

	rc := c.RiskCentral
	if rc.RequestTimeout <= 0 || rc.CallBudget <= 0 {
		invalid = append(invalid, "RISK_CENTRAL_TIMEOUT and RISK_CENTRAL_CALL_BUDGET must be > 0")
	}
	if rc.RetryMaxAttempts < 1 {
		invalid = append(invalid, "RISK_RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if rc.BreakerWindowSize < 1 || rc.BreakerMinimumCalls < 1 || rc.BreakerHalfOpenCalls < 1 {
		invalid = append(invalid, "RISK_CB_WINDOW_SIZE, RISK_CB_MIN_CALLS and RISK_CB_HALF_OPEN_CALLS must be >= 1")
	}
	if rc.BreakerFailureRate <= 0 || rc.BreakerFailureRate > 100 {
		invalid = append(invalid, "RISK_CB_FAILURE_RATE must be in (0, 100]")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}
	return nil
}
