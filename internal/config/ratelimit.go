package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Route names used as rate-limit rule keys.
const (
	RouteRegister           = "register"
	RouteLogin              = "login"
	RouteRefresh            = "refresh"
	RouteForgotPassword     = "forgot-password"
	RouteResetPassword      = "reset-password"
	RouteVerifyEmail        = "verify-email"
	RouteResendVerification = "resend-verification"
)

// RateRule bounds one route to MaxRequests per fixed Window.
type RateRule struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig configures the fixed-window limiter.  Backend is "redis"
// or "memory"; FailOpen lets requests through when the counter backend
// errors (the default is to reject them).
type RateLimitConfig struct {
	Enabled   bool
	Backend   string
	Prefix    string
	FailOpen  bool
	RulesFile string
	Rules     map[string]RateRule
	Debug     bool
}

// DefaultRateRules returns the built-in per-route limits.
func DefaultRateRules() map[string]RateRule {
	window := 15 * time.Minute
	return map[string]RateRule{
		RouteRegister:           {MaxRequests: 5, Window: window},
		RouteLogin:              {MaxRequests: 10, Window: window},
		RouteRefresh:            {MaxRequests: 30, Window: window},
		RouteForgotPassword:     {MaxRequests: 5, Window: window},
		RouteResetPassword:      {MaxRequests: 10, Window: window},
		RouteVerifyEmail:        {MaxRequests: 10, Window: window},
		RouteResendVerification: {MaxRequests: 5, Window: window},
	}
}

// LoadRateLimitConfig builds the limiter configuration from the environment.
// When RATE_LIMIT_RULES_FILE names a YAML file, its rules override the
// defaults route by route.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	def := RateLimitConfig{
		Enabled:   envBool("RATE_LIMIT_ENABLED", true),
		Backend:   envStr("RATE_LIMIT_BACKEND", "redis"),
		Prefix:    envStr("RATE_LIMIT_PREFIX", "rl"),
		FailOpen:  envBool("RATE_LIMIT_FAIL_OPEN", false),
		RulesFile: os.Getenv("RATE_LIMIT_RULES_FILE"),
		Rules:     DefaultRateRules(),
		Debug:     envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.RulesFile == "" {
		return def, nil
	}
	overrides, err := LoadRateRulesFile(def.RulesFile)
	if err != nil {
		return def, err
	}
	for route, rule := range overrides {
		def.Rules[route] = rule
	}
	return def, nil
}

type rulesFile struct {
	Rules map[string]RateRule `yaml:"rules"`
}

// LoadRateRulesFile parses a YAML document of the form
//
//	rules:
//	  login: {max_requests: 10, window: 15m}
func LoadRateRulesFile(path string) (map[string]RateRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit rules: %w", err)
	}
	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode rate limit rules: %w", err)
	}
	for route, rule := range doc.Rules {
		if rule.MaxRequests < 1 || rule.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limit rule for %q", route)
		}
	}
	return doc.Rules, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
