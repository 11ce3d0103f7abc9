package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule checks a five-field cron expression or a descriptor
// such as "@every 1m". It accepts exactly what the worker's cron runner accepts.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone loads an IANA zone name. A missing tzdata package makes
// even valid names fail here.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// DurationBetween returns a validator for min <= d <= max.
func DurationBetween(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error {
		if d < min {
			return fmt.Errorf("duration %v is below minimum %v", d, min)
		}
		if d > max {
			return fmt.Errorf("duration %v exceeds maximum %v", d, max)
		}
		return nil
	}
}

// IntBetween returns a validator for min <= v <= max.
func IntBetween(min, max int) func(int) error {
	return func(v int) error {
		if v < min {
			return fmt.Errorf("value %d is below minimum %d", v, min)
		}
		if v > max {
			return fmt.Errorf("value %d exceeds maximum %d", v, max)
		}
		return nil
	}
}

func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

func ValidatePositiveInt(v int) error {
	if v <= 0 {
		return fmt.Errorf("value must be positive, got %d", v)
	}
	return nil
}

// ValidateRatio accepts a sampling ratio in [0, 1].
func ValidateRatio(r float64) error {
	if r < 0 || r > 1 {
		return fmt.Errorf("ratio must be within [0, 1], got %v", r)
	}
	return nil
}

// ValidateHTTPURL requires an absolute http or https URL with a host.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url '%s': %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url '%s': must be absolute http(s)", raw)
	}
	return nil
}

// ValidateListenAddr accepts "host:port" or ":port".
func ValidateListenAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address '%s': %w", addr, err)
	}
	return nil
}
