// Package config provides fail-open environment loaders.
//
// A malformed or out-of-range value never aborts startup: the loader falls
// back to the default and reports a warning the caller is expected to log.
// Required settings are validated separately by internal/config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of loading one setting.
//
//	res := LoadEnvDuration("SCHEDULER_MIN_INTERVAL", 5*time.Second, ValidatePositiveDuration)
//	for _, w := range res.Warnings {
//	    logger.Warn("configuration fallback", slog.String("warning", w))
//	}
//	interval := res.Value
type Result[T any] struct {
	Value           T
	Warnings        []string
	FallbackApplied bool
}

// parseEnv は環境変数を読み取り、parse と validate に失敗したらデフォルトへフォールバックする。
func parseEnv[T any](envKey string, def T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return Result[T]{Value: def}
	}

	v, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return Result[T]{
			Value:           def,
			Warnings:        []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, def)},
			FallbackApplied: true,
		}
	}
	return Result[T]{Value: v}
}

// LoadEnvString returns the variable, or defaultValue when it is unset or blank.
func LoadEnvString(envKey, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it. validator may be nil.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) Result[string] {
	return parseEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration parses a Go duration string ("750ms", "5s", "1h30m").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) Result[time.Duration] {
	return parseEnv(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt parses a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) Result[int] {
	return parseEnv(envKey, defaultValue, strconv.Atoi, validator)
}

// LoadEnvFloat parses a float, used for sampling ratios.
func LoadEnvFloat(envKey string, defaultValue float64, validator func(float64) error) Result[float64] {
	return parseEnv(envKey, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, validator)
}

// LoadEnvBool accepts the strconv.ParseBool spellings ("1", "true", "FALSE" ...).
func LoadEnvBool(envKey string, defaultValue bool) Result[bool] {
	return parseEnv(envKey, defaultValue, strconv.ParseBool, nil)
}

// LoadEnvList splits a comma separated value, dropping blanks.
// An unset variable or one with no non-blank entries yields defaultValue.
func LoadEnvList(envKey string, defaultValue []string) []string {
	raw := os.Getenv(envKey)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Collect gathers the warnings of several results into one slice.
func Collect(warnings ...[]string) []string {
	var out []string
	for _, w := range warnings {
		out = append(out, w...)
	}
	return out
}
