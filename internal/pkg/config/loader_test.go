package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom")
	assert.Equal(t, "custom", LoadEnvString("TEST_STRING", "default"))

	t.Setenv("TEST_STRING", "   ")
	assert.Equal(t, "default", LoadEnvString("TEST_STRING", "default"))

	assert.Equal(t, "default", LoadEnvString("TEST_STRING_UNSET", "default"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		want         string
		wantFallback bool
	}{
		{"valid cron", "*/5 * * * *", "*/5 * * * *", false},
		{"descriptor", "@every 1m", "@every 1m", false},
		{"unset", "", "@every 2m", false},
		{"invalid cron", "not a cron", "@every 2m", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_CRON", tt.value)

			res := LoadEnvWithFallback("TEST_CRON", "@every 2m", ValidateCronSchedule)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
			if tt.wantFallback {
				assert.Len(t, res.Warnings, 1)
				assert.Contains(t, res.Warnings[0], "Invalid TEST_CRON='not a cron'")
				assert.Contains(t, res.Warnings[0], "falling back to default '@every 2m'")
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestLoadEnvWithFallback_NoValidator(t *testing.T) {
	t.Setenv("TEST_STRING", "anything")

	res := LoadEnvWithFallback("TEST_STRING", "default", nil)

	assert.Equal(t, "anything", res.Value)
	assert.False(t, res.FallbackApplied)
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		want         time.Duration
		wantFallback bool
	}{
		{"valid", "750ms", 750 * time.Millisecond, false},
		{"unset", "", 5 * time.Second, false},
		{"unparseable", "soon", 5 * time.Second, true},
		{"negative rejected", "-1s", 5 * time.Second, true},
		{"zero rejected", "0s", 5 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)

			res := LoadEnvDuration("TEST_DURATION", 5*time.Second, ValidatePositiveDuration)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	res := LoadEnvInt("TEST_INT", 3, IntBetween(1, 10))
	assert.Equal(t, 7, res.Value)
	assert.False(t, res.FallbackApplied)

	t.Setenv("TEST_INT", "42")
	res = LoadEnvInt("TEST_INT", 3, IntBetween(1, 10))
	assert.Equal(t, 3, res.Value)
	assert.True(t, res.FallbackApplied)
	assert.Contains(t, res.Warnings[0], "exceeds maximum 10")

	t.Setenv("TEST_INT", "three")
	res = LoadEnvInt("TEST_INT", 3, nil)
	assert.Equal(t, 3, res.Value)
	assert.True(t, res.FallbackApplied)
}

func TestLoadEnvFloat(t *testing.T) {
	t.Setenv("TEST_RATIO", "0.25")
	assert.Equal(t, 0.25, LoadEnvFloat("TEST_RATIO", 1, ValidateRatio).Value)

	t.Setenv("TEST_RATIO", "1.5")
	res := LoadEnvFloat("TEST_RATIO", 1, ValidateRatio)
	assert.Equal(t, 1.0, res.Value)
	assert.True(t, res.FallbackApplied)
}

func TestLoadEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "TRUE")
	assert.True(t, LoadEnvBool("TEST_BOOL", false).Value)

	t.Setenv("TEST_BOOL", "yes")
	res := LoadEnvBool("TEST_BOOL", false)
	assert.False(t, res.Value)
	assert.True(t, res.FallbackApplied)
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, LoadEnvList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, LoadEnvList("TEST_LIST", []string{"x"}))
}

func TestCollect(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Collect([]string{"a"}, nil, []string{"b", "c"}))
	assert.Nil(t, Collect(nil, nil))
}
