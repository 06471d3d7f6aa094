package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitConfig()

	assert.Equal(t, DefaultBaseURL, BaseURL)
	assert.Empty(t, ListURL)
	assert.Equal(t, DefaultAuthority, Authority)
	assert.Equal(t, DefaultConcurrency, Concurrency)
	assert.InDelta(t, DefaultRequestsPerSecond, RequestsPerSecond, 0.0001)
	assert.Equal(t, "covers", CoversDir)
	assert.Equal(t, "books.json", Output)
	assert.True(t, FailFast)
	assert.Equal(t, 5, RetryMaxAttempts)
	assert.Equal(t, time.Second, RetryBase)
	assert.Equal(t, 15*time.Second, RetryMax)
	assert.Equal(t, DefaultCacheTTL, CacheTTL)
	assert.False(t, DatasetteEnabled)
	assert.Equal(t, "local", DatasetteMode)
}

func TestInitConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set(KeyConcurrency, 12)
	viper.Set(KeyRetryBase, "250ms")
	viper.Set(KeyCacheTTL, "48h")
	viper.Set(KeyFailFast, false)
	viper.Set(KeyCardNumber, "D123")
	viper.Set(KeyPassword, "secret")

	InitConfig()

	assert.Equal(t, 12, Concurrency)
	assert.Equal(t, 250*time.Millisecond, RetryBase)
	assert.Equal(t, 48*time.Hour, CacheTTL)
	assert.False(t, FailFast)
	assert.Equal(t, "D123", CardNumber)
	assert.Equal(t, "secret", Password)
}

func TestSetters(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	testCases := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "positive", input: 8, expected: 8},
		{name: "zero clamps to one", input: 0, expected: 1},
		{name: "negative clamps to one", input: -3, expected: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			SetConcurrency(tc.input)
			assert.Equal(t, tc.expected, Concurrency)
			assert.Equal(t, tc.expected, viper.GetInt(KeyConcurrency))
		})
	}

	SetFailFast(false)
	assert.False(t, FailFast)
	assert.False(t, viper.GetBool(KeyFailFast))
}
