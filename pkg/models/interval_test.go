package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"daily", 24 * time.Hour},
		{"hourly", time.Hour},
		{"every_15_minutes", 15 * time.Minute},
		{"every_1_minutes", time.Minute},
		{"every_6_hours", 6 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			interval, err := ParseInterval(tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.spec, interval.Spec)
			assert.Equal(t, tc.want, interval.Every)
		})
	}
}

func TestParseIntervalRejectsUnknownSpecs(t *testing.T) {
	for _, spec := range []string{
		"",
		"weekly",
		"every_minutes",
		"every_0_minutes",
		"every_-5_minutes",
		"every_ten_minutes",
		"every_90_seconds",
		"every_2_days",
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseInterval(spec)
			assert.ErrorIs(t, err, ErrInvalidInterval)
		})
	}
}

func TestIntervalDue(t *testing.T) {
	interval, err := ParseInterval("every_30_minutes")
	require.NoError(t, err)

	lastRun := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, interval.Due(lastRun, lastRun.Add(29*time.Minute)))
	assert.True(t, interval.Due(lastRun, lastRun.Add(30*time.Minute)))
	assert.True(t, interval.Due(lastRun, lastRun.Add(3*time.Hour)))
}
