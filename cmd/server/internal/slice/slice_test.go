package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"full tokens", "2h15m30s", 8130, false},
		{"hours only", "3h", 10800, false},
		{"minutes only", "45m", 2700, false},
		{"seconds only", "59s", 59, false},
		{"hours and seconds", "1h30s", 3630, false},
		{"order independent", "30m1h", 5400, false},
		{"canonical order same value", "1h30m", 5400, false},
		{"zero tokens", "live", 0, true},
		{"empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "cannot determine duration")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePlan(t *testing.T) {
	t.Run("short recording uses whole mode", func(t *testing.T) {
		plan, err := ComputePlan("20m", 30)
		require.NoError(t, err)

		assert.Equal(t, ModeWhole, plan.Mode)
		assert.Equal(t, 1200, plan.AvailableSeconds)
		assert.Equal(t, 1800, plan.RequestedSeconds)
		assert.Equal(t, 0, plan.StartOffsetSeconds)
		assert.Equal(t, "00:00:00", plan.StartOffsetFormatted)
		assert.Equal(t, 1200, plan.WindowSeconds())
	})

	t.Run("exact boundary still whole mode", func(t *testing.T) {
		plan, err := ComputePlan("30m", 30)
		require.NoError(t, err)
		assert.Equal(t, ModeWhole, plan.Mode)
		assert.Equal(t, 0, plan.StartOffsetSeconds)
	})

	t.Run("long recording uses tail window", func(t *testing.T) {
		plan, err := ComputePlan("2h5m", 60)
		require.NoError(t, err)

		assert.Equal(t, ModeTailWindow, plan.Mode)
		assert.Equal(t, 7500, plan.AvailableSeconds)
		assert.Equal(t, 3900, plan.StartOffsetSeconds)
		assert.Equal(t, "01:05:00", plan.StartOffsetFormatted)
		assert.Equal(t, 3600, plan.WindowSeconds())
	})

	t.Run("unparseable duration", func(t *testing.T) {
		_, err := ComputePlan("unknown", 30)
		require.Error(t, err)
	})

	t.Run("non-positive window", func(t *testing.T) {
		_, err := ComputePlan("1h", 0)
		require.Error(t, err)
	})
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{36000, "10:00:00"},
		{-5, "00:00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatOffset(tt.seconds))
	}
}

func TestDeepLink(t *testing.T) {
	plan := Plan{StartOffsetSeconds: 3900}
	assert.Equal(t, "https://www.twitch.tv/videos/123456?t=1h5m0s", DeepLink("123456", plan))
	assert.Equal(t, "", DeepLink("", plan))
}
