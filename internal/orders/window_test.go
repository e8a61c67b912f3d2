package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlacedWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name         string
		since, until time.Time
	}{
		{PlacedToday, day(3, 15), day(3, 16)},
		{PlacedYesterday, day(3, 14), day(3, 15)},
		{PlacedLastWeek, day(3, 8), time.Time{}},
		{PlacedThisMonth, day(3, 1), time.Time{}},
		{PlacedThreeMonths, time.Date(2023, 12, 16, 0, 0, 0, 0, time.UTC), time.Time{}},
		{PlacedThisYear, day(1, 1), time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			since, until, err := PlacedWindow(tt.name, now)
			require.NoError(t, err)
			assert.True(t, tt.since.Equal(since), "since %s", since)
			assert.True(t, tt.until.Equal(until), "until %s", until)
		})
	}

	_, _, err := PlacedWindow("last_decade", now)
	assert.Error(t, err)
}
