package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInTransit, true},
		{StatusPending, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusInTransit, StatusCancelled, true},
		{StatusInTransit, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_transit")
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, s)

	_, err = ParseStatus("shipped")
	assert.Error(t, err)
}

func TestStatusInactive(t *testing.T) {
	assert.False(t, StatusPending.Inactive())
	assert.False(t, StatusInTransit.Inactive())
	assert.True(t, StatusDelivered.Inactive())
	assert.True(t, StatusCancelled.Inactive())
}
