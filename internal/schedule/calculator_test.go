package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpcoming_HourlyBoundaries(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := Upcoming(start, 3, "0 * * * *")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2025, 1, 2, 5, 0, 0, 0, time.UTC), got[1])
	assert.Equal(t, time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC), got[2])
}

func TestUpcoming_StrictlyAfterStart(t *testing.T) {
	// Start exactly on a match: the match itself must be excluded.
	start := time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC)
	got, err := Upcoming(start, 1, "0 * * * *")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 1, 2, 5, 0, 0, 0, time.UTC), got[0])
}

func TestUpcoming_ExactCountAndAscending(t *testing.T) {
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := Upcoming(start, 100, "*/5 * * * *")
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i := range got {
		assert.True(t, got[i].After(start))
		if i > 0 {
			assert.True(t, got[i].After(got[i-1]), "instants must be strictly increasing")
		}
		assert.Zero(t, got[i].Minute()%5)
	}
}

func TestUpcoming_ZeroN(t *testing.T) {
	got, err := Upcoming(time.Now(), 0, "* * * * *")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpcoming_InvalidExpression(t *testing.T) {
	_, err := Upcoming(time.Now(), 5, "not-a-cron")
	assert.Error(t, err)
}

func TestUpcoming_RejectsSixFields(t *testing.T) {
	// Seconds field is not part of the accepted grammar.
	_, err := Upcoming(time.Now(), 1, "0 0 * * * *")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("30 2 * * 1"))
	assert.Error(t, Validate("99 * * * *"))
}
