package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSuggestions(n int) []models.TransitSuggestion {
	base := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	suggestions := make([]models.TransitSuggestion, n)
	for i := range suggestions {
		suggestions[i] = models.TransitSuggestion{
			TransitType:        "Bus",
			TransitID:          string(rune('A' + i)),
			TransitStartTime:   base.Add(time.Duration(i+1) * 10 * time.Minute),
			ArrivalTime:        base.Add(time.Duration(i+1) * 40 * time.Minute),
			TotalDuration:      models.TransitDuration{Seconds: 2400, Text: "40 mins"},
			TransitDuration:    models.TransitDuration{Seconds: 1800, Text: "30 mins"},
			TransitInstruction: "Bus towards Downtown",
		}
	}
	return suggestions
}

func TestPager_StartEmpty(t *testing.T) {
	pager := NewPager(NewAttributes(nil))

	err := pager.Start(nil)

	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestPager_WalkBounds(t *testing.T) {
	attrs := NewAttributes(nil)
	pager := NewPager(attrs)
	require.NoError(t, pager.Start(makeSuggestions(3)))

	current, err := pager.Current()
	require.NoError(t, err)
	assert.Equal(t, "A", current.TransitID)
	assert.True(t, pager.HasNext())
	assert.False(t, pager.HasPrevious())

	second, err := pager.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, "B", second.TransitID)
	assert.True(t, pager.HasPrevious())

	third, err := pager.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, "C", third.TransitID)
	assert.False(t, pager.HasNext())

	_, err = pager.Advance(1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// A bounds hit must not move the current position.
	current, err = pager.Current()
	require.NoError(t, err)
	assert.Equal(t, "C", current.TransitID)

	_, err = pager.Advance(-1)
	require.NoError(t, err)
	_, err = pager.Advance(-1)
	require.NoError(t, err)
	_, err = pager.Advance(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPager_StartResetsIndex(t *testing.T) {
	attrs := NewAttributes(nil)
	pager := NewPager(attrs)
	require.NoError(t, pager.Start(makeSuggestions(3)))

	_, err := pager.Advance(2)
	require.NoError(t, err)

	require.NoError(t, pager.Start(makeSuggestions(2)))

	current, err := pager.Current()
	require.NoError(t, err)
	assert.Equal(t, "A", current.TransitID)
}

func TestPager_NoActivePage(t *testing.T) {
	pager := NewPager(NewAttributes(nil))

	_, err := pager.Current()
	assert.ErrorIs(t, err, ErrNoActivePage)

	_, err = pager.Advance(1)
	assert.ErrorIs(t, err, ErrNoActivePage)

	assert.False(t, pager.HasNext())
	assert.False(t, pager.HasPrevious())
}

func TestPager_CorruptedSession(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{
			name:   "index without suggestion list",
			values: map[string]any{"index": 1},
		},
		{
			name:   "suggestion list without index",
			values: map[string]any{"suggestion": `[{"transitType":"Bus"}]`},
		},
		{
			name:   "suggestion list is not JSON",
			values: map[string]any{"suggestion": "not json", "index": 0},
		},
		{
			name:   "index outside the list",
			values: map[string]any{"suggestion": `[{"transitType":"Bus"}]`, "index": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pager := NewPager(NewAttributes(tt.values))

			_, err := pager.Current()
			assert.ErrorIs(t, err, ErrCorruptedSession)
		})
	}
}

// The bag travels through JSON between turns, which turns the index into a
// float64. The pager must keep working after that round trip.
func TestPager_SurvivesJSONRoundTrip(t *testing.T) {
	attrs := NewAttributes(nil)
	pager := NewPager(attrs)
	require.NoError(t, pager.Start(makeSuggestions(2)))
	_, err := pager.Advance(1)
	require.NoError(t, err)

	data, err := json.Marshal(attrs.Values())
	require.NoError(t, err)
	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	pager = NewPager(NewAttributes(roundTripped))
	current, err := pager.Current()
	require.NoError(t, err)
	assert.Equal(t, "B", current.TransitID)
	assert.True(t, pager.HasPrevious())
	assert.False(t, pager.HasNext())
}
