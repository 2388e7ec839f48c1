package service

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/DenisKhanov/CommuteBot/internal/skill/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

// fakeMaps is a canned MapsService implementation for dialogue tests.
type fakeMaps struct {
	suggestions []models.TransitSuggestion
	err         error
	address     string
	addressErr  error
	timezone    string
	timezoneErr error

	lastTransitType string
}

func (f *fakeMaps) GetNextTransitToDestination(transitType, _, _ string) ([]models.TransitSuggestion, error) {
	f.lastTransitType = transitType
	return f.suggestions, f.err
}

func (f *fakeMaps) GetAddressOfPlace(string) (string, error) {
	return f.address, f.addressErr
}

func (f *fakeMaps) GetTimezoneFromAddress(string) (string, error) {
	return f.timezone, f.timezoneErr
}

// testClock is a settable clock for countdown tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func makeTestSuggestions(n int) []models.TransitSuggestion {
	suggestions := make([]models.TransitSuggestion, n)
	for i := range suggestions {
		walkingStart := testNow.Add(time.Duration(i*10+5) * time.Minute)
		walkingDuration := models.TransitDuration{Seconds: 300, Text: "5 mins"}
		suggestions[i] = models.TransitSuggestion{
			TransitType:        "Bus",
			TransitID:          fmt.Sprintf("%d", 40+i),
			WalkingStartTime:   &walkingStart,
			TransitStartTime:   testNow.Add(time.Duration(i+1) * 10 * time.Minute),
			ArrivalTime:        testNow.Add(time.Duration(40+i*10) * time.Minute),
			TotalDuration:      models.TransitDuration{Seconds: 2400, Text: "40 mins"},
			WalkingDuration:    &walkingDuration,
			TransitDuration:    models.TransitDuration{Seconds: 1800, Text: "30 mins"},
			WalkingInstruction: "Walk to 10th Ave E",
			TransitInstruction: "Bus towards Downtown",
		}
	}
	return suggestions
}

func testUser() *models.TransitUser {
	return &models.TransitUser{
		UserID:      "user-1",
		HomeAddress: "1509 Blakeley St, Seattle, WA",
		TimeZone:    "UTC",
		Destinations: map[string]string{
			models.WorkDestination: "2400 Martin St, Seattle, WA",
		},
	}
}

func transitIntent(transitType string) models.Intent {
	return models.Intent{
		Name: IntentGetNextTransitToWork,
		Slots: map[string]models.Slot{
			SlotTransit: {Name: SlotTransit, Value: transitType},
		},
	}
}

func newTestTransit(maps MapsService, clock *testClock) *TransitDialogService {
	reprompts := NewRepromptSelector(rand.New(rand.NewSource(1)))
	return NewTransitDialogService(maps, reprompts, clock.Now)
}

func TestHandleNextTransitRequest_MissingProfileFields(t *testing.T) {
	tests := []struct {
		name       string
		user       *models.TransitUser
		wantSpeech string
	}{
		{
			name:       "home address missing",
			user:       &models.TransitUser{UserID: "user-1"},
			wantSpeech: "Home Address does not exist.",
		},
		{
			name:       "work address missing",
			user:       &models.TransitUser{UserID: "user-1", HomeAddress: "somewhere"},
			wantSpeech: "Work address does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transit := newTestTransit(&fakeMaps{}, &testClock{now: testNow})

			resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent("bus"), tt.user)

			assert.Equal(t, tt.wantSpeech, resp.SpeechText)
			assert.True(t, resp.ShouldEndSession)
		})
	}
}

func TestHandleNextTransitRequest_BlankTransitSlot(t *testing.T) {
	transit := newTestTransit(&fakeMaps{}, &testClock{now: testNow})

	resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent(" "), testUser())

	assert.Contains(t, resp.SpeechText, "Please specify your preferred mode of transport")
	assert.False(t, resp.ShouldEndSession)
}

func TestHandleNextTransitRequest_NoOptions(t *testing.T) {
	tests := []struct {
		name string
		maps *fakeMaps
	}{
		{name: "provider returns nothing", maps: &fakeMaps{}},
		{name: "provider fails", maps: &fakeMaps{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transit := newTestTransit(tt.maps, &testClock{now: testNow})

			resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent("bus"), testUser())

			assert.Equal(t, "Sorry. There are no available transit options for your destination at this time.", resp.SpeechText)
			assert.True(t, resp.ShouldEndSession)
		})
	}
}

func TestHandleNextTransitRequest_SpeaksDetailedSummary(t *testing.T) {
	maps := &fakeMaps{suggestions: makeTestSuggestions(2)}
	transit := newTestTransit(maps, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)

	resp := transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())

	wantSummary := "Your next bus is Bus number 40. It will arrive in 10 minutes. " +
		"It will take you 5 mins to walk to the Bus location. You should leave in 5 minutes. "
	assert.Equal(t, "<speak>"+wantSummary+`<break time="1s"/>`+"</speak>", resp.SpeechText)
	assert.Equal(t, "bus", maps.lastTransitType)
	assert.False(t, resp.ShouldEndSession)

	// The session now carries the page and the summary for repeat requests.
	assert.True(t, attrs.HasSuggestions())
	previous, ok := attrs.PreviousResponse()
	require.True(t, ok)
	assert.Equal(t, wantSummary, previous)

	// Right after a fresh suggestion the follow-up offers the next option.
	assert.Equal(t, nextOptionQuestion, resp.RepromptText)
}

func TestSummary_LeaveNowThreshold(t *testing.T) {
	suggestions := makeTestSuggestions(1)
	walkingStart := testNow.Add(90 * time.Second)
	suggestions[0].WalkingStartTime = &walkingStart
	transit := newTestTransit(&fakeMaps{suggestions: suggestions}, &testClock{now: testNow})

	resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent("bus"), testUser())

	assert.Contains(t, resp.SpeechText, "I recommend you leave now. ")
	assert.NotContains(t, resp.SpeechText, "You should leave in")
}

func TestSummary_TransitSwitchClauses(t *testing.T) {
	tests := []struct {
		name     string
		switches int
		want     string
	}{
		{name: "direct ride has no clause", switches: 0, want: ""},
		{name: "one switch", switches: 1, want: "You will have to make a transit switch. "},
		{name: "three switches", switches: 3, want: "You will have to make 3 transit switches. "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suggestions := makeTestSuggestions(1)
			suggestions[0].NumOfSwitches = tt.switches
			transit := newTestTransit(&fakeMaps{suggestions: suggestions}, &testClock{now: testNow})

			resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent("bus"), testUser())

			if tt.want == "" {
				assert.NotContains(t, resp.SpeechText, "transit switch")
			} else {
				assert.Contains(t, resp.SpeechText, tt.want)
			}
		})
	}
}

func TestSummary_SingularMinute(t *testing.T) {
	suggestions := makeTestSuggestions(1)
	suggestions[0].TransitStartTime = testNow.Add(90 * time.Second)
	transit := newTestTransit(&fakeMaps{suggestions: suggestions}, &testClock{now: testNow})

	resp := transit.HandleNextTransitRequest(session.NewAttributes(nil), transitIntent("bus"), testUser())

	assert.Contains(t, resp.SpeechText, "It will arrive in 1 minute. ")
}

// Browsing back to a cached suggestion recomputes the countdown against the
// clock, so waiting shrinks the spoken minutes.
func TestBrowsing_CountdownShrinksWithTime(t *testing.T) {
	clock := &testClock{now: testNow}
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(2)}, clock)
	attrs := session.NewAttributes(nil)

	resp := transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
	assert.Contains(t, resp.SpeechText, "It will arrive in 10 minutes. ")

	clock.now = testNow.Add(4 * time.Minute)
	resp = transit.HandleNextSuggestion(attrs, models.Intent{Name: IntentNext}, testUser())
	assert.Contains(t, resp.SpeechText, "Your next option is ")

	resp = transit.HandlePreviousSuggestion(attrs, models.Intent{Name: IntentPrevious}, testUser())
	assert.Contains(t, resp.SpeechText, "The previous option was ")
	assert.Contains(t, resp.SpeechText, "It will arrive in 6 minutes. ")
}

func TestBrowsing_PastTheEndIsTerminal(t *testing.T) {
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)

	transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
	resp := transit.HandleNextSuggestion(attrs, models.Intent{Name: IntentNext}, testUser())

	assert.Equal(t, "Sorry. No more transit options available. ", resp.SpeechText)
	assert.True(t, resp.ShouldEndSession)
}

func TestBrowsing_WithoutActivePageAsksForASuggestionFirst(t *testing.T) {
	transit := newTestTransit(&fakeMaps{}, &testClock{now: testNow})

	resp := transit.HandleNextSuggestion(session.NewAttributes(nil), models.Intent{Name: IntentNext}, testUser())

	assert.Equal(t, helpString, resp.SpeechText)
	assert.False(t, resp.ShouldEndSession)
}

func TestHandleGetArrivalTime_FormatsInUserTimezone(t *testing.T) {
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)
	user := testUser()
	user.TimeZone = "America/New_York"

	transit.HandleNextTransitRequest(attrs, transitIntent("bus"), user)
	resp := transit.HandleGetArrivalTime(attrs, models.Intent{Name: IntentGetArrivalTime}, user)

	// 15:40 UTC is 11:40 AM in New York during daylight saving time.
	assert.Contains(t, resp.SpeechText, "You will arrive at 11:40 AM.")
}

func TestHandleGetArrivalTime_FallsBackToDefaultTimezone(t *testing.T) {
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)
	user := testUser()
	user.TimeZone = "Not/AZone"

	transit.HandleNextTransitRequest(attrs, transitIntent("bus"), user)
	resp := transit.HandleGetArrivalTime(attrs, models.Intent{Name: IntentGetArrivalTime}, user)

	// 15:40 UTC is 08:40 AM in Los Angeles during daylight saving time.
	assert.Contains(t, resp.SpeechText, "You will arrive at 08:40 AM.")
}

func TestHandleGetTotalTransitDuration(t *testing.T) {
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)

	transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
	resp := transit.HandleGetTotalTransitDuration(attrs, models.Intent{Name: IntentGetTotalTransitDuration}, testUser())

	assert.Contains(t, resp.SpeechText, "It will take you 40 mins to arrive at your destination. ")
}

func TestHandleGetDirections(t *testing.T) {
	t.Run("with walking leg", func(t *testing.T) {
		transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
		attrs := session.NewAttributes(nil)

		transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
		resp := transit.HandleGetDirections(attrs, models.Intent{Name: IntentGetDirections}, testUser())

		assert.Contains(t, resp.SpeechText, "Walk to 10th Ave E. After that, take the Bus towards Downtown. ")
	})

	t.Run("without walking leg", func(t *testing.T) {
		suggestions := makeTestSuggestions(1)
		suggestions[0].WalkingInstruction = ""
		transit := newTestTransit(&fakeMaps{suggestions: suggestions}, &testClock{now: testNow})
		attrs := session.NewAttributes(nil)

		transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
		resp := transit.HandleGetDirections(attrs, models.Intent{Name: IntentGetDirections}, testUser())

		assert.NotContains(t, resp.SpeechText, "After that")
		assert.Contains(t, resp.SpeechText, "Bus towards Downtown. ")
	})
}

func TestHandleRepeatSuggestion_SpeaksPreviousResponseVerbatim(t *testing.T) {
	transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)

	first := transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
	repeat := transit.HandleRepeatSuggestion(attrs, models.Intent{Name: IntentRepeat}, testUser())

	assert.Equal(t, first.SpeechText, repeat.SpeechText)
}

func TestHandleYesNo(t *testing.T) {
	t.Run("yes resumes the pending question", func(t *testing.T) {
		transit := newTestTransit(&fakeMaps{suggestions: makeTestSuggestions(1)}, &testClock{now: testNow})
		attrs := session.NewAttributes(nil)

		transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
		attrs.SetRepromptIntent(IntentGetArrivalTime)

		resp := transit.HandleYesNo(attrs, models.Intent{Name: IntentYes}, testUser())

		assert.Contains(t, resp.SpeechText, "You will arrive at")
	})

	t.Run("no ends the session politely", func(t *testing.T) {
		transit := newTestTransit(&fakeMaps{}, &testClock{now: testNow})

		resp := transit.HandleYesNo(session.NewAttributes(nil), models.Intent{Name: IntentNo}, testUser())

		assert.Equal(t, "Bye. Have a nice ride. ", resp.SpeechText)
		assert.True(t, resp.ShouldEndSession)
	})

	t.Run("yes without pending question fails", func(t *testing.T) {
		transit := newTestTransit(&fakeMaps{}, &testClock{now: testNow})

		resp := transit.HandleYesNo(session.NewAttributes(nil), models.Intent{Name: IntentYes}, testUser())

		assert.Equal(t, errorString, resp.SpeechText)
	})
}

func TestSpeech_AmpersandIsSpokenAsAnd(t *testing.T) {
	suggestions := makeTestSuggestions(1)
	suggestions[0].TransitInstruction = "Bus towards 3rd & Pike"
	transit := newTestTransit(&fakeMaps{suggestions: suggestions}, &testClock{now: testNow})
	attrs := session.NewAttributes(nil)

	transit.HandleNextTransitRequest(attrs, transitIntent("bus"), testUser())
	resp := transit.HandleGetDirections(attrs, models.Intent{Name: IntentGetDirections}, testUser())

	assert.Contains(t, resp.SpeechText, "3rd and Pike")
	assert.NotContains(t, resp.SpeechText, "&")
}
