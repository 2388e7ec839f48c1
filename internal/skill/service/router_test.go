package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSkillService(maps *fakeMaps, store *fakeStore) *SkillService {
	reprompts := NewRepromptSelector(rand.New(rand.NewSource(1)))
	transit := NewTransitDialogService(maps, reprompts, func() time.Time { return testNow })
	setup := NewSetupDialogService(maps, store)
	return NewSkillService(transit, setup, store, maps)
}

func intentEnvelope(intent models.Intent, attributes map[string]any, userID string) *models.RequestEnvelope {
	return &models.RequestEnvelope{
		Version: "1.0",
		Session: models.Session{
			SessionID:  "session-1",
			Attributes: attributes,
			User:       models.User{UserID: userID},
		},
		Request: models.Request{
			Type:      models.RequestTypeIntent,
			RequestID: "request-1",
			Intent:    intent,
		},
	}
}

func speech(env *models.ResponseEnvelope) string {
	if env.Response.OutputSpeech == nil {
		return ""
	}
	if env.Response.OutputSpeech.Type == models.SpeechTypeSSML {
		return env.Response.OutputSpeech.SSML
	}
	return env.Response.OutputSpeech.Text
}

func TestHandleRequest_Launch(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore())

	resp := service.HandleRequest(&models.RequestEnvelope{
		Version: "1.0",
		Session: models.Session{SessionID: "session-1", New: true},
		Request: models.Request{Type: models.RequestTypeLaunch},
	})

	assert.Contains(t, speech(resp), "Hi! I'm Transit Helper.")
	assert.False(t, resp.Response.ShouldEndSession)
}

func TestHandleRequest_SessionEnded(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore())

	resp := service.HandleRequest(&models.RequestEnvelope{
		Request: models.Request{Type: models.RequestTypeSessionEnded},
	})

	assert.Nil(t, resp.Response.OutputSpeech)
	assert.True(t, resp.Response.ShouldEndSession)
}

func TestHandleRequest_StopWorksWithoutAProfile(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore())

	for _, name := range []string{IntentStop, IntentCancel} {
		resp := service.HandleRequest(intentEnvelope(models.Intent{Name: name}, nil, "unknown-user"))

		assert.Equal(t, "Bye. Have a nice ride.", speech(resp))
		assert.True(t, resp.Response.ShouldEndSession)
	}
}

func TestHandleRequest_UnknownUserIsRoutedIntoSetup(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore())

	resp := service.HandleRequest(intentEnvelope(
		models.Intent{Name: IntentGetNextTransitToWork}, nil, "unknown-user"))

	assert.Contains(t, speech(resp), "I first need your home address")
	assert.Equal(t, "awaitingHomeAddress", resp.SessionAttributes["setupState"])
}

func TestHandleRequest_TransitIntentForExistingUser(t *testing.T) {
	maps := &fakeMaps{suggestions: makeTestSuggestions(1)}
	store := newFakeStore(testUser())
	service := newTestSkillService(maps, store)

	resp := service.HandleRequest(intentEnvelope(transitIntent("bus"), nil, "user-1"))

	assert.Contains(t, speech(resp), "Your next bus is Bus number 40.")
	assert.NotNil(t, resp.SessionAttributes["suggestion"])
}

func TestHandleRequest_BackfillsMissingTimezone(t *testing.T) {
	maps := &fakeMaps{suggestions: makeTestSuggestions(1), timezone: "America/Los_Angeles"}
	user := testUser()
	user.TimeZone = ""
	store := newFakeStore(user)
	service := newTestSkillService(maps, store)

	service.HandleRequest(intentEnvelope(transitIntent("bus"), nil, "user-1"))

	stored, err := store.GetUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", stored.TimeZone)
}

func TestHandleRequest_HelpForExistingUser(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore(testUser()))

	resp := service.HandleRequest(intentEnvelope(models.Intent{Name: IntentHelp}, nil, "user-1"))

	assert.Contains(t, speech(resp), "you can ask me")
	assert.False(t, resp.Response.ShouldEndSession)
}

func TestHandleRequest_YesNoRouting(t *testing.T) {
	t.Run("suggestion session wins", func(t *testing.T) {
		maps := &fakeMaps{suggestions: makeTestSuggestions(1)}
		store := newFakeStore(testUser())
		service := newTestSkillService(maps, store)

		first := service.HandleRequest(intentEnvelope(transitIntent("bus"), nil, "user-1"))
		first.SessionAttributes["repromptIntent"] = IntentGetArrivalTime

		resp := service.HandleRequest(intentEnvelope(
			models.Intent{Name: IntentYes}, first.SessionAttributes, "user-1"))

		assert.Contains(t, speech(resp), "You will arrive at")
	})

	t.Run("setup session", func(t *testing.T) {
		maps := &fakeMaps{address: "resolved address"}
		store := newFakeStore(testUser())
		service := newTestSkillService(maps, store)

		started := service.HandleRequest(intentEnvelope(
			models.Intent{Name: IntentUpdateHomeAddress}, nil, "user-1"))
		collected := service.HandleRequest(intentEnvelope(
			addressIntent(IntentPutPostalAddress, "new street"), started.SessionAttributes, "user-1"))

		resp := service.HandleRequest(intentEnvelope(
			models.Intent{Name: IntentYes}, collected.SessionAttributes, "user-1"))

		assert.Equal(t, "OK. I changed your home address.", speech(resp))
	})

	t.Run("no active dialogue fails", func(t *testing.T) {
		service := newTestSkillService(&fakeMaps{}, newFakeStore(testUser()))

		resp := service.HandleRequest(intentEnvelope(models.Intent{Name: IntentYes}, nil, "user-1"))

		assert.Equal(t, errorString, speech(resp))
	})
}

func TestHandleRequest_UnrecognizedIntent(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore(testUser()))

	resp := service.HandleRequest(intentEnvelope(models.Intent{Name: "NoSuchIntent"}, nil, "user-1"))

	assert.Equal(t, errorString, speech(resp))
	assert.True(t, resp.Response.ShouldEndSession)
}

func TestHandleRequest_GetStoredAddressesRouted(t *testing.T) {
	service := newTestSkillService(&fakeMaps{}, newFakeStore(testUser()))

	resp := service.HandleRequest(intentEnvelope(models.Intent{Name: IntentGetHomeAddress}, nil, "user-1"))
	assert.Contains(t, speech(resp), "Your home address is")

	resp = service.HandleRequest(intentEnvelope(models.Intent{Name: IntentGetWorkAddress}, nil, "user-1"))
	assert.Contains(t, speech(resp), "Your work address is")
}
