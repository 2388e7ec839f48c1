package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/DenisKhanov/CommuteBot/internal/skill/session"
	"github.com/sirupsen/logrus"
)

const (
	// defaultTimezone is used for arrival times until the user's own timezone
	// has been resolved from their home address.
	defaultTimezone = "America/Los_Angeles"

	// arrivalTimeFormat renders a zero-padded 12-hour clock with an AM/PM
	// marker.
	arrivalTimeFormat = "03:04 PM"

	// leaveNowThresholdSeconds is the leaving-time cutoff below which the
	// summary recommends leaving immediately instead of naming minutes.
	leaveNowThresholdSeconds = 100
)

// MapsService defines the directions and geocoding operations the dialogue
// layer depends on.
type MapsService interface {
	GetNextTransitToDestination(transitType, originAddress, destinationAddress string) ([]models.TransitSuggestion, error)
	GetAddressOfPlace(placeName string) (string, error)
	GetTimezoneFromAddress(address string) (string, error)
}

// transitHandler is one per-intent operation of the transit dialogue,
// addressable by intent name so a "yes" answer can resume the pending one.
type transitHandler func(attrs *session.Attributes, intent models.Intent, user *models.TransitUser) *models.SkillResponse

// TransitDialogService orchestrates suggestion retrieval, response-text
// assembly, pagination and reprompt selection for the transit intents.
type TransitDialogService struct {
	maps      MapsService       // Directions provider.
	reprompts *RepromptSelector // Follow-up question selector.
	now       func() time.Time  // Injected clock, time.Now in production.
	handlers  map[string]transitHandler
}

// NewTransitDialogService creates the transit dialogue controller.
// Arguments:
//   - maps: directions provider.
//   - reprompts: follow-up question selector.
//   - now: clock used for countdown computation; pass time.Now outside tests.
func NewTransitDialogService(maps MapsService, reprompts *RepromptSelector, now func() time.Time) *TransitDialogService {
	t := &TransitDialogService{
		maps:      maps,
		reprompts: reprompts,
		now:       now,
	}
	t.handlers = map[string]transitHandler{
		IntentGetNextTransitToWork:    t.HandleNextTransitRequest,
		IntentGetArrivalTime:          t.HandleGetArrivalTime,
		IntentGetTotalTransitDuration: t.HandleGetTotalTransitDuration,
		IntentGetDirections:           t.HandleGetDirections,
		IntentRepeat:                  t.HandleRepeatSuggestion,
		IntentNext:                    t.HandleNextSuggestion,
		IntentPrevious:                t.HandlePreviousSuggestion,
	}
	return t
}

// Handles reports whether the given intent belongs to the transit dialogue.
func (t *TransitDialogService) Handles(intentName string) bool {
	_, ok := t.handlers[intentName]
	return ok
}

// Dispatch routes an intent to its handler by name.
func (t *TransitDialogService) Dispatch(intentName string, attrs *session.Attributes, intent models.Intent, user *models.TransitUser) *models.SkillResponse {
	handler, ok := t.handlers[intentName]
	if !ok {
		logrus.Errorf("No transit handler for intent %s", intentName)
		return newInternalErrorResponse()
	}
	return handler(attrs, intent, user)
}

// HandleNextTransitRequest fetches fresh suggestions for the home-to-work
// commute, starts pagination at the best-ranked one and speaks its summary.
func (t *TransitDialogService) HandleNextTransitRequest(attrs *session.Attributes, intent models.Intent, user *models.TransitUser) *models.SkillResponse {
	if user.HomeAddress == "" {
		logrus.Errorf("Home address does not exist for user: %s", user.UserID)
		return newTellResponse("Home Address does not exist.", "Home Address")
	}

	transitType := intent.SlotValue(SlotTransit)
	if strings.TrimSpace(transitType) == "" {
		logrus.Info("Transit type not provided with the request")
		return newAskResponse("Please specify your preferred mode of transport. For example, you can ask,"+
			" When's the next bus to work ?", "Transit Suggestion")
	}

	workAddress, ok := user.WorkAddress()
	if !ok {
		logrus.Errorf("Work address does not exist for user: %s", user.UserID)
		return newTellResponse("Work address does not exist", "Work Address")
	}

	suggestions, err := t.maps.GetNextTransitToDestination(transitType, user.HomeAddress, workAddress)
	if err != nil {
		// A failing provider degrades this turn only; treat it as zero options.
		logrus.WithError(err).Errorf("Failed to get transit suggestions for user: %s", user.UserID)
		suggestions = nil
	}

	if len(suggestions) == 0 {
		logrus.Warnf("No suggestions for user: %s", user.UserID)
		return newTellResponse("Sorry. There are no available transit options "+
			"for your destination at this time.", "Transit Suggestion")
	}

	pager := session.NewPager(attrs)
	if err = pager.Start(suggestions); err != nil {
		logrus.WithError(err).Error("Failed to start suggestion page")
		return newInternalErrorResponse()
	}
	return t.suggestionToDetailedResponse(attrs, &suggestions[0],
		"Your next "+transitType+" is ", IntentGetNextTransitToWork)
}

// HandleGetArrivalTime speaks the arrival time of the current suggestion in
// the user's timezone.
func (t *TransitDialogService) HandleGetArrivalTime(attrs *session.Attributes, _ models.Intent, user *models.TransitUser) *models.SkillResponse {
	suggestion, resp := t.currentSuggestion(attrs)
	if resp != nil {
		return resp
	}

	timezone := user.TimeZone
	if timezone == "" {
		timezone = defaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		logrus.WithError(err).Errorf("Unknown timezone %q, falling back to %s", timezone, defaultTimezone)
		location, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			return newInternalErrorResponse()
		}
	}
	output := "You will arrive at " + suggestion.ArrivalTime.In(location).Format(arrivalTimeFormat) + "."
	return t.respondWithReprompt(attrs, output, "Arrival Time", IntentGetArrivalTime)
}

// HandleGetTotalTransitDuration speaks the door-to-door travel time of the
// current suggestion.
func (t *TransitDialogService) HandleGetTotalTransitDuration(attrs *session.Attributes, _ models.Intent, _ *models.TransitUser) *models.SkillResponse {
	suggestion, resp := t.currentSuggestion(attrs)
	if resp != nil {
		return resp
	}
	if suggestion.TotalDuration.Text == "" {
		return newAskResponse(errorString, "Try Again")
	}
	output := "It will take you " + suggestion.TotalDuration.Text +
		" to arrive at your destination. "
	return t.respondWithReprompt(attrs, output, "Transit Duration", IntentGetTotalTransitDuration)
}

// HandleGetDirections speaks the walking instruction, if present, followed by
// the transit instruction of the current suggestion.
func (t *TransitDialogService) HandleGetDirections(attrs *session.Attributes, _ models.Intent, _ *models.TransitUser) *models.SkillResponse {
	suggestion, resp := t.currentSuggestion(attrs)
	if resp != nil {
		return resp
	}

	var directions strings.Builder
	if suggestion.WalkingInstruction != "" {
		directions.WriteString(suggestion.WalkingInstruction)
		directions.WriteString(". After that, take the ")
	}
	if suggestion.TransitInstruction == "" {
		return newAskResponse(errorString, "Try Again")
	}
	directions.WriteString(suggestion.TransitInstruction + ". ")
	return t.respondWithReprompt(attrs, directions.String(), "Transit Directions", IntentGetDirections)
}

// HandleRepeatSuggestion re-speaks the previous summary verbatim. The reprompt
// rotation still advances on repeat.
func (t *TransitDialogService) HandleRepeatSuggestion(attrs *session.Attributes, _ models.Intent, _ *models.TransitUser) *models.SkillResponse {
	previousResponse, ok := attrs.PreviousResponse()
	if !ok {
		return newAskResponse(helpString, "Try Again")
	}
	return t.respondWithReprompt(attrs, previousResponse, "Previous Suggestion", IntentRepeat)
}

// HandleNextSuggestion advances to the next ranked option.
func (t *TransitDialogService) HandleNextSuggestion(attrs *session.Attributes, _ models.Intent, _ *models.TransitUser) *models.SkillResponse {
	return t.moveSuggestion(attrs, 1, "Your next option is ", IntentNext)
}

// HandlePreviousSuggestion steps back to the previous ranked option.
func (t *TransitDialogService) HandlePreviousSuggestion(attrs *session.Attributes, _ models.Intent, _ *models.TransitUser) *models.SkillResponse {
	return t.moveSuggestion(attrs, -1, "The previous option was ", IntentPrevious)
}

// HandleYesNo resolves a yes/no answer against the pending follow-up intent.
// "Yes" resumes the remembered operation through the same per-intent handler
// it would use if asked directly; "no" ends the session politely.
func (t *TransitDialogService) HandleYesNo(attrs *session.Attributes, intent models.Intent, user *models.TransitUser) *models.SkillResponse {
	switch intent.Name {
	case IntentYes:
		repromptIntent, hasPending := attrs.RepromptIntent()
		if !hasPending || !attrs.HasSuggestions() {
			logrus.Error("Yes answer without a pending follow-up or active suggestion")
			return newInternalErrorResponse()
		}
		return t.Dispatch(repromptIntent, attrs, intent, user)

	case IntentNo:
		return newTellResponse("Bye. Have a nice ride. ", "Have a safe ride.")

	default:
		logrus.Errorf("Unexpected intent %s in yes/no resolution", intent.Name)
		return newInternalErrorResponse()
	}
}

func (t *TransitDialogService) moveSuggestion(attrs *session.Attributes, delta int, introText, intentName string) *models.SkillResponse {
	pager := session.NewPager(attrs)
	suggestion, err := pager.Advance(delta)

	switch {
	case errors.Is(err, session.ErrOutOfRange):
		return newTellResponse("Sorry. No more transit options available. ", "Transit Suggestion")
	case errors.Is(err, session.ErrNoActivePage):
		return newAskResponse(helpString, "Try Again")
	case err != nil:
		logrus.WithError(err).Error("Failed to read suggestion page")
		return newInternalErrorResponse()
	}
	return t.suggestionToDetailedResponse(attrs, suggestion, introText, intentName)
}

// currentSuggestion loads the active suggestion or produces the response that
// should be spoken instead when none is available.
func (t *TransitDialogService) currentSuggestion(attrs *session.Attributes) (*models.TransitSuggestion, *models.SkillResponse) {
	suggestion, err := session.NewPager(attrs).Current()
	if errors.Is(err, session.ErrNoActivePage) {
		return nil, newAskResponse(helpString, "Try Again")
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to read suggestion page")
		return nil, newInternalErrorResponse()
	}
	return suggestion, nil
}

// suggestionToDetailedResponse composes the detailed spoken summary of one
// suggestion. Minutes and seconds are computed against the clock at formatting
// time, so repeated reads of a cached suggestion yield shrinking countdowns.
func (t *TransitDialogService) suggestionToDetailedResponse(attrs *session.Attributes, suggestion *models.TransitSuggestion, introText, intentName string) *models.SkillResponse {
	now := t.now()
	var output strings.Builder
	output.WriteString(introText)

	if suggestion.TransitID != "" {
		output.WriteString(suggestion.TransitType + " number " + suggestion.TransitID + ". ")
	}

	minutesToArrival := suggestion.MinutesToTransitArrival(now)
	output.WriteString(fmt.Sprintf("It will arrive in %d %s. ",
		minutesToArrival, pluralMinutes(minutesToArrival)))

	if suggestion.WalkingDuration != nil {
		output.WriteString("It will take you " + suggestion.WalkingDuration.Text +
			" to walk to the " + suggestion.TransitType + " location. ")
	}

	leavingTimeSeconds := suggestion.LeavingTimeSeconds(now)
	if leavingTimeSeconds <= leaveNowThresholdSeconds {
		output.WriteString("I recommend you leave now. ")
	} else {
		leavingTimeMinutes := leavingTimeSeconds / 60
		output.WriteString(fmt.Sprintf("You should leave in %d %s. ",
			leavingTimeMinutes, pluralMinutes(leavingTimeMinutes)))
	}

	switch {
	case suggestion.NumOfSwitches == 1:
		output.WriteString("You will have to make a transit switch. ")
	case suggestion.NumOfSwitches > 1:
		output.WriteString(fmt.Sprintf("You will have to make %d transit switches. ", suggestion.NumOfSwitches))
	}
	return t.respondWithReprompt(attrs, output.String(), "Transit Suggestion", intentName)
}

// respondWithReprompt appends the chosen follow-up question, remembers the
// spoken summary for repeat requests and wraps the speech in voice markup.
func (t *TransitDialogService) respondWithReprompt(attrs *session.Attributes, output, cardTitle, justAnswered string) *models.SkillResponse {
	actualOutput := sanitizeSpeech(output)
	repromptQuestion := t.reprompts.Choose(attrs, justAnswered)
	attrs.SetPreviousResponse(actualOutput)

	return &models.SkillResponse{
		SpeechText:   "<speak>" + actualOutput + `<break time="1s"/>` + "</speak>",
		RepromptText: repromptQuestion,
		CardTitle:    cardTitle,
		CardBody:     actualOutput,
	}
}

func pluralMinutes(minutes int) string {
	if minutes == 1 {
		return "minute"
	}
	return "minutes"
}
