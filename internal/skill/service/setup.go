package service

import (
	"errors"
	"strings"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/DenisKhanov/CommuteBot/internal/skill/session"
	"github.com/sirupsen/logrus"
)

// SetupState is the progress marker of the guided setup conversation,
// serialized into the session attribute bag between turns. The home/work flow
// and the named-destination flow are mutually exclusive per session.
type SetupState string

const (
	StateAwaitingHome               SetupState = "awaitingHomeAddress"
	StateAwaitingHomeConfirm        SetupState = "awaitingHomeConfirm"
	StateAwaitingWork               SetupState = "awaitingWorkAddress"
	StateAwaitingWorkConfirm        SetupState = "awaitingWorkConfirm"
	StateAwaitingDestinationName    SetupState = "awaitingDestinationName"
	StateAwaitingDestinationAddress SetupState = "awaitingDestinationAddress"
	StateAwaitingDestinationConfirm SetupState = "awaitingDestinationConfirm"
)

// intentKind classifies intents into the shapes the setup transition table
// distinguishes.
type intentKind int

const (
	kindOther intentKind = iota
	kindAddress
	kindLocationName
	kindYes
	kindNo
)

func classifyIntent(name string) intentKind {
	switch name {
	case IntentPutPostalAddress, IntentPutStreetAddress:
		return kindAddress
	case IntentPutLocationName:
		return kindLocationName
	case IntentYes:
		return kindYes
	case IntentNo:
		return kindNo
	default:
		return kindOther
	}
}

// Prompt texts of the setup conversation.
const (
	homeAddressPrompt = "In order to give you transit information, " +
		"I first need your home address, with zip code. For example, you can say, my home address " +
		"is, Fifteen Zero Nine Blakeley Street, Seattle, Washington, Nine Eight Three Three Zero."

	workAddressPrompt = "Ok. Now tell me your work address, with zip code. For example, you can say" +
		", my work address is Twenty Four Hundred Martin Street, Seattle, Washington," +
		" Nine Eight One One Four"

	locationNameExampleSpeech = "For example, you can say, the location name is gym," +
		" or the location name is grocery store."

	locationAddressExampleSpeech = "For example, you can say," +
		" the location address is Nineteen Twenty Sixteenth Avenue," +
		" San Francisco, California, Nine Four Zero Four Three"

	setupCompletedSpeech = "OK. I have everything I need. Now I can help you with " +
		"transit information. For example, you can ask me, 'When's my next bus to work.'"
)

// UserStore defines the profile persistence operations the dialogue layer
// depends on.
type UserStore interface {
	GetUser(userID string) (*models.TransitUser, error)
	UpsertUser(userID, homeAddress string, destinations map[string]string, timezone string) (*models.TransitUser, error)
	UpdateHomeAddress(userID, homeAddress string) error
	AddOrUpdateDestination(userID, name, address string) error
	AddOrUpdateTimezone(userID, timezone string) error
}

// setupHandler is one cell of the (state x intent) transition table.
type setupHandler func(attrs *session.Attributes, intent models.Intent, userID string) *models.SkillResponse

type transitionKey struct {
	state SetupState
	kind  intentKind
}

// SetupDialogService walks a user through the strictly linear collection and
// confirmation of home address, work address and, independently, named
// destinations, writing confirmed values to the profile store. Illegal
// state/intent combinations fall off the transition table and re-prompt
// without changing state.
type SetupDialogService struct {
	maps        MapsService
	users       UserStore
	transitions map[transitionKey]setupHandler
}

// NewSetupDialogService creates the setup dialogue controller.
func NewSetupDialogService(maps MapsService, users UserStore) *SetupDialogService {
	s := &SetupDialogService{
		maps:  maps,
		users: users,
	}
	s.transitions = map[transitionKey]setupHandler{
		{StateAwaitingHome, kindAddress}:               s.resolveHomeAddress,
		{StateAwaitingHomeConfirm, kindYes}:            s.confirmHomeAddress,
		{StateAwaitingHomeConfirm, kindNo}:             s.retryHomeAddress,
		{StateAwaitingWork, kindAddress}:               s.resolveWorkAddress,
		{StateAwaitingWorkConfirm, kindYes}:            s.confirmWorkAddress,
		{StateAwaitingWorkConfirm, kindNo}:             s.retryWorkAddress,
		{StateAwaitingDestinationName, kindLocationName}: s.resolveDestinationName,
		{StateAwaitingDestinationAddress, kindAddress}:   s.resolveDestinationAddress,
		{StateAwaitingDestinationConfirm, kindYes}:       s.confirmDestination,
		{StateAwaitingDestinationConfirm, kindNo}:        s.retryDestinationAddress,
	}
	return s
}

// HandleSetupTurn advances the setup conversation by one turn. A session
// without a progress marker is prompted for the home address first.
func (s *SetupDialogService) HandleSetupTurn(attrs *session.Attributes, intent models.Intent, userID string) *models.SkillResponse {
	state, ok := attrs.SetupState()
	if !ok {
		logrus.Info("Prompting user to set up home address")
		attrs.SetSetupState(string(StateAwaitingHome))
		return newAskResponse(homeAddressPrompt, "Home Address")
	}

	handler, ok := s.transitions[transitionKey{SetupState(state), classifyIntent(intent.Name)}]
	if !ok {
		logrus.Infof("No setup transition for state %s and intent %s", state, intent.Name)
		return newTryAgainResponse()
	}
	return handler(attrs, intent, userID)
}

// InSetup reports whether a setup conversation is in progress in this session.
func (s *SetupDialogService) InSetup(attrs *session.Attributes) bool {
	_, ok := attrs.SetupState()
	return ok
}

// HandleUpdateHomeAddress re-enters the home collection state for an existing
// user who wants to change their address.
func (s *SetupDialogService) HandleUpdateHomeAddress(attrs *session.Attributes) *models.SkillResponse {
	attrs.ClearSetupState()
	attrs.SetSetupState(string(StateAwaitingHome))
	return newAskResponse("Ok. If you'd like to change your home address, tell me your"+
		" new home address, with zip code. For example, you can say, my home address is"+
		" ,Nineteen Twenty Twenty Fourth, San Francisco, California, Nine Four Zero Four Four.",
		"Change Home Address")
}

// HandleUpdateWorkAddress re-enters the work collection state.
func (s *SetupDialogService) HandleUpdateWorkAddress(attrs *session.Attributes) *models.SkillResponse {
	attrs.ClearSetupState()
	attrs.SetSetupState(string(StateAwaitingWork))
	return newAskResponse("Ok. If you'd like to change your work address, tell me your"+
		" new work address, with zip code. For example, you can say, my work address is"+
		" ,Nineteen Twenty Sixteenth Avenue, San Francisco, California, Nine Four Zero Four Three.",
		"Change Work Address")
}

// HandleAddDestination starts the named-destination sub-flow. It clears any
// home/work marker first; the two flows never overlap in one session.
func (s *SetupDialogService) HandleAddDestination(attrs *session.Attributes) *models.SkillResponse {
	attrs.ClearSetupState()
	attrs.SetSetupState(string(StateAwaitingDestinationName))
	return newAskResponse("OK. Please give me a name for the location. "+
		locationNameExampleSpeech, "Location Name")
}

// HandleGetHomeAddress speaks the stored home address.
func (s *SetupDialogService) HandleGetHomeAddress(userID string) *models.SkillResponse {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return userLookupFailureResponse(err)
	}
	if user.HomeAddress == "" {
		return newTellResponse("Sorry, I cannot find your home address."+
			" To add or update your home address, you can say, change my home address. ",
			"Home Address not found.")
	}
	return newTellResponse("Sure. Your home address is, "+user.HomeAddress, "Home Address")
}

// HandleGetWorkAddress speaks the stored work address.
func (s *SetupDialogService) HandleGetWorkAddress(userID string) *models.SkillResponse {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return userLookupFailureResponse(err)
	}
	workAddress, ok := user.WorkAddress()
	if !ok {
		return newTellResponse("Sorry, I cannot find your work address."+
			" To add or update your work address, you can say, change my work address. ",
			"Work Address not found.")
	}
	return newTellResponse("Sure. Your work address is, "+workAddress, "Work Address")
}

func userLookupFailureResponse(err error) *models.SkillResponse {
	if errors.Is(err, models.ErrUserNotFound) {
		return newTellResponse("Sorry, I cannot find your information. ", "User not found")
	}
	logrus.WithError(err).Error("Failed to load user profile")
	return newInternalErrorResponse()
}

// resolveAddressSlot resolves the address slot through the geocoding
// collaborator. An empty result means the address could not be understood.
func (s *SetupDialogService) resolveAddressSlot(intent models.Intent) string {
	addressValue := intent.SlotValue(SlotAddress)
	if strings.TrimSpace(addressValue) == "" {
		logrus.Warn("Address slot was blank")
		return ""
	}
	resolvedAddress, err := s.maps.GetAddressOfPlace(addressValue)
	if err != nil {
		logrus.WithError(err).Warnf("Could not resolve address %q", addressValue)
		return ""
	}
	return resolvedAddress
}

func (s *SetupDialogService) resolveHomeAddress(attrs *session.Attributes, intent models.Intent, _ string) *models.SkillResponse {
	resolvedAddress := s.resolveAddressSlot(intent)
	if resolvedAddress == "" {
		return newAskResponse("Sorry. I could not find this address. Please try again. ", "Try Again.")
	}
	attrs.SetHomeAddress(resolvedAddress)
	attrs.SetSetupState(string(StateAwaitingHomeConfirm))
	return newAskResponse("Ok. I understood your home address to be, "+
		resolvedAddress+". Is this correct?", "Home Address")
}

func (s *SetupDialogService) retryHomeAddress(attrs *session.Attributes, _ models.Intent, _ string) *models.SkillResponse {
	attrs.SetSetupState(string(StateAwaitingHome))
	return newAskResponse("Ok. Let's try again with your Home Address.", "Home Address")
}

// confirmHomeAddress either finishes a home-address change for an existing
// user or moves a fresh setup on to the work address.
func (s *SetupDialogService) confirmHomeAddress(attrs *session.Attributes, _ models.Intent, userID string) *models.SkillResponse {
	homeAddress, ok := attrs.HomeAddress()
	if !ok {
		return newTryAgainResponse()
	}

	if _, err := s.users.GetUser(userID); err == nil {
		return s.updateHomeAddressAndRespond(attrs, userID, homeAddress)
	} else if !errors.Is(err, models.ErrUserNotFound) {
		logrus.WithError(err).Error("Failed to look up user during home confirmation")
		return newTryAgainResponse()
	}

	attrs.SetSetupState(string(StateAwaitingWork))
	return newAskResponse(workAddressPrompt, "Work Address")
}

func (s *SetupDialogService) updateHomeAddressAndRespond(attrs *session.Attributes, userID, homeAddress string) *models.SkillResponse {
	logrus.Infof("Updating home address for user: %s", userID)
	if err := s.users.UpdateHomeAddress(userID, homeAddress); err != nil {
		logrus.WithError(err).Error("Could not update home address")
		return newTryAgainResponse()
	}
	s.tryUpdateTimezone(userID, homeAddress)
	attrs.ClearSetupState()
	return newTellResponse("OK. I changed your home address.", "Home address changed")
}

// tryUpdateTimezone refreshes the stored timezone after a home address change.
// Failures only log; the old timezone stays in place until a later turn.
func (s *SetupDialogService) tryUpdateTimezone(userID, homeAddress string) {
	timezone, err := s.maps.GetTimezoneFromAddress(homeAddress)
	if err != nil {
		logrus.WithError(err).Warnf("Could not resolve timezone for user: %s", userID)
		return
	}
	if err = s.users.AddOrUpdateTimezone(userID, timezone); err != nil {
		logrus.WithError(err).Warnf("Could not store timezone for user: %s", userID)
	}
}

func (s *SetupDialogService) resolveWorkAddress(attrs *session.Attributes, intent models.Intent, _ string) *models.SkillResponse {
	resolvedAddress := s.resolveAddressSlot(intent)
	if resolvedAddress == "" {
		return newAskResponse("Sorry. I could not find this address. Please try again. ", "Try Again.")
	}
	attrs.SetWorkAddress(resolvedAddress)
	attrs.SetSetupState(string(StateAwaitingWorkConfirm))
	return newAskResponse("Ok. I understood your work address to be, "+
		resolvedAddress+". Is this correct?", "Work Address")
}

func (s *SetupDialogService) retryWorkAddress(attrs *session.Attributes, _ models.Intent, _ string) *models.SkillResponse {
	attrs.SetSetupState(string(StateAwaitingWork))
	return newAskResponse("Ok. Let's try again with your Work Address.", "Work Address")
}

// confirmWorkAddress completes the linear setup: it persists the profile with
// both addresses and a best-effort timezone. For an existing user it only
// updates the work destination.
func (s *SetupDialogService) confirmWorkAddress(attrs *session.Attributes, _ models.Intent, userID string) *models.SkillResponse {
	workAddress, ok := attrs.WorkAddress()
	if !ok {
		return newTryAgainResponse()
	}

	if _, err := s.users.GetUser(userID); err == nil {
		if err = s.users.AddOrUpdateDestination(userID, models.WorkDestination, workAddress); err != nil {
			logrus.WithError(err).Error("Could not update work address")
			return newTryAgainResponse()
		}
		attrs.ClearSetupState()
		return newTellResponse("OK. I changed your work address.", "Work address changed")
	} else if !errors.Is(err, models.ErrUserNotFound) {
		logrus.WithError(err).Error("Failed to look up user during work confirmation")
		return newTryAgainResponse()
	}

	homeAddress, ok := attrs.HomeAddress()
	if !ok {
		// Work confirmation without a staged home address means the session
		// data was lost; restart the flow instead of guessing.
		attrs.ClearSetupState()
		return newTryAgainResponse()
	}

	// Timezone lookup failures are swallowed; the profile is created without
	// a timezone and the lookup is retried on a later turn.
	timezone, err := s.maps.GetTimezoneFromAddress(homeAddress)
	if err != nil {
		logrus.WithError(err).Warnf("Could not resolve timezone for user: %s", userID)
		timezone = ""
	}

	destinations := map[string]string{models.WorkDestination: workAddress}
	logrus.Infof("Attempting to insert user: %s", userID)
	user, err := s.users.UpsertUser(userID, homeAddress, destinations, timezone)
	if err != nil {
		logrus.WithError(err).Error("Could not insert user into the profile store")
		return newAskResponse("Sorry. I'm having some issues entering your details. Please try again. ",
			"Try again. ")
	}
	logrus.Infof("User setup successful. User: %s", user.UserID)
	attrs.ClearSetupState()
	return newAskResponse(setupCompletedSpeech, "User Setup completed.")
}

func (s *SetupDialogService) resolveDestinationName(attrs *session.Attributes, intent models.Intent, _ string) *models.SkillResponse {
	locationName := intent.SlotValue(SlotLocation)
	if strings.TrimSpace(locationName) == "" {
		logrus.Warn("Location name slot was blank")
		return newAskResponse("Sorry, I could not understand the location name. Please"+
			" tell me again. "+locationNameExampleSpeech, "Location Name")
	}
	attrs.SetDestinationName(locationName)
	attrs.SetSetupState(string(StateAwaitingDestinationAddress))
	return newAskResponse("OK. Please tell me the location address with zip code. "+
		locationAddressExampleSpeech, "Location Address")
}

func (s *SetupDialogService) resolveDestinationAddress(attrs *session.Attributes, intent models.Intent, _ string) *models.SkillResponse {
	locationName, ok := attrs.DestinationName()
	if !ok {
		attrs.SetSetupState(string(StateAwaitingDestinationName))
		return newAskResponse("Ok. Please tell me the location name first. "+
			locationNameExampleSpeech, "Location Name")
	}
	resolvedAddress := s.resolveAddressSlot(intent)
	if resolvedAddress == "" {
		return newAskResponse("Sorry. I could not understand the location address. Please try again. "+
			locationAddressExampleSpeech, "Location Address")
	}
	attrs.SetDestinationAddress(resolvedAddress)
	attrs.SetSetupState(string(StateAwaitingDestinationConfirm))
	return newAskResponse("Ok. I understood the address for "+locationName+
		" to be "+resolvedAddress+". Is this correct? ", "Location Address")
}

func (s *SetupDialogService) retryDestinationAddress(attrs *session.Attributes, _ models.Intent, _ string) *models.SkillResponse {
	attrs.SetSetupState(string(StateAwaitingDestinationAddress))
	return newAskResponse("OK. Please try again. "+locationAddressExampleSpeech, "Location Address")
}

func (s *SetupDialogService) confirmDestination(attrs *session.Attributes, _ models.Intent, userID string) *models.SkillResponse {
	locationName, hasName := attrs.DestinationName()
	locationAddress, hasAddress := attrs.DestinationAddress()
	if !hasName || !hasAddress {
		attrs.ClearSetupState()
		return newTryAgainResponse()
	}

	logrus.Infof("Adding destination %s for userId: %s", locationName, userID)
	if err := s.users.AddOrUpdateDestination(userID, locationName, locationAddress); err != nil {
		logrus.WithError(err).Error("Could not add destination")
		return newTryAgainResponse()
	}
	attrs.ClearSetupState()
	return newTellResponse("OK. I've added "+locationName+" as a destination.", "Destination added")
}
