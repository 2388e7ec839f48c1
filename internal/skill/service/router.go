package service

import (
	"errors"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/DenisKhanov/CommuteBot/internal/skill/session"
	"github.com/sirupsen/logrus"
)

const welcomeSpeech = "Hi! I'm Transit Helper. " +
	"I'll be glad to help you with transit information from" +
	" home to work. For example, you can ask me, " +
	"\"when's the next bus to work\"."

const helpSpeech = "In order to get transit information from your home to work," +
	" you can ask me, \"when's the next bus to work\", or, \"when's the next transit" +
	" to work.\". After that, I can help you with more information, like arrival time," +
	" duration of travel, and directions."

// SkillService routes each request envelope to the dialogue controller that
// owns its intent and wraps the spoken answer back into a response envelope.
type SkillService struct {
	transit *TransitDialogService
	setup   *SetupDialogService
	users   UserStore
	maps    MapsService
}

// NewSkillService creates the top-level request router.
func NewSkillService(transit *TransitDialogService, setup *SetupDialogService, users UserStore, maps MapsService) *SkillService {
	return &SkillService{
		transit: transit,
		setup:   setup,
		users:   users,
		maps:    maps,
	}
}

// HandleRequest processes one conversational turn. It never returns nil; any
// failure surfaces as a spoken apology.
func (s *SkillService) HandleRequest(env *models.RequestEnvelope) *models.ResponseEnvelope {
	attrs := session.NewAttributes(env.Session.Attributes)

	var resp *models.SkillResponse
	switch env.Request.Type {
	case models.RequestTypeLaunch:
		logrus.Infof("Launch request. Session: %s", env.Session.SessionID)
		resp = newAskResponse(welcomeSpeech, "Transit Helper")

	case models.RequestTypeIntent:
		resp = s.handleIntent(attrs, env.Request.Intent, env.Session.User.UserID)

	case models.RequestTypeSessionEnded:
		logrus.Infof("Session ended. Session: %s", env.Session.SessionID)
		resp = &models.SkillResponse{ShouldEndSession: true}

	default:
		logrus.Errorf("Unrecognized request type: %s", env.Request.Type)
		resp = newInternalErrorResponse()
	}
	return models.NewResponseEnvelope(resp, attrs.Values())
}

func (s *SkillService) handleIntent(attrs *session.Attributes, intent models.Intent, userID string) *models.SkillResponse {
	logrus.Infof("Intent name: %s", intent.Name)

	// Exit works regardless of profile or dialogue state.
	if intent.Name == IntentStop || intent.Name == IntentCancel {
		return newTellResponse("Bye. Have a nice ride.", "Have a safe ride.")
	}

	user, err := s.users.GetUser(userID)
	if errors.Is(err, models.ErrUserNotFound) {
		logrus.Infof("User does not exist. Handling user setup. User: %s", userID)
		return s.setup.HandleSetupTurn(attrs, intent, userID)
	}
	if err != nil {
		logrus.WithError(err).Errorf("Failed to load profile for user: %s", userID)
		return newInternalErrorResponse()
	}
	logrus.Infof("User exists. User: %s", userID)

	switch {
	case s.transit.Handles(intent.Name):
		s.ensureTimezone(user)
		return s.transit.Dispatch(intent.Name, attrs, intent, user)

	case intent.Name == IntentUpdateHomeAddress:
		return s.setup.HandleUpdateHomeAddress(attrs)

	case intent.Name == IntentUpdateWorkAddress:
		return s.setup.HandleUpdateWorkAddress(attrs)

	case intent.Name == IntentAddDestination:
		return s.setup.HandleAddDestination(attrs)

	case intent.Name == IntentGetHomeAddress:
		return s.setup.HandleGetHomeAddress(userID)

	case intent.Name == IntentGetWorkAddress:
		return s.setup.HandleGetWorkAddress(userID)

	case intent.Name == IntentPutPostalAddress,
		intent.Name == IntentPutStreetAddress,
		intent.Name == IntentPutLocationName:
		return s.setup.HandleSetupTurn(attrs, intent, userID)

	case intent.Name == IntentYes || intent.Name == IntentNo:
		return s.handleYesNo(attrs, intent, userID, user)

	case intent.Name == IntentHelp:
		return newAskResponse(helpSpeech, "Usage")

	default:
		logrus.Errorf("Unrecognized intent: %s", intent.Name)
		return newInternalErrorResponse()
	}
}

// handleYesNo decides which dialogue a bare yes/no answer belongs to: an
// active suggestion page wins, then an in-progress setup conversation.
func (s *SkillService) handleYesNo(attrs *session.Attributes, intent models.Intent, userID string, user *models.TransitUser) *models.SkillResponse {
	if attrs.HasSuggestions() {
		logrus.Info("Handling suggestion follow-up")
		return s.transit.HandleYesNo(attrs, intent, user)
	}
	if s.setup.InSetup(attrs) {
		logrus.Info("Handling address setup confirmation")
		return s.setup.HandleSetupTurn(attrs, intent, userID)
	}
	logrus.Error("Yes/no answer outside any active dialogue")
	return newInternalErrorResponse()
}

// ensureTimezone fills in a missing timezone from the home address before the
// transit dialogue formats any times. Failures are swallowed; the default
// timezone covers this turn and the lookup is retried later.
func (s *SkillService) ensureTimezone(user *models.TransitUser) {
	if user.TimeZone != "" || user.HomeAddress == "" {
		return
	}
	timezone, err := s.maps.GetTimezoneFromAddress(user.HomeAddress)
	if err != nil || timezone == "" {
		logrus.WithError(err).Warnf("Could not resolve timezone for user: %s", user.UserID)
		return
	}
	if err = s.users.AddOrUpdateTimezone(user.UserID, timezone); err != nil {
		logrus.WithError(err).Warnf("Could not persist timezone for user: %s", user.UserID)
		return
	}
	user.TimeZone = timezone
}
