// Package tgbridge runs a Telegram development console for the skill. It maps
// a fixed set of text commands onto the intents of the interaction model, so
// the whole dialogue can be exercised in a chat without a voice device. There
// is no natural-language understanding here; unrecognized input gets a usage
// hint.
package tgbridge

import (
	"strconv"
	"strings"
	"sync"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Skill defines the interface for handling one conversational turn.
type Skill interface {
	HandleRequest(env *models.RequestEnvelope) *models.ResponseEnvelope
}

const usageHint = "Commands:\n" +
	"  /start - launch the skill\n" +
	"  /stop - end the session\n" +
	"  /help - skill help\n" +
	"  next bus to work - ask for a transit suggestion\n" +
	"  arrival / duration / directions - details of the current option\n" +
	"  next / previous / repeat - browse options\n" +
	"  yes / no - answer a follow-up question\n" +
	"  address is <address> - answer an address question\n" +
	"  location name is <name> - name a new destination\n" +
	"  change home / change work - update stored addresses\n" +
	"  add destination - store a new destination\n" +
	"  my home address / my work address - read stored addresses"

// chatSession mirrors one voice session for one Telegram chat: the attribute
// bag survives between messages until the skill ends the session.
type chatSession struct {
	id         string
	attributes map[string]any
	isNew      bool
}

// Bridge connects a Telegram bot to the skill service.
type Bridge struct {
	bot      *tgbotapi.BotAPI
	skill    Skill
	sessions map[int64]*chatSession // Active session per chat ID.
	mu       *sync.Mutex            // Protects sessions from concurrent access
}

// NewBridge creates a new Bridge instance.
// Arguments:
//   - bot: Telegram Bot API instance.
//   - skill: the skill service handling request envelopes.
//
// Returns a pointer to a Bridge.
func NewBridge(bot *tgbotapi.BotAPI, skill Skill) *Bridge {
	return &Bridge{
		bot:      bot,
		skill:    skill,
		sessions: make(map[int64]*chatSession),
		mu:       &sync.Mutex{},
	}
}

// HandleUpdate processes one Telegram update and replies with the skill's
// spoken text.
func (b *Bridge) HandleUpdate(update *tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	logrus.Infof("Console message from chat %d: %s", chatID, text)

	requestType, intent, ok := parseCommand(text)
	if !ok {
		b.reply(chatID, usageHint)
		return
	}

	session := b.session(chatID)
	env := &models.RequestEnvelope{
		Version: "1.0",
		Session: models.Session{
			New:        session.isNew,
			SessionID:  session.id,
			Attributes: session.attributes,
			User:       models.User{UserID: userID(chatID)},
		},
		Request: models.Request{
			Type:      requestType,
			RequestID: uuid.NewString(),
			Intent:    intent,
		},
	}
	session.isNew = false

	response := b.skill.HandleRequest(env)
	b.applyResponse(chatID, session, response)
}

// session returns the active session of the chat, creating one if needed.
func (b *Bridge) session(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	session, ok := b.sessions[chatID]
	if !ok {
		session = &chatSession{
			id:         uuid.NewString(),
			attributes: make(map[string]any),
			isNew:      true,
		}
		b.sessions[chatID] = session
	}
	return session
}

func (b *Bridge) applyResponse(chatID int64, session *chatSession, response *models.ResponseEnvelope) {
	if text := spokenText(response); text != "" {
		b.reply(chatID, text)
	}
	if question := repromptText(response); question != "" {
		b.reply(chatID, question)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if response.Response.ShouldEndSession {
		delete(b.sessions, chatID)
		return
	}
	session.attributes = response.SessionAttributes
}

func (b *Bridge) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		logrus.WithError(err).Errorf("Failed to send message to chat %d", chatID)
	}
}

// userID derives the stable profile identity of a chat.
func userID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// spokenText extracts the plain reply text from a response envelope, stripping
// the voice markup.
func spokenText(response *models.ResponseEnvelope) string {
	return speechText(response.Response.OutputSpeech)
}

// repromptText extracts the follow-up question of a response envelope, so the
// console shows the question a later "yes" or "no" would answer.
func repromptText(response *models.ResponseEnvelope) string {
	reprompt := response.Response.Reprompt
	if reprompt == nil {
		return ""
	}
	return speechText(reprompt.OutputSpeech)
}

func speechText(speech *models.OutputSpeech) string {
	if speech == nil {
		return ""
	}
	text := speech.Text
	if speech.Type == models.SpeechTypeSSML {
		text = stripVoiceMarkup(speech.SSML)
	}
	return strings.TrimSpace(text)
}

var markupReplacer = strings.NewReplacer(
	"<speak>", "",
	"</speak>", "",
	`<break time="1s"/>`, " ",
)

func stripVoiceMarkup(ssml string) string {
	return markupReplacer.Replace(ssml)
}

// parseCommand maps one console message onto a request type and intent.
func parseCommand(text string) (string, models.Intent, bool) {
	lower := strings.ToLower(text)

	switch lower {
	case "/start":
		return models.RequestTypeLaunch, models.Intent{}, true
	case "/stop", "stop", "cancel":
		return models.RequestTypeIntent, models.Intent{Name: "AMAZON.StopIntent"}, true
	case "/help", "help":
		return models.RequestTypeIntent, models.Intent{Name: "AMAZON.HelpIntent"}, true
	case "yes":
		return models.RequestTypeIntent, models.Intent{Name: "YesIntent"}, true
	case "no":
		return models.RequestTypeIntent, models.Intent{Name: "NoIntent"}, true
	case "next":
		return models.RequestTypeIntent, models.Intent{Name: "AMAZON.NextIntent"}, true
	case "previous":
		return models.RequestTypeIntent, models.Intent{Name: "AMAZON.PreviousIntent"}, true
	case "repeat":
		return models.RequestTypeIntent, models.Intent{Name: "AMAZON.RepeatIntent"}, true
	case "arrival":
		return models.RequestTypeIntent, models.Intent{Name: "GetArrivalTime"}, true
	case "duration":
		return models.RequestTypeIntent, models.Intent{Name: "GetTotalTransitDuration"}, true
	case "directions":
		return models.RequestTypeIntent, models.Intent{Name: "GetDirections"}, true
	case "change home":
		return models.RequestTypeIntent, models.Intent{Name: "UpdateHomeAddress"}, true
	case "change work":
		return models.RequestTypeIntent, models.Intent{Name: "UpdateWorkAddress"}, true
	case "add destination":
		return models.RequestTypeIntent, models.Intent{Name: "AddDestination"}, true
	case "my home address":
		return models.RequestTypeIntent, models.Intent{Name: "GetHomeAddress"}, true
	case "my work address":
		return models.RequestTypeIntent, models.Intent{Name: "GetWorkAddress"}, true
	}

	if transitType, ok := parseTransitRequest(lower); ok {
		return models.RequestTypeIntent, models.Intent{
			Name: "GetNextTransitToWork",
			Slots: map[string]models.Slot{
				"transit": {Name: "transit", Value: transitType},
			},
		}, true
	}

	if address, ok := cutPrefixAny(text, "address is ", "my home address is ", "my work address is ", "the location address is "); ok {
		return models.RequestTypeIntent, models.Intent{
			Name: "PutPostalAddress",
			Slots: map[string]models.Slot{
				"address": {Name: "address", Value: strings.TrimSpace(address)},
			},
		}, true
	}

	if name, ok := cutPrefixAny(text, "location name is ", "the location name is "); ok {
		return models.RequestTypeIntent, models.Intent{
			Name: "PutLocationName",
			Slots: map[string]models.Slot{
				"location": {Name: "location", Value: strings.TrimSpace(name)},
			},
		}, true
	}

	return "", models.Intent{}, false
}

// parseTransitRequest matches "next <transit> to work" style commands.
func parseTransitRequest(lower string) (string, bool) {
	trimmed := strings.TrimPrefix(lower, "next ")
	if trimmed == lower {
		return "", false
	}
	transitType, found := strings.CutSuffix(trimmed, " to work")
	if !found || strings.TrimSpace(transitType) == "" {
		return "", false
	}
	return strings.TrimSpace(transitType), true
}

func cutPrefixAny(text string, prefixes ...string) (string, bool) {
	lower := strings.ToLower(text)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			return text[len(prefix):], true
		}
	}
	return "", false
}
