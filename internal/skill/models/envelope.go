package models

import "strings"

// Request types delivered by the voice platform.
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
)

// Output speech types of the response envelope.
const (
	SpeechTypeSSML      = "SSML"
	SpeechTypePlainText = "PlainText"
)

// RequestEnvelope is the JSON document the voice platform posts once per
// conversational turn. Intent recognition and slot filling already happened
// on the platform side; the backend only consumes the recognized intent name,
// the slot values and the session attribute bag.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Request Request `json:"request"`
}

// Session carries the per-conversation state. Attributes survive across turns
// of one session but not across sessions.
type Session struct {
	New        bool           `json:"new"`
	SessionID  string         `json:"sessionId"`
	Attributes map[string]any `json:"attributes,omitempty"`
	User       User           `json:"user"`
}

// User identifies the caller across sessions.
type User struct {
	UserID string `json:"userId"`
}

// Request describes one recognized user utterance.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Intent    Intent `json:"intent,omitempty"`
}

// Intent is the recognized intent name plus its named slot values.
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is one named value filled by the platform's speech recognition.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SlotValue returns the value of the named slot, or "" if the slot is absent.
func (i Intent) SlotValue(name string) string {
	slot, ok := i.Slots[name]
	if !ok {
		return ""
	}
	return slot.Value
}

// ResponseEnvelope is the JSON document returned to the voice platform.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response holds the speech, reprompt and card of one turn.
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

// OutputSpeech is either SSML voice markup or plain text.
type OutputSpeech struct {
	Type string `json:"type"`
	SSML string `json:"ssml,omitempty"`
	Text string `json:"text,omitempty"`
}

// Card is the short visual summary shown in the companion app.
type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Reprompt is the follow-up question spoken when the user stays silent.
type Reprompt struct {
	OutputSpeech *OutputSpeech `json:"outputSpeech"`
}

// SkillResponse is what the dialogue controllers produce for one turn before
// it is packed into the platform envelope.
type SkillResponse struct {
	SpeechText       string // Voice-markup string, possibly wrapped in <speak> tags
	RepromptText     string // Optional follow-up question
	CardTitle        string
	CardBody         string
	ShouldEndSession bool
}

// NewResponseEnvelope packs a SkillResponse and the (possibly mutated) session
// attributes into the platform response envelope.
func NewResponseEnvelope(resp *SkillResponse, sessionAttributes map[string]any) *ResponseEnvelope {
	envelope := &ResponseEnvelope{
		Version:           "1.0",
		SessionAttributes: sessionAttributes,
		Response: Response{
			ShouldEndSession: resp.ShouldEndSession,
		},
	}

	if resp.SpeechText != "" {
		envelope.Response.OutputSpeech = newOutputSpeech(resp.SpeechText)
	}
	if resp.RepromptText != "" {
		envelope.Response.Reprompt = &Reprompt{OutputSpeech: newOutputSpeech(resp.RepromptText)}
	}
	if resp.CardTitle != "" {
		envelope.Response.Card = &Card{
			Type:    "Simple",
			Title:   resp.CardTitle,
			Content: resp.CardBody,
		}
	}
	return envelope
}

func newOutputSpeech(text string) *OutputSpeech {
	if strings.HasPrefix(text, "<speak>") {
		return &OutputSpeech{Type: SpeechTypeSSML, SSML: text}
	}
	return &OutputSpeech{Type: SpeechTypePlainText, Text: text}
}
