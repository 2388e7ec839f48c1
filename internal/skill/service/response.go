package service

import (
	"strings"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
)

const (
	helpString = "Sorry. I don't know that. " +
		"First, ask me for a transit suggestion. " +
		"For example, ask me when's my next bus"

	errorString = "Sorry. I'm having some issues " +
		"giving you an answer right now."
)

// sanitizeSpeech replaces characters the voice-markup format cannot contain.
// A raw ampersand breaks SSML, so it is spoken as the word "and".
func sanitizeSpeech(text string) string {
	return strings.ReplaceAll(text, "&", "and")
}

// newAskResponse builds a response that keeps the session open and repeats the
// question if the user stays silent.
func newAskResponse(output, title string) *models.SkillResponse {
	output = sanitizeSpeech(output)
	return &models.SkillResponse{
		SpeechText:   output,
		RepromptText: output,
		CardTitle:    title,
		CardBody:     output,
	}
}

// newTellResponse builds a terminal response that ends the session.
func newTellResponse(output, title string) *models.SkillResponse {
	output = sanitizeSpeech(output)
	return &models.SkillResponse{
		SpeechText:       output,
		CardTitle:        title,
		CardBody:         output,
		ShouldEndSession: true,
	}
}

// newTryAgainResponse is the generic recovery prompt for input the dialogue
// could not make sense of in its current state.
func newTryAgainResponse() *models.SkillResponse {
	return newAskResponse("Sorry. I did not understand. Please try again. ", "Try Again.")
}

// newInternalErrorResponse is the terminal apology for unexpected failures.
func newInternalErrorResponse() *models.SkillResponse {
	return newTellResponse(errorString, "Oops!")
}
