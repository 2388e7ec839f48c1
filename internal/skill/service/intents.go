// Package service contains the dialogue core of the skill: the intent router,
// the transit dialogue controller, the guided address-setup controller and the
// reprompt selector. It consumes recognized intents plus the session attribute
// bag and produces one spoken response per conversational turn.
package service

// Intent names recognized by the voice platform's interaction model.
const (
	IntentGetNextTransitToWork    = "GetNextTransitToWork"
	IntentGetArrivalTime          = "GetArrivalTime"
	IntentGetTotalTransitDuration = "GetTotalTransitDuration"
	IntentGetDirections           = "GetDirections"
	IntentGetHomeAddress          = "GetHomeAddress"
	IntentGetWorkAddress          = "GetWorkAddress"
	IntentUpdateHomeAddress       = "UpdateHomeAddress"
	IntentUpdateWorkAddress       = "UpdateWorkAddress"
	IntentAddDestination          = "AddDestination"
	IntentPutPostalAddress        = "PutPostalAddress"
	IntentPutStreetAddress        = "PutStreetAddress"
	IntentPutLocationName         = "PutLocationName"
	IntentYes                     = "YesIntent"
	IntentNo                      = "NoIntent"
	IntentHelp                    = "AMAZON.HelpIntent"
	IntentStop                    = "AMAZON.StopIntent"
	IntentCancel                  = "AMAZON.CancelIntent"
	IntentNext                    = "AMAZON.NextIntent"
	IntentPrevious                = "AMAZON.PreviousIntent"
	IntentRepeat                  = "AMAZON.RepeatIntent"
)

// Slot names of the interaction model.
const (
	SlotTransit  = "transit"
	SlotAddress  = "address"
	SlotLocation = "location"
)
