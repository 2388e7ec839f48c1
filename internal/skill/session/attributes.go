// Package session provides typed access to the per-conversation attribute bag
// supplied by the voice platform, and navigation over the ranked suggestion
// list serialized inside it. The bag is logically owned by the single in-flight
// turn for its session, so no locking is required here.
package session

import "encoding/json"

// Attribute keys. The bag round-trips through JSON between turns, so every
// value stored under these keys must survive a text serialization.
const (
	suggestionAttribute         = "suggestion"
	indexAttribute              = "index"
	previousResponseAttribute   = "previousResponse"
	repromptIntentAttribute     = "repromptIntent"
	setupStateAttribute         = "setupState"
	homeAddressAttribute        = "homeAddress"
	workAddressAttribute        = "workAddress"
	destinationNameAttribute    = "destinationName"
	destinationAddressAttribute = "destinationAddress"
)

// Attributes wraps the raw string-keyed bag behind typed per-key accessors so
// the dialogue core never performs unchecked casts. Missing or invalid keys
// surface as explicit "absent" results rather than panics.
type Attributes struct {
	values map[string]any
}

// NewAttributes wraps the attribute map of an incoming request. A nil map is
// treated as an empty bag (fresh session).
func NewAttributes(values map[string]any) *Attributes {
	if values == nil {
		values = make(map[string]any)
	}
	return &Attributes{values: values}
}

// Values exposes the underlying map so it can be echoed back in the response
// envelope.
func (a *Attributes) Values() map[string]any {
	return a.values
}

func (a *Attributes) getString(key string) (string, bool) {
	raw, ok := a.values[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// getInt tolerates the numeric types a JSON round-trip may produce.
func (a *Attributes) getInt(key string) (int, bool) {
	raw, ok := a.values[key]
	if !ok {
		return 0, false
	}
	switch value := raw.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}

// PreviousResponse returns the last spoken summary, used for repeat requests.
func (a *Attributes) PreviousResponse() (string, bool) {
	return a.getString(previousResponseAttribute)
}

// SetPreviousResponse remembers the summary just spoken.
func (a *Attributes) SetPreviousResponse(text string) {
	a.values[previousResponseAttribute] = text
}

// RepromptIntent returns the intent name the last follow-up question
// corresponds to, resumed when the user answers "yes".
func (a *Attributes) RepromptIntent() (string, bool) {
	return a.getString(repromptIntentAttribute)
}

// SetRepromptIntent records the intent behind the follow-up question offered
// this turn.
func (a *Attributes) SetRepromptIntent(intentName string) {
	a.values[repromptIntentAttribute] = intentName
}

// ClearRepromptIntent forgets the pending follow-up, used when a turn ends
// without offering a question.
func (a *Attributes) ClearRepromptIntent() {
	delete(a.values, repromptIntentAttribute)
}

// SetupState returns the progress marker of the guided setup conversation.
func (a *Attributes) SetupState() (string, bool) {
	return a.getString(setupStateAttribute)
}

// SetSetupState moves the setup conversation to the given state.
func (a *Attributes) SetSetupState(state string) {
	a.values[setupStateAttribute] = state
}

// ClearSetupState drops the setup marker and all setup scratch values.
func (a *Attributes) ClearSetupState() {
	delete(a.values, setupStateAttribute)
	delete(a.values, homeAddressAttribute)
	delete(a.values, workAddressAttribute)
	delete(a.values, destinationNameAttribute)
	delete(a.values, destinationAddressAttribute)
}

// HomeAddress returns the resolved home address awaiting confirmation.
func (a *Attributes) HomeAddress() (string, bool) {
	return a.getString(homeAddressAttribute)
}

// SetHomeAddress stores the resolved home address awaiting confirmation.
func (a *Attributes) SetHomeAddress(address string) {
	a.values[homeAddressAttribute] = address
}

// WorkAddress returns the resolved work address awaiting confirmation.
func (a *Attributes) WorkAddress() (string, bool) {
	return a.getString(workAddressAttribute)
}

// SetWorkAddress stores the resolved work address awaiting confirmation.
func (a *Attributes) SetWorkAddress(address string) {
	a.values[workAddressAttribute] = address
}

// DestinationName returns the named-destination label awaiting confirmation.
func (a *Attributes) DestinationName() (string, bool) {
	return a.getString(destinationNameAttribute)
}

// SetDestinationName stores the named-destination label being collected.
func (a *Attributes) SetDestinationName(name string) {
	a.values[destinationNameAttribute] = name
}

// DestinationAddress returns the resolved destination address awaiting confirmation.
func (a *Attributes) DestinationAddress() (string, bool) {
	return a.getString(destinationAddressAttribute)
}

// SetDestinationAddress stores the resolved destination address being collected.
func (a *Attributes) SetDestinationAddress(address string) {
	a.values[destinationAddressAttribute] = address
}

// HasSuggestions reports whether a suggestion list is active in this session.
func (a *Attributes) HasSuggestions() bool {
	_, ok := a.values[suggestionAttribute]
	return ok
}
