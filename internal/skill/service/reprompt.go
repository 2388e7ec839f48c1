package service

import (
	"math/rand"
	"sort"

	"github.com/DenisKhanov/CommuteBot/internal/skill/session"
)

const nextOptionQuestion = " Would you like to hear the next option?"

// repromptCatalog maps an intent name to the follow-up question offered for
// it. The catalog is immutable; the only mutable piece of reprompt state is
// the pending intent carried in the session attribute bag.
var repromptCatalog = map[string]string{
	IntentGetArrivalTime:          " Would you like to know the arrival time?",
	IntentGetTotalTransitDuration: " Would you like to know how long it will take to reach your destination?",
	IntentGetDirections:           " Would you like to get directions to your transit stop?",
	IntentPrevious:                " Would you like to hear the previous option again?",
	IntentRepeat:                  " Would you like me to repeat this option?",
}

// nextOptionIntents are the intents after which offering the next option is
// the most useful follow-up, taking priority over random selection.
var nextOptionIntents = []string{
	IntentNext,
	IntentPrevious,
	IntentRepeat,
	IntentGetNextTransitToWork,
}

// RepromptSelector picks the follow-up question appended after a transit
// answer so the caller is naturally guided to ask for more detail. The random
// source is injected so tests can fix the selection.
type RepromptSelector struct {
	rnd *rand.Rand
}

// NewRepromptSelector returns a selector drawing from the given random source.
func NewRepromptSelector(rnd *rand.Rand) *RepromptSelector {
	return &RepromptSelector{rnd: rnd}
}

// Choose picks the next follow-up question after justAnswered was handled,
// records the matching intent as pending in the bag, and returns the question
// text. It never re-asks the question just answered and never offers options
// that are unavailable in the current page state. An empty string means the
// turn ends without a follow-up.
func (r *RepromptSelector) Choose(attrs *session.Attributes, justAnswered string) string {
	pager := session.NewPager(attrs)

	// Browsing intents always lead to the next option while one exists.
	if pager.HasNext() && containsIntent(nextOptionIntents, justAnswered) {
		attrs.SetRepromptIntent(IntentNext)
		return nextOptionQuestion
	}

	candidates := make([]string, 0, len(repromptCatalog))
	for intentName := range repromptCatalog {
		if intentName == justAnswered {
			continue
		}
		if intentName == IntentPrevious && !pager.HasPrevious() {
			continue
		}
		candidates = append(candidates, intentName)
	}

	if len(candidates) == 0 {
		attrs.ClearRepromptIntent()
		return ""
	}
	// Map iteration order is random in its own right, but not seedable.
	sort.Strings(candidates)

	chosen := candidates[r.rnd.Intn(len(candidates))]
	attrs.SetRepromptIntent(chosen)
	return repromptCatalog[chosen]
}

func containsIntent(intents []string, name string) bool {
	for _, intentName := range intents {
		if intentName == name {
			return true
		}
	}
	return false
}
