package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyResult is returned when Start is called with zero suggestions.
	ErrEmptyResult = errors.New("no suggestions to page through")

	// ErrOutOfRange signals that no more options exist in the requested direction.
	// The page state is left unchanged.
	ErrOutOfRange = errors.New("no suggestion at that position")

	// ErrNoActivePage signals that the session holds no suggestion list at all.
	ErrNoActivePage = errors.New("no active suggestion list")

	// ErrCorruptedSession signals that the page state violates its invariant
	// (e.g. an index without a suggestion list). This indicates corrupted
	// session data and is not recoverable within the turn.
	ErrCorruptedSession = errors.New("session page state is corrupted")
)

// Pager maintains and navigates the ranked suggestion list of the current
// session. Rank order is whatever order the directions provider returned;
// the pager never re-sorts.
type Pager struct {
	attrs *Attributes
}

// NewPager returns a pager over the given attribute bag.
func NewPager(attrs *Attributes) *Pager {
	return &Pager{attrs: attrs}
}

// Start serializes a fresh non-empty suggestion list into the bag and resets
// the current index to the best-ranked option.
func (p *Pager) Start(suggestions []models.TransitSuggestion) error {
	if len(suggestions) == 0 {
		return ErrEmptyResult
	}
	data, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to serialize suggestions: %w", err)
	}
	p.attrs.values[suggestionAttribute] = string(data)
	p.attrs.values[indexAttribute] = 0
	return nil
}

// Current returns the suggestion at the current index without mutating state.
func (p *Pager) Current() (*models.TransitSuggestion, error) {
	suggestions, idx, err := p.load()
	if err != nil {
		return nil, err
	}
	return &suggestions[idx], nil
}

// Advance moves the current index by delta and returns the suggestion there.
// If the target position is out of range it returns ErrOutOfRange and leaves
// the page state unchanged.
func (p *Pager) Advance(delta int) (*models.TransitSuggestion, error) {
	suggestions, idx, err := p.load()
	if err != nil {
		return nil, err
	}
	idx += delta

	if idx < 0 || idx >= len(suggestions) {
		logrus.Warnf("Transit suggestion not available at index %d", idx)
		return nil, ErrOutOfRange
	}
	p.attrs.values[indexAttribute] = idx
	return &suggestions[idx], nil
}

// HasNext reports whether a later suggestion exists. It never mutates state
// and tolerates an absent page by returning false.
func (p *Pager) HasNext() bool {
	suggestions, idx, err := p.load()
	if err != nil {
		return false
	}
	return idx < len(suggestions)-1
}

// HasPrevious reports whether an earlier suggestion exists. It never mutates
// state and tolerates an absent page by returning false.
func (p *Pager) HasPrevious() bool {
	_, idx, err := p.load()
	if err != nil {
		return false
	}
	return idx > 0
}

// load deserializes the page state and checks its invariant.
func (p *Pager) load() ([]models.TransitSuggestion, int, error) {
	serialized, hasList := p.attrs.getString(suggestionAttribute)
	idx, hasIndex := p.attrs.getInt(indexAttribute)

	if !hasList && !hasIndex {
		return nil, 0, ErrNoActivePage
	}
	if hasList != hasIndex {
		return nil, 0, fmt.Errorf("%w: index and suggestion list must appear together", ErrCorruptedSession)
	}

	var suggestions []models.TransitSuggestion
	if err := json.Unmarshal([]byte(serialized), &suggestions); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptedSession, err)
	}
	if idx < 0 || idx >= len(suggestions) {
		return nil, 0, fmt.Errorf("%w: index %d outside of %d suggestions", ErrCorruptedSession, idx, len(suggestions))
	}
	return suggestions, idx, nil
}
