// Package models defines the data structures shared across the skill:
// transit suggestions, user profiles and the webhook request and response envelopes.
package models

import (
	"errors"
	"time"
)

// ErrInvalidSuggestion is returned when a suggestion is missing one of the
// fields that must always be present (transit start time, transit duration,
// arrival time, total duration).
var ErrInvalidSuggestion = errors.New("suggestion is missing a required field")

// TransitDuration holds a duration both as raw seconds and as the
// human-readable text returned by the directions provider.
type TransitDuration struct {
	Seconds int64  `json:"seconds"`
	Text    string `json:"text"`
}

// TransitSuggestion is one ranked transit option for a single home-to-destination
// request. Suggestions are immutable once produced and serialize to JSON so they
// can travel inside the session attribute bag between turns.
type TransitSuggestion struct {
	TransitType        string           `json:"transitType"`                  // Vehicle kind, e.g. "bus"
	TransitID          string           `json:"transitId,omitempty"`          // Short line identifier, e.g. "49"
	WalkingStartTime   *time.Time       `json:"walkingStartTime,omitempty"`   // Absent if there is no walking leg
	TransitStartTime   time.Time        `json:"transitStartTime"`             // When the vehicle departs
	ArrivalTime        time.Time        `json:"arrivalTime"`                  // When the user reaches the destination
	TotalDuration      TransitDuration  `json:"totalDuration"`                // Door-to-door travel time
	WalkingDuration    *TransitDuration `json:"walkingDuration,omitempty"`    // Absent if there is no walking leg
	TransitDuration    TransitDuration  `json:"transitDuration"`              // Time spent on the vehicle
	WalkingInstruction string           `json:"walkingInstruction,omitempty"` // e.g. "Walk to 10th Ave E and E Roanoke St"
	TransitInstruction string           `json:"transitInstruction"`           // e.g. "Bus towards Downtown Seattle Broadway"
	NumOfSwitches      int              `json:"numOfSwitches"`                // Transit switches after boarding, 0 for a direct ride
}

// Validate checks the invariant every suggestion must satisfy before it may
// reach the dialogue layer. Suggestions failing it are dropped by the caller.
func (s *TransitSuggestion) Validate() error {
	if s.TransitStartTime.IsZero() || s.ArrivalTime.IsZero() {
		return ErrInvalidSuggestion
	}
	if s.TransitDuration.Text == "" || s.TotalDuration.Text == "" {
		return ErrInvalidSuggestion
	}
	return nil
}

// MinutesToTransitArrival returns the whole minutes left until the vehicle
// departs, computed against the supplied clock so repeated reads of the same
// cached suggestion yield a shrinking countdown.
func (s *TransitSuggestion) MinutesToTransitArrival(now time.Time) int {
	return int(s.TransitStartTime.Sub(now).Minutes())
}

// LeavingTimeSeconds returns how many seconds from now the user has to leave:
// the walking start time if a walking leg exists, the transit start time otherwise.
func (s *TransitSuggestion) LeavingTimeSeconds(now time.Time) int {
	leavingStartTime := s.TransitStartTime
	if s.WalkingStartTime != nil {
		leavingStartTime = *s.WalkingStartTime
	}
	return int(leavingStartTime.Sub(now).Seconds())
}
