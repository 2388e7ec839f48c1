package models

import "errors"

// ErrUserNotFound is returned by profile stores when no profile exists for
// the requested user id.
var ErrUserNotFound = errors.New("user does not exist")

// WorkDestination is the reserved destination label the transit dialogue
// relies on when answering "next transit to work" questions.
const WorkDestination = "work"

// TransitUser is the persisted profile of one skill user.
type TransitUser struct {
	UserID       string            `json:"userId"`                 // Stable identity supplied by the voice platform
	HomeAddress  string            `json:"homeAddress"`            // Resolved postal address of the user's home
	TimeZone     string            `json:"timeZone,omitempty"`     // IANA identifier, may be empty until resolved
	Destinations map[string]string `json:"destinations,omitempty"` // Destination label -> resolved address
}

// WorkAddress returns the stored work destination address, if any.
func (u *TransitUser) WorkAddress() (string, bool) {
	if u.Destinations == nil {
		return "", false
	}
	address, ok := u.Destinations[WorkDestination]
	if !ok || address == "" {
		return "", false
	}
	return address, true
}
