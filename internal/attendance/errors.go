package attendance

import "errors"

var (
	ErrInvalidRequest    = errors.New("please provide all required fields")
	ErrEventMismatch     = errors.New("event id does not match current event")
	ErrTeamNotFound      = errors.New("team not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRedeemed   = errors.New("team is already marked present")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTeamExists        = errors.New("team name already registered for this event")
)
