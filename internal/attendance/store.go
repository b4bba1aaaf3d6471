package attendance

import (
	"context"
	"time"
)

// Store is the persistence the attendance core needs. Implementations return
// the package sentinel errors for missing rows and constraint violations.
type Store interface {
	CreateEvent(ctx context.Context, evt Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)

	// CreateTeam inserts an ABSENT team, returning ErrTeamExists when the
	// name is taken within the event.
	CreateTeam(ctx context.Context, team Team) (Team, error)
	DeleteTeam(ctx context.Context, id string) error
	// GetTeam looks a team up by id within an event.
	GetTeam(ctx context.Context, eventID, teamID string) (Team, error)
	GetTeamByID(ctx context.Context, id string) (Team, error)
	// ListTeams returns the teams of an event, or every team when eventID is empty.
	ListTeams(ctx context.Context, eventID string) ([]Team, error)
	SetCredentialToken(ctx context.Context, eventID, teamID, token string) error
	SetQRImageURL(ctx context.Context, teamID, url string) error

	// MarkPresent flips presence ABSENT -> PRESENT in a single conditional
	// write. It returns ErrAlreadyRedeemed if the team was not ABSENT at write
	// time and never modifies a PRESENT team.
	MarkPresent(ctx context.Context, eventID, teamID string, at time.Time) (Team, error)
}
