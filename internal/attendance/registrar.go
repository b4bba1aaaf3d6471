package attendance

import (
	"context"
	"log"
	"strings"
)

// Registration is the registrant-supplied part of a team.
type Registration struct {
	TeamName    string
	LeaderName  string
	Email       string
	Department  string
	Year        string
	PhoneNumber string
}

func (r Registration) normalize() (Registration, bool) {
	out := Registration{
		TeamName:    strings.TrimSpace(r.TeamName),
		LeaderName:  strings.TrimSpace(r.LeaderName),
		Email:       strings.TrimSpace(r.Email),
		Department:  strings.TrimSpace(r.Department),
		Year:        strings.TrimSpace(r.Year),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
	ok := out.TeamName != "" && out.LeaderName != "" && out.Email != "" &&
		out.Department != "" && out.Year != "" && out.PhoneNumber != ""
	return out, ok
}

// Registrar creates teams and issues their credential in the same step.
type Registrar struct {
	store  Store
	issuer *Issuer
}

// NewRegistrar creates a registrar.
func NewRegistrar(store Store, issuer *Issuer) *Registrar {
	return &Registrar{store: store, issuer: issuer}
}

// Register creates an ABSENT team under eventID and mints its credential. If
// issuance fails the team is removed so no team exists without a credential.
func (r *Registrar) Register(ctx context.Context, eventID string, reg Registration) (Team, error) {
	reg, ok := reg.normalize()
	if !ok || eventID == "" {
		return Team{}, ErrInvalidRequest
	}
	if _, err := r.store.GetEvent(ctx, eventID); err != nil {
		return Team{}, err
	}
	team, err := r.store.CreateTeam(ctx, Team{
		EventID:     eventID,
		TeamName:    reg.TeamName,
		LeaderName:  reg.LeaderName,
		Email:       reg.Email,
		Department:  reg.Department,
		Year:        reg.Year,
		PhoneNumber: reg.PhoneNumber,
		Presence:    Absent,
	})
	if err != nil {
		return Team{}, err
	}
	token, err := r.issuer.Issue(ctx, eventID, team.ID)
	if err != nil {
		if derr := r.store.DeleteTeam(ctx, team.ID); derr != nil {
			log.Printf("rollback team %s after failed issue: %v", team.ID, derr)
		}
		return Team{}, err
	}
	team.CredentialToken = token
	return team, nil
}
