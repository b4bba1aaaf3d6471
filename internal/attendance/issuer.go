package attendance

import (
	"context"
	"fmt"

	"eventpass/internal/credential"
)

// Issuer mints credentials and attaches them to team records.
type Issuer struct {
	store  Store
	signer credential.Signer
}

// NewIssuer creates an issuer signing with signer.
func NewIssuer(store Store, signer credential.Signer) *Issuer {
	return &Issuer{store: store, signer: signer}
}

// Issue signs a token bound to (eventID, teamID) and persists it on the team.
// Calling it again overwrites the stored token.
func (i *Issuer) Issue(ctx context.Context, eventID, teamID string) (string, error) {
	if eventID == "" || teamID == "" {
		return "", ErrInvalidRequest
	}
	if _, err := i.store.GetEvent(ctx, eventID); err != nil {
		return "", err
	}
	if _, err := i.store.GetTeam(ctx, eventID, teamID); err != nil {
		return "", err
	}
	token, err := i.signer.Sign(credential.Binding{EventID: eventID, TeamID: teamID})
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	if err := i.store.SetCredentialToken(ctx, eventID, teamID, token); err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}
	return token, nil
}
