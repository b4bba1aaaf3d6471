package attendance

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"eventpass/internal/credential"
)

// RedeemRequest is a credential presented at a scanning station. EventID,
// TeamID and Token come from the untrusted client; ScanEventID is the event
// the station is configured for.
type RedeemRequest struct {
	EventID     string `json:"eventId"`
	TeamID      string `json:"teamId"`
	Token       string `json:"token"`
	ScanEventID string `json:"-"`
}

// Verifier redeems credentials. It is the only writer of team presence.
type Verifier struct {
	store  Store
	signer credential.Signer
	now    func() time.Time
}

// NewVerifier creates a verifier checking signatures with signer.
func NewVerifier(store Store, signer credential.Signer) *Verifier {
	return &Verifier{store: store, signer: signer, now: time.Now}
}

// Redeem checks the presented credential and marks the team present. Every
// failure leaves the team untouched; of concurrent redemptions of one team
// exactly one succeeds and the rest get ErrAlreadyRedeemed.
func (v *Verifier) Redeem(ctx context.Context, req RedeemRequest) (Team, error) {
	eventID := strings.TrimSpace(req.EventID)
	teamID := strings.TrimSpace(req.TeamID)
	token := strings.TrimSpace(req.Token)
	if eventID == "" || teamID == "" || token == "" {
		return Team{}, ErrInvalidRequest
	}
	if eventID != strings.TrimSpace(req.ScanEventID) {
		return Team{}, ErrEventMismatch
	}

	team, err := v.store.GetTeam(ctx, eventID, teamID)
	if err != nil {
		return Team{}, err
	}
	if _, err := v.store.GetEvent(ctx, eventID); err != nil {
		return Team{}, err
	}
	if team.IsPresent() {
		return Team{}, ErrAlreadyRedeemed
	}

	if err := v.checkCredential(team, token); err != nil {
		return Team{}, err
	}

	// The conditional write is the real guard; the read above only gives
	// precise diagnostics.
	return v.store.MarkPresent(ctx, eventID, teamID, v.now().UTC())
}

func (v *Verifier) checkCredential(team Team, token string) error {
	b, err := v.signer.Verify(token)
	if err != nil {
		return ErrInvalidCredential
	}
	if b.EventID != team.EventID || b.TeamID != team.ID {
		return ErrInvalidCredential
	}
	// A re-issued credential supersedes the previous one.
	if subtle.ConstantTimeCompare([]byte(token), []byte(team.CredentialToken)) != 1 {
		return ErrInvalidCredential
	}
	return nil
}
