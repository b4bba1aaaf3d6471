package attendance_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventpass/internal/attendance"
	"eventpass/internal/credential"
	"eventpass/internal/store"
)

type fixture struct {
	store      attendance.Store
	signer     credential.Signer
	issuer     *attendance.Issuer
	verifier   *attendance.Verifier
	aggregator *attendance.Aggregator
	registrar  *attendance.Registrar
	events     *attendance.Events
}

func newFixture(t *testing.T, s attendance.Store) fixture {
	t.Helper()
	signer, err := credential.NewHMACSigner("credential-test-key", "eventpass")
	require.NoError(t, err)
	issuer := attendance.NewIssuer(s, signer)
	return fixture{
		store:      s,
		signer:     signer,
		issuer:     issuer,
		verifier:   attendance.NewVerifier(s, signer),
		aggregator: attendance.NewAggregator(s),
		registrar:  attendance.NewRegistrar(s, issuer),
		events:     attendance.NewEvents(s),
	}
}

func (f fixture) event(t *testing.T, name string) attendance.Event {
	t.Helper()
	evt, err := f.events.Create(context.Background(), attendance.EventInput{
		Name:        name,
		Date:        time.Date(2026, time.November, 3, 9, 0, 0, 0, time.UTC),
		Description: "Annual hackathon",
		ClubName:    "Coding Club",
		EventHead:   "R. Iyer",
	})
	require.NoError(t, err)
	return evt
}

func (f fixture) team(t *testing.T, eventID, name string) attendance.Team {
	t.Helper()
	team, err := f.registrar.Register(context.Background(), eventID, attendance.Registration{
		TeamName:    name,
		LeaderName:  "Asha",
		Email:       "asha@example.com",
		Department:  "CSE",
		Year:        "3",
		PhoneNumber: "9999999999",
	})
	require.NoError(t, err)
	return team
}

func redeem(f fixture, eventID, teamID, token, scanEventID string) (attendance.Team, error) {
	return f.verifier.Redeem(context.Background(), attendance.RedeemRequest{
		EventID: eventID, TeamID: teamID, Token: token, ScanEventID: scanEventID,
	})
}

func TestRegisterIssuesBoundCredential(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	t1 := f.team(t, e1.ID, "Owls")

	req.NotEmpty(t1.CredentialToken)
	req.Equal(attendance.Absent, t1.Presence)

	b, err := f.signer.Verify(t1.CredentialToken)
	req.NoError(err)
	req.Equal(credential.Binding{EventID: e1.ID, TeamID: t1.ID}, b)

	stored, err := f.store.GetTeam(context.Background(), e1.ID, t1.ID)
	req.NoError(err)
	req.Equal(t1.CredentialToken, stored.CredentialToken)
}

func TestRegisterRejects(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	f.team(t, e1.ID, "Owls")

	_, err := f.registrar.Register(ctx, e1.ID, attendance.Registration{TeamName: "Hawks"})
	req.ErrorIs(err, attendance.ErrInvalidRequest)

	full := attendance.Registration{TeamName: "Owls", LeaderName: "B", Email: "b@example.com",
		Department: "ECE", Year: "2", PhoneNumber: "1"}
	_, err = f.registrar.Register(ctx, e1.ID, full)
	req.ErrorIs(err, attendance.ErrTeamExists)

	_, err = f.registrar.Register(ctx, "missing", full)
	req.ErrorIs(err, attendance.ErrEventNotFound)
}

type failingSigner struct{}

func (failingSigner) Sign(credential.Binding) (string, error) { return "", errors.New("hsm offline") }
func (failingSigner) Verify(string) (credential.Binding, error) {
	return credential.Binding{}, credential.ErrInvalidToken
}

func TestRegisterRollsBackWhenIssueFails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := store.NewMemory()
	f := newFixture(t, s)
	e1 := f.event(t, "E1")

	registrar := attendance.NewRegistrar(s, attendance.NewIssuer(s, failingSigner{}))
	_, err := registrar.Register(ctx, e1.ID, attendance.Registration{TeamName: "Owls", LeaderName: "A",
		Email: "a@example.com", Department: "CSE", Year: "3", PhoneNumber: "1"})
	req.Error(err)

	teams, err := s.ListTeams(ctx, e1.ID)
	req.NoError(err)
	req.Empty(teams)
}

func TestIssueNotFound(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	e2 := f.event(t, "E2")
	t1 := f.team(t, e1.ID, "Owls")

	_, err := f.issuer.Issue(ctx, "missing", t1.ID)
	req.ErrorIs(err, attendance.ErrEventNotFound)
	_, err = f.issuer.Issue(ctx, e1.ID, "missing")
	req.ErrorIs(err, attendance.ErrTeamNotFound)
	_, err = f.issuer.Issue(ctx, e2.ID, t1.ID)
	req.ErrorIs(err, attendance.ErrTeamNotFound)
}

func TestRedeemScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	e2 := f.event(t, "E2")
	t1 := f.team(t, e1.ID, "T1")
	tok1 := t1.CredentialToken

	_, err := redeem(f, e2.ID, t1.ID, tok1, e2.ID)
	req.ErrorIs(err, attendance.ErrTeamNotFound)
	_, err = redeem(f, e1.ID, t1.ID, tok1, e2.ID)
	req.ErrorIs(err, attendance.ErrEventMismatch)
	untouched, err := f.store.GetTeamByID(ctx, t1.ID)
	req.NoError(err)
	req.Equal(attendance.Absent, untouched.Presence)
	req.Nil(untouched.PresentAt)

	got, err := redeem(f, e1.ID, t1.ID, tok1, e1.ID)
	req.NoError(err)
	req.Equal(attendance.Present, got.Presence)
	req.NotNil(got.PresentAt)
	firstAt := *got.PresentAt

	_, err = redeem(f, e1.ID, t1.ID, tok1, e1.ID)
	req.ErrorIs(err, attendance.ErrAlreadyRedeemed)

	after, err := f.store.GetTeamByID(ctx, t1.ID)
	req.NoError(err)
	req.True(firstAt.Equal(*after.PresentAt))
}

func TestRedeemGates(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	e2 := f.event(t, "E2")
	t1 := f.team(t, e1.ID, "T1")
	t2 := f.team(t, e1.ID, "T2")
	t3 := f.team(t, e2.ID, "T3")

	parts := strings.SplitN(t1.CredentialToken, ".", 3)
	forged := parts[0] + "." + parts[1] + ".Zm9yZ2VkLXNpZ25hdHVyZQ"
	otherKey, err := credential.NewHMACSigner("not-the-key", "eventpass")
	require.NoError(t, err)
	foreign, err := otherKey.Sign(credential.Binding{EventID: e1.ID, TeamID: t1.ID})
	require.NoError(t, err)
	// Valid signatures minted by the issuer, bound to the wrong pair.
	crossTeam, err := f.signer.Sign(credential.Binding{EventID: e1.ID, TeamID: t2.ID})
	require.NoError(t, err)
	crossEvent, err := f.signer.Sign(credential.Binding{EventID: e2.ID, TeamID: t1.ID})
	require.NoError(t, err)

	tests := []struct {
		name        string
		eventID     string
		teamID      string
		token       string
		scanEventID string
		want        error
	}{
		{"missing team id", e1.ID, "", t1.CredentialToken, e1.ID, attendance.ErrInvalidRequest},
		{"missing event id", "", t1.ID, t1.CredentialToken, e1.ID, attendance.ErrInvalidRequest},
		{"missing token", e1.ID, t1.ID, "  ", e1.ID, attendance.ErrInvalidRequest},
		{"wrong station", e1.ID, t1.ID, t1.CredentialToken, e2.ID, attendance.ErrEventMismatch},
		{"unknown team", e1.ID, "nope", t1.CredentialToken, e1.ID, attendance.ErrTeamNotFound},
		{"team of another event", e1.ID, t3.ID, t3.CredentialToken, e1.ID, attendance.ErrTeamNotFound},
		{"unknown event", "nope", t1.ID, t1.CredentialToken, "nope", attendance.ErrTeamNotFound},
		{"forged signature", e1.ID, t1.ID, forged, e1.ID, attendance.ErrInvalidCredential},
		{"foreign key", e1.ID, t1.ID, foreign, e1.ID, attendance.ErrInvalidCredential},
		{"token of another team", e1.ID, t1.ID, t2.CredentialToken, e1.ID, attendance.ErrInvalidCredential},
		{"bound to another team", e1.ID, t1.ID, crossTeam, e1.ID, attendance.ErrInvalidCredential},
		{"bound to another event", e1.ID, t1.ID, crossEvent, e1.ID, attendance.ErrInvalidCredential},
		{"garbage", e1.ID, t1.ID, "garbage", e1.ID, attendance.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := redeem(f, tt.eventID, tt.teamID, tt.token, tt.scanEventID)
			req.ErrorIs(err, tt.want)

			stored, err := f.store.GetTeamByID(context.Background(), t1.ID)
			req.NoError(err)
			req.Equal(attendance.Absent, stored.Presence)
			req.Nil(stored.PresentAt)
		})
	}
}

// eventlessStore hides one event to reach the event lookup gate.
type eventlessStore struct {
	attendance.Store
	hidden string
}

func (s eventlessStore) GetEvent(ctx context.Context, id string) (attendance.Event, error) {
	if id == s.hidden {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	return s.Store.GetEvent(ctx, id)
}

func TestRedeemEventNotFound(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	f := newFixture(t, mem)
	e1 := f.event(t, "E1")
	t1 := f.team(t, e1.ID, "T1")

	v := attendance.NewVerifier(eventlessStore{Store: mem, hidden: e1.ID}, f.signer)
	_, err := v.Redeem(context.Background(), attendance.RedeemRequest{
		EventID: e1.ID, TeamID: t1.ID, Token: t1.CredentialToken, ScanEventID: e1.ID,
	})
	req.ErrorIs(err, attendance.ErrEventNotFound)
}

func TestRedeemAlreadyRedeemedBeforeSignature(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	t1 := f.team(t, e1.ID, "T1")

	_, err := redeem(f, e1.ID, t1.ID, t1.CredentialToken, e1.ID)
	req.NoError(err)
	_, err = redeem(f, e1.ID, t1.ID, "forged", e1.ID)
	req.ErrorIs(err, attendance.ErrAlreadyRedeemed)
}

func TestRedeemExactlyOnce(t *testing.T) {
	stores := map[string]func(t *testing.T) attendance.Store{
		"memory": func(*testing.T) attendance.Store { return store.NewMemory() },
		"sqlite": func(t *testing.T) attendance.Store {
			repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "race.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t, open(t))
			e1 := f.event(t, "E1")
			t1 := f.team(t, e1.ID, "T1")

			const stations = 24
			results := make([]error, stations)
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < stations; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, results[i] = redeem(f, e1.ID, t1.ID, t1.CredentialToken, e1.ID)
				}(i)
			}
			close(start)
			wg.Wait()

			wins, already := 0, 0
			for _, err := range results {
				switch {
				case err == nil:
					wins++
				case errors.Is(err, attendance.ErrAlreadyRedeemed):
					already++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			req.Equal(1, wins)
			req.Equal(stations-1, already)

			stored, err := f.store.GetTeamByID(context.Background(), t1.ID)
			req.NoError(err)
			req.Equal(attendance.Present, stored.Presence)
			req.NotNil(stored.PresentAt)
		})
	}
}

func TestSummarize(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	e2 := f.event(t, "E2")
	teams := []attendance.Team{
		f.team(t, e1.ID, "A"),
		f.team(t, e1.ID, "B"),
		f.team(t, e1.ID, "C"),
	}
	f.team(t, e2.ID, "D")

	empty, err := f.aggregator.Summarize(ctx, e1.ID)
	req.NoError(err)
	req.Equal(3, empty.Total)
	req.Equal(0, empty.PresentCount)
	req.Equal(3, empty.AbsentCount)
	req.NotNil(empty.PresentTeams)

	for _, tm := range teams[:2] {
		_, err := redeem(f, e1.ID, tm.ID, tm.CredentialToken, e1.ID)
		req.NoError(err)
	}

	s, err := f.aggregator.Summarize(ctx, e1.ID)
	req.NoError(err)
	req.Equal("E1", s.EventName)
	req.Equal(3, s.Total)
	req.Equal(2, s.PresentCount)
	req.Equal(1, s.AbsentCount)
	req.Equal(s.Total, s.PresentCount+s.AbsentCount)
	req.Len(s.PresentTeams, 2)
	req.Len(s.AbsentTeams, 1)
	req.Equal(teams[2].ID, s.AbsentTeams[0].ID)

	_, err = f.aggregator.Summarize(ctx, "missing")
	req.ErrorIs(err, attendance.ErrEventNotFound)
	_, err = f.aggregator.Summarize(ctx, "")
	req.ErrorIs(err, attendance.ErrInvalidRequest)
}

func TestSummarizeConcurrentWithRedeem(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())
	e1 := f.event(t, "E1")
	var teams []attendance.Team
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		teams = append(teams, f.team(t, e1.ID, name))
	}

	var wg sync.WaitGroup
	for _, tm := range teams {
		wg.Add(1)
		go func(tm attendance.Team) {
			defer wg.Done()
			_, _ = redeem(f, e1.ID, tm.ID, tm.CredentialToken, e1.ID)
		}(tm)
	}
	for i := 0; i < 20; i++ {
		s, err := f.aggregator.Summarize(ctx, e1.ID)
		req.NoError(err)
		req.Equal(len(teams), s.Total)
		req.Equal(s.Total, s.PresentCount+s.AbsentCount)
	}
	wg.Wait()

	final, err := f.aggregator.Summarize(ctx, e1.ID)
	req.NoError(err)
	req.Equal(len(teams), final.PresentCount)
}

func TestEventsCreateAndDetail(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, store.NewMemory())

	_, err := f.events.Create(ctx, attendance.EventInput{Name: "No date", Description: "d", ClubName: "c", EventHead: "h"})
	req.ErrorIs(err, attendance.ErrInvalidRequest)

	e1 := f.event(t, "E1")
	f.team(t, e1.ID, "A")
	evt, teams, err := f.events.Detail(ctx, e1.ID)
	req.NoError(err)
	req.Equal(e1.ID, evt.ID)
	req.Len(teams, 1)

	_, _, err = f.events.Detail(ctx, "missing")
	req.ErrorIs(err, attendance.ErrEventNotFound)

	all, err := f.events.List(ctx)
	req.NoError(err)
	req.Len(all, 1)
}
