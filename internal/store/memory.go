package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventpass/internal/attendance"
	"eventpass/internal/auth"
)

// Memory is a process-local store for development and tests. Every method
// holds the lock for its whole read-modify-write.
type Memory struct {
	mu           sync.RWMutex
	events       map[string]attendance.Event
	teams        map[string]attendance.Team
	coordinators map[string]auth.Coordinator // by email
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		events:       make(map[string]attendance.Event),
		teams:        make(map[string]attendance.Team),
		coordinators: make(map[string]auth.Coordinator),
	}
}

// CreateEvent stores an event, assigning id and creation time.
func (m *Memory) CreateEvent(ctx context.Context, evt attendance.Event) (attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evt.ID = uuid.NewString()
	evt.CreatedAt = time.Now().UTC()
	m.events[evt.ID] = evt
	return evt, nil
}

// GetEvent returns an event by id.
func (m *Memory) GetEvent(ctx context.Context, id string) (attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Event{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	evt, ok := m.events[id]
	if !ok {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	return evt, nil
}

// ListEvents returns events, soonest first.
func (m *Memory) ListEvents(ctx context.Context) ([]attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]attendance.Event, 0, len(m.events))
	for _, evt := range m.events {
		events = append(events, evt)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// CreateTeam inserts an ABSENT team; names are unique per event.
func (m *Memory) CreateTeam(ctx context.Context, t attendance.Team) (attendance.Team, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Team{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[t.EventID]; !ok {
		return attendance.Team{}, attendance.ErrEventNotFound
	}
	for _, existing := range m.teams {
		if existing.EventID == t.EventID && existing.TeamName == t.TeamName {
			return attendance.Team{}, attendance.ErrTeamExists
		}
	}
	t.ID = uuid.NewString()
	t.Presence = attendance.Absent
	t.PresentAt = nil
	t.CreatedAt = time.Now().UTC()
	m.teams[t.ID] = t
	return t, nil
}

// DeleteTeam removes a team. Missing ids are ignored.
func (m *Memory) DeleteTeam(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.teams, id)
	return nil
}

// GetTeam returns a team by id within an event.
func (m *Memory) GetTeam(ctx context.Context, eventID, teamID string) (attendance.Team, error) {
	t, err := m.GetTeamByID(ctx, teamID)
	if err != nil {
		return attendance.Team{}, err
	}
	if t.EventID != eventID {
		return attendance.Team{}, attendance.ErrTeamNotFound
	}
	return t, nil
}

// GetTeamByID returns a team by id.
func (m *Memory) GetTeamByID(ctx context.Context, id string) (attendance.Team, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Team{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return attendance.Team{}, attendance.ErrTeamNotFound
	}
	return copyTeam(t), nil
}

// ListTeams returns teams in registration order; an empty eventID lists all.
func (m *Memory) ListTeams(ctx context.Context, eventID string) ([]attendance.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	teams := []attendance.Team{}
	for _, t := range m.teams {
		if eventID == "" || t.EventID == eventID {
			teams = append(teams, copyTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		if !teams[i].CreatedAt.Equal(teams[j].CreatedAt) {
			return teams[i].CreatedAt.Before(teams[j].CreatedAt)
		}
		return teams[i].ID < teams[j].ID
	})
	return teams, nil
}

// SetCredentialToken stores the issued credential on a team.
func (m *Memory) SetCredentialToken(ctx context.Context, eventID, teamID, token string) error {
	return m.update(ctx, teamID, func(t *attendance.Team) error {
		if t.EventID != eventID {
			return attendance.ErrTeamNotFound
		}
		t.CredentialToken = token
		return nil
	})
}

// SetQRImageURL stores the hosted credential image location.
func (m *Memory) SetQRImageURL(ctx context.Context, teamID, url string) error {
	return m.update(ctx, teamID, func(t *attendance.Team) error {
		t.QRImageURL = url
		return nil
	})
}

// MarkPresent flips an ABSENT team to PRESENT under the write lock.
func (m *Memory) MarkPresent(ctx context.Context, eventID, teamID string, at time.Time) (attendance.Team, error) {
	var out attendance.Team
	err := m.update(ctx, teamID, func(t *attendance.Team) error {
		if t.EventID != eventID {
			return attendance.ErrTeamNotFound
		}
		if t.Presence != attendance.Absent {
			return attendance.ErrAlreadyRedeemed
		}
		at := at.UTC()
		t.Presence = attendance.Present
		t.PresentAt = &at
		out = copyTeam(*t)
		return nil
	})
	return out, err
}

func (m *Memory) update(ctx context.Context, id string, fn func(*attendance.Team) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return attendance.ErrTeamNotFound
	}
	if err := fn(&t); err != nil {
		return err
	}
	m.teams[id] = t
	return nil
}

func copyTeam(t attendance.Team) attendance.Team {
	if t.PresentAt != nil {
		at := *t.PresentAt
		t.PresentAt = &at
	}
	return t
}

// CreateCoordinator stores a coordinator with a unique email.
func (m *Memory) CreateCoordinator(ctx context.Context, c auth.Coordinator) (auth.Coordinator, error) {
	if err := ctx.Err(); err != nil {
		return auth.Coordinator{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coordinators[c.Email]; ok {
		return auth.Coordinator{}, auth.ErrCoordinatorExists
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	m.coordinators[c.Email] = c
	return c, nil
}

// FindCoordinator looks a coordinator up by email and name.
func (m *Memory) FindCoordinator(ctx context.Context, email, name string) (auth.Coordinator, error) {
	if err := ctx.Err(); err != nil {
		return auth.Coordinator{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coordinators[email]
	if !ok || c.Name != name {
		return auth.Coordinator{}, auth.ErrCoordinatorMissing
	}
	return c, nil
}

var _ Backend = (*Memory)(nil)

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
