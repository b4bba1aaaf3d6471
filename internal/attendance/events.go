package attendance

import (
	"context"
	"strings"
	"time"
)

// EventInput is the data needed to create an event.
type EventInput struct {
	Name        string
	Date        time.Time
	Location    string
	Description string
	ClubName    string
	EventHead   string
}

// Events is the event-management collaborator.
type Events struct {
	store Store
}

// NewEvents creates the event service.
func NewEvents(store Store) *Events {
	return &Events{store: store}
}

// Create validates and stores a new event.
func (e *Events) Create(ctx context.Context, in EventInput) (Event, error) {
	evt := Event{
		Name:        strings.TrimSpace(in.Name),
		Date:        in.Date.UTC(),
		Location:    strings.TrimSpace(in.Location),
		Description: strings.TrimSpace(in.Description),
		ClubName:    strings.TrimSpace(in.ClubName),
		EventHead:   strings.TrimSpace(in.EventHead),
	}
	if evt.Name == "" || in.Date.IsZero() || evt.Description == "" || evt.ClubName == "" || evt.EventHead == "" {
		return Event{}, ErrInvalidRequest
	}
	return e.store.CreateEvent(ctx, evt)
}

// Get returns one event.
func (e *Events) Get(ctx context.Context, id string) (Event, error) {
	if id == "" {
		return Event{}, ErrInvalidRequest
	}
	return e.store.GetEvent(ctx, id)
}

// List returns every event.
func (e *Events) List(ctx context.Context) ([]Event, error) {
	return e.store.ListEvents(ctx)
}

// Detail returns an event together with its registered teams.
func (e *Events) Detail(ctx context.Context, id string) (Event, []Team, error) {
	evt, err := e.Get(ctx, id)
	if err != nil {
		return Event{}, nil, err
	}
	teams, err := e.store.ListTeams(ctx, id)
	if err != nil {
		return Event{}, nil, err
	}
	return evt, teams, nil
}
