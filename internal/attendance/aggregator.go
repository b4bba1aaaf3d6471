package attendance

import "context"

// Aggregator derives attendance rollups. It never mutates state.
type Aggregator struct {
	store Store
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Summarize partitions one read of the event's teams by presence, so the
// counts always add up even while scans are in flight.
func (a *Aggregator) Summarize(ctx context.Context, eventID string) (Summary, error) {
	if eventID == "" {
		return Summary{}, ErrInvalidRequest
	}
	evt, err := a.store.GetEvent(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	teams, err := a.store.ListTeams(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		EventID:      evt.ID,
		EventName:    evt.Name,
		Total:        len(teams),
		PresentTeams: []Team{},
		AbsentTeams:  []Team{},
	}
	for _, t := range teams {
		if t.IsPresent() {
			s.PresentTeams = append(s.PresentTeams, t)
		} else {
			s.AbsentTeams = append(s.AbsentTeams, t)
		}
	}
	s.PresentCount = len(s.PresentTeams)
	s.AbsentCount = len(s.AbsentTeams)
	return s, nil
}
