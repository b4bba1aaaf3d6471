package attendance

import "time"

// Presence is a team's check-in state. PRESENT is terminal.
type Presence string

const (
	Absent  Presence = "ABSENT"
	Present Presence = "PRESENT"
)

// Event is owned by the event-management collaborator and immutable here.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description"`
	ClubName    string    `json:"club_name"`
	EventHead   string    `json:"event_head"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team is the credential-bearing entity.
type Team struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	TeamName    string `json:"team_name"`
	LeaderName  string `json:"leader_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Year        string `json:"year"`
	PhoneNumber string `json:"phone_number"`

	// CredentialToken is a bearer secret for this team; it only leaves the
	// service inside the rendered credential.
	CredentialToken string `json:"-"`
	QRImageURL      string `json:"qr_image_url,omitempty"`

	Presence  Presence   `json:"presence"`
	PresentAt *time.Time `json:"present_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsPresent reports whether the team has been redeemed.
func (t Team) IsPresent() bool { return t.Presence == Present }

// Summary is an attendance rollup for one event.
type Summary struct {
	EventID      string `json:"event_id"`
	EventName    string `json:"event"`
	Total        int    `json:"total_teams_count"`
	PresentCount int    `json:"present_teams_count"`
	AbsentCount  int    `json:"absent_teams_count"`
	PresentTeams []Team `json:"present_teams"`
	AbsentTeams  []Team `json:"absent_teams"`
}
