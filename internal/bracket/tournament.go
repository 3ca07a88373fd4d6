package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
)

// CancellationPolicy is stored for the surrounding event tooling and is not interpreted here.
type CancellationPolicy string

const (
	KeepCredits   CancellationPolicy = "keep_credits"
	RevertCredits CancellationPolicy = "revert_credits"
)

// TeamCount is the only bracket size supported: quarterfinals, semifinals and a final.
const TeamCount = 8

type Tournament struct {
	ID      uuid.UUID `db:"id" json:"id"`
	EventID uuid.UUID `db:"event_id" json:"event_id"`
	Name    string    `db:"name" json:"name"`

	Status TournamentStatus `db:"status" json:"status"`

	BeersPerPlayer     int                `db:"beers_per_player" json:"beers_per_player"`
	TimeWindowMinutes  int                `db:"time_window_minutes" json:"time_window_minutes"`
	UndoWindowMinutes  int                `db:"undo_window_minutes" json:"undo_window_minutes"`
	CancellationPolicy CancellationPolicy `db:"cancellation_policy" json:"cancellation_policy"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

func (t *Tournament) TimeWindow() time.Duration {
	return time.Duration(t.TimeWindowMinutes) * time.Minute
}

func (t *Tournament) UndoWindow() time.Duration {
	return time.Duration(t.UndoWindowMinutes) * time.Minute
}
