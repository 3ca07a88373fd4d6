package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type Round string

const (
	Quarterfinal Round = "quarterfinal"
	Semifinal    Round = "semifinal"
	Final        Round = "final"
)

// MatchCount is the number of matches a fully played round holds.
func (r Round) MatchCount() int {
	switch r {
	case Quarterfinal:
		return 4
	case Semifinal:
		return 2
	case Final:
		return 1
	}
	return 0
}

// Next returns the round fed by r, and false for the final.
func (r Round) Next() (Round, bool) {
	switch r {
	case Quarterfinal:
		return Semifinal, true
	case Semifinal:
		return Final, true
	}
	return "", false
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket; match_order keeps creation order within a round
	Round      Round `db:"round" json:"round"`
	MatchOrder int   `db:"match_order" json:"match_order"`

	TeamAID  uuid.UUID  `db:"team_a_id" json:"team_a_id"`
	TeamBID  uuid.UUID  `db:"team_b_id" json:"team_b_id"`
	WinnerID *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`

	Status MatchStatus `db:"status" json:"status"`

	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CreditedAt      *time.Time `db:"credited_at" json:"credited_at,omitempty"`
	EndedAt         *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	StartedBy       *string    `db:"started_by" json:"started_by,omitempty"`
	DurationSeconds *int64     `db:"duration_seconds" json:"duration_seconds,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (m *Match) HasTeam(teamID uuid.UUID) bool {
	return m.TeamAID == teamID || m.TeamBID == teamID
}

func (m *Match) IsCredited() bool {
	return m.CreditedAt != nil
}

// IsDecided reports whether the match is completed and has a winner to advance.
func (m *Match) IsDecided() bool {
	return m.Status == MatchCompleted && m.WinnerID != nil
}

// CreditLink ties one consumption record created by a match start to the match and player.
type CreditLink struct {
	MatchID       uuid.UUID `db:"match_id" json:"match_id"`
	PlayerID      uuid.UUID `db:"player_id" json:"player_id"`
	ConsumptionID uuid.UUID `db:"consumption_id" json:"consumption_id"`
}
