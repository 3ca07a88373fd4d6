package bracket

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// TeamDefinition is a reusable pairing of two players, scoped to an event.
type TeamDefinition struct {
	ID        uuid.UUID `db:"id" json:"id"`
	EventID   uuid.UUID `db:"event_id" json:"event_id"`
	Name      string    `db:"name" json:"name"`
	NameKey   string    `db:"name_key" json:"-"`
	Player1ID uuid.UUID `db:"player_1_id" json:"player_1_id"`
	Player2ID uuid.UUID `db:"player_2_id" json:"player_2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Team is the copy of a TeamDefinition bound into one tournament.
type Team struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	DefinitionID uuid.UUID  `db:"definition_id" json:"definition_id"`
	Name         string     `db:"name" json:"name"`
	NameKey      string     `db:"name_key" json:"-"`
	Player1ID    uuid.UUID  `db:"player_1_id" json:"player_1_id"`
	Player2ID    uuid.UUID  `db:"player_2_id" json:"player_2_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

func (t *Team) Players() [2]uuid.UUID {
	return [2]uuid.UUID{t.Player1ID, t.Player2ID}
}

func (t *Team) HasPlayer(id uuid.UUID) bool {
	return t.Player1ID == id || t.Player2ID == id
}

// SamePlayers reports whether the definition pairs exactly p1 and p2, in either order.
func (d *TeamDefinition) SamePlayers(p1, p2 uuid.UUID) bool {
	return (d.Player1ID == p1 && d.Player2ID == p2) || (d.Player1ID == p2 && d.Player2ID == p1)
}

// NormalizeTeamName trims surrounding whitespace; comparisons are case-insensitive on top of this.
func NormalizeTeamName(name string) string {
	return strings.TrimSpace(name)
}

// TeamNameKey is the full Unicode case fold of the normalized name. Uniqueness
// of team names is enforced on this key, never on the display name.
func TeamNameKey(name string) string {
	return cases.Fold().String(NormalizeTeamName(name))
}

func SameTeamName(a, b string) bool {
	return TeamNameKey(a) == TeamNameKey(b)
}
