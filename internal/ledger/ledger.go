// Package ledger holds the consumption records the beer pong engine credits
// players with. The rest of the event tooling owns these tables; the engine
// only appends, soft-removes and keeps the per-player counter in step.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Player struct {
	ID        uuid.UUID `db:"id" json:"id"`
	EventID   uuid.UUID `db:"event_id" json:"event_id"`
	Name      string    `db:"name" json:"name"`
	BeerCount int       `db:"beer_count" json:"beer_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Barrel is a supply source. At most one barrel per event is expected to be active.
type Barrel struct {
	ID        uuid.UUID `db:"id" json:"id"`
	EventID   uuid.UUID `db:"event_id" json:"event_id"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Consumption struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PlayerID   uuid.UUID  `db:"player_id" json:"player_id"`
	BarrelID   *uuid.UUID `db:"barrel_id" json:"barrel_id,omitempty"`
	ConsumedAt time.Time  `db:"consumed_at" json:"consumed_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (c *Consumption) IsRemoved() bool {
	return c.DeletedAt != nil
}
