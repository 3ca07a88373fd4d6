package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/ledger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LedgerStore covers the event-side tables the engine touches: events,
// players and their running counters, barrels, and consumption records.
type LedgerStore struct {
	db *sqlx.DB
}

const (
	appendConsumptionQuery = `
		INSERT INTO consumptions (id, player_id, barrel_id, consumed_at) VALUES
		(?, ?, ?, ?)
	`
	incrementCounterQuery = `UPDATE players SET beer_count = beer_count + 1 WHERE id = ?`
	softRemoveQuery       = `UPDATE consumptions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`
	// The counter never drops below zero, even if something else already decremented it.
	decrementCounterQuery = `
		UPDATE players SET beer_count = MAX(beer_count - 1, 0)
		WHERE id = (SELECT player_id FROM consumptions WHERE id = ?)
	`
	recountPlayerQuery = `
		UPDATE players SET beer_count = (
			SELECT COUNT(*) FROM consumptions
			WHERE consumptions.player_id = players.id
			AND consumptions.deleted_at IS NULL
		)
		WHERE id = ?
	`
)

func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) CreateEvent(ctx context.Context, event *ledger.Event) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO events (id, name, created_at) VALUES (:id, :name, :created_at)`, event)
	return err
}

func (s *LedgerStore) GetEventTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ledger.Event, error) {
	var event ledger.Event
	if err := tx.GetContext(ctx, &event, "SELECT * FROM events WHERE id = ?", id); err != nil {
		return nil, notFound(err, bracket.ErrEventNotFound)
	}
	return &event, nil
}

func (s *LedgerStore) CreatePlayer(ctx context.Context, player *ledger.Player) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO players (id, event_id, name, beer_count, created_at)
		VALUES (:id, :event_id, :name, :beer_count, :created_at)`, player)
	return err
}

func (s *LedgerStore) GetPlayer(ctx context.Context, id uuid.UUID) (*ledger.Player, error) {
	var player ledger.Player
	if err := s.db.GetContext(ctx, &player, "SELECT * FROM players WHERE id = ?", id); err != nil {
		return nil, notFound(err, bracket.ErrPlayerNotFound)
	}
	return &player, nil
}

func (s *LedgerStore) GetPlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ledger.Player, error) {
	var player ledger.Player
	if err := tx.GetContext(ctx, &player, "SELECT * FROM players WHERE id = ?", id); err != nil {
		return nil, notFound(err, bracket.ErrPlayerNotFound)
	}
	return &player, nil
}

func (s *LedgerStore) CreateBarrel(ctx context.Context, barrel *ledger.Barrel) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO barrels (id, event_id, name, is_active, created_at)
		VALUES (:id, :event_id, :name, :is_active, :created_at)`, barrel)
	return err
}

// ActiveBarrel returns the barrel currently on tap for the event, or nil when none is.
func (s *LedgerStore) ActiveBarrel(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (*uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, "SELECT id FROM barrels WHERE event_id = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active barrel: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// Append writes one consumption record and bumps the player's counter in the same transaction.
func (s *LedgerStore) Append(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, barrelID *uuid.UUID, at time.Time) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := tx.ExecContext(ctx, appendConsumptionQuery, id, playerID, barrelID, at); err != nil {
		return uuid.Nil, fmt.Errorf("failed to append consumption: %w", err)
	}

	result, err := tx.ExecContext(ctx, incrementCounterQuery, playerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to increment counter: %w", err)
	}
	if err := checkAffectedRows(result, bracket.ErrPlayerNotFound); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// SoftRemove marks a consumption record removed and decrements the owner's counter.
// It reports false, and leaves the counter alone, if the record was already removed.
func (s *LedgerStore) SoftRemove(ctx context.Context, tx *sqlx.Tx, consumptionID uuid.UUID, at time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, softRemoveQuery, at, consumptionID)
	if err != nil {
		return false, fmt.Errorf("failed to remove consumption: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, decrementCounterQuery, consumptionID); err != nil {
		return false, fmt.Errorf("failed to decrement counter: %w", err)
	}
	return true, nil
}

func (s *LedgerStore) GetConsumptions(ctx context.Context, playerID uuid.UUID) ([]ledger.Consumption, error) {
	consumptions := []ledger.Consumption{}
	err := s.db.SelectContext(ctx, &consumptions, "SELECT * FROM consumptions WHERE player_id = ? ORDER BY consumed_at ASC", playerID)
	return consumptions, err
}

// RecountPlayer rebuilds the running counter from the records that are not removed.
func (s *LedgerStore) RecountPlayer(ctx context.Context, playerID uuid.UUID) (*ledger.Player, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, recountPlayerQuery, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to recount player: %w", err)
	}
	if err := checkAffectedRows(result, bracket.ErrPlayerNotFound); err != nil {
		return nil, err
	}

	player, err := s.GetPlayerTx(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	return player, tx.Commit()
}
