package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TeamStore struct {
	db *sqlx.DB
}

const (
	createDefinitionQuery = `
		INSERT INTO team_definitions (id, event_id, name, name_key, player_1_id, player_2_id, created_at) VALUES
		(:id, :event_id, :name, :name_key, :player_1_id, :player_2_id, :created_at)
	`
	getDefinitionByNameQuery = `
		SELECT * FROM team_definitions
		WHERE event_id = ?
		AND name_key = ?
	`
	getDefinitionsByPlayersQuery = `
		SELECT * FROM team_definitions
		WHERE event_id = ?
		AND (player_1_id IN (?, ?) OR player_2_id IN (?, ?))
	`
	createTeamQuery = `
		INSERT INTO teams (id, tournament_id, definition_id, name, name_key, player_1_id, player_2_id, created_at) VALUES
		(:id, :tournament_id, :definition_id, :name, :name_key, :player_1_id, :player_2_id, :created_at)
	`
	getActiveTeamsQuery = `
		SELECT * FROM teams
		WHERE tournament_id = ?
		AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`
)

func NewTeamStore(db *sqlx.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) CreateDefinitionTx(ctx context.Context, tx *sqlx.Tx, def *bracket.TeamDefinition) error {
	def.NameKey = bracket.TeamNameKey(def.Name)
	_, err := tx.NamedExecContext(ctx, createDefinitionQuery, def)
	if IsUniqueViolation(err) {
		return bracket.ErrDuplicateTeamName
	}
	return err
}

func (s *TeamStore) GetDefinition(ctx context.Context, id uuid.UUID) (*bracket.TeamDefinition, error) {
	var def bracket.TeamDefinition
	if err := s.db.GetContext(ctx, &def, "SELECT * FROM team_definitions WHERE id = ?", id); err != nil {
		return nil, notFound(err, bracket.ErrTeamDefinitionNotFound)
	}
	return &def, nil
}

func (s *TeamStore) GetDefinitionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.TeamDefinition, error) {
	var def bracket.TeamDefinition
	if err := tx.GetContext(ctx, &def, "SELECT * FROM team_definitions WHERE id = ?", id); err != nil {
		return nil, notFound(err, bracket.ErrTeamDefinitionNotFound)
	}
	return &def, nil
}

// GetDefinitionByNameTx looks a definition up by its case-insensitive name within the event.
func (s *TeamStore) GetDefinitionByNameTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, name string) (*bracket.TeamDefinition, error) {
	var def bracket.TeamDefinition
	if err := tx.GetContext(ctx, &def, getDefinitionByNameQuery, eventID, bracket.TeamNameKey(name)); err != nil {
		return nil, notFound(err, bracket.ErrTeamDefinitionNotFound)
	}
	return &def, nil
}

// GetDefinitionsByPlayersTx returns every definition in the event that uses either player.
func (s *TeamStore) GetDefinitionsByPlayersTx(ctx context.Context, tx *sqlx.Tx, eventID, player1, player2 uuid.UUID) ([]bracket.TeamDefinition, error) {
	defs := []bracket.TeamDefinition{}
	err := tx.SelectContext(ctx, &defs, getDefinitionsByPlayersQuery, eventID, player1, player2, player1, player2)
	return defs, err
}

func (s *TeamStore) GetDefinitionsByEventID(ctx context.Context, eventID uuid.UUID) ([]bracket.TeamDefinition, error) {
	defs := []bracket.TeamDefinition{}
	err := s.db.SelectContext(ctx, &defs, "SELECT * FROM team_definitions WHERE event_id = ? ORDER BY name_key ASC, id ASC", eventID)
	return defs, err
}

func (s *TeamStore) CreateTeamTx(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	team.NameKey = bracket.TeamNameKey(team.Name)
	_, err := tx.NamedExecContext(ctx, createTeamQuery, team)
	if IsUniqueViolation(err) {
		return bracket.ErrDuplicateTeamName
	}
	return err
}

func (s *TeamStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, tournamentID, teamID uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	err := tx.GetContext(ctx, &team, "SELECT * FROM teams WHERE id = ? AND tournament_id = ? AND deleted_at IS NULL", teamID, tournamentID)
	if err != nil {
		return nil, notFound(err, bracket.ErrTeamNotFound)
	}
	return &team, nil
}

func (s *TeamStore) GetTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := s.db.SelectContext(ctx, &teams, getActiveTeamsQuery, tournamentID)
	return teams, err
}

func (s *TeamStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := tx.SelectContext(ctx, &teams, getActiveTeamsQuery, tournamentID)
	return teams, err
}

func (s *TeamStore) SoftDeleteTeamTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, at time.Time) error {
	result, err := tx.ExecContext(ctx, "UPDATE teams SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", at, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove team: %w", err)
	}
	return checkAffectedRows(result, bracket.ErrTeamNotFound)
}
