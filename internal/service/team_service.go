package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TeamService manages the per-event pool of team definitions and the copies
// of them bound into tournaments.
type TeamService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	teams       *store.TeamStore
	ledger      *store.LedgerStore
	Clock       func() time.Time
}

func NewTeamService(db *sqlx.DB, tournaments *store.TournamentStore, teams *store.TeamStore, ledger *store.LedgerStore) *TeamService {
	return &TeamService{
		db:          db,
		tournaments: tournaments,
		teams:       teams,
		ledger:      ledger,
		Clock:       func() time.Time { return time.Now().UTC() },
	}
}

// TeamInput either points at an existing definition or describes one inline.
// An inline team is looked up by name and players and created when missing.
type TeamInput struct {
	DefinitionID *uuid.UUID `json:"definition_id,omitempty"`
	Name         string     `json:"name"`
	Player1ID    uuid.UUID  `json:"player_1_id"`
	Player2ID    uuid.UUID  `json:"player_2_id"`
}

func (s *TeamService) CreateTeamDefinition(ctx context.Context, eventID uuid.UUID, name string, player1, player2 uuid.UUID) (*bracket.TeamDefinition, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	def, err := s.createDefinitionTx(ctx, tx, eventID, name, player1, player2)
	if err != nil {
		return nil, err
	}
	return def, tx.Commit()
}

func (s *TeamService) GetTeamDefinition(ctx context.Context, id uuid.UUID) (*bracket.TeamDefinition, error) {
	return s.teams.GetDefinition(ctx, id)
}

func (s *TeamService) ListTeamDefinitions(ctx context.Context, eventID uuid.UUID) ([]bracket.TeamDefinition, error) {
	return s.teams.GetDefinitionsByEventID(ctx, eventID)
}

func (s *TeamService) createDefinitionTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, name string, player1, player2 uuid.UUID) (*bracket.TeamDefinition, error) {
	name = bracket.NormalizeTeamName(name)
	if name == "" {
		return nil, bracket.ErrTeamNameRequired
	}
	if player1 == player2 {
		return nil, bracket.ErrSamePlayerTwice
	}

	if _, err := s.ledger.GetEventTx(ctx, tx, eventID); err != nil {
		return nil, err
	}
	for _, playerID := range []uuid.UUID{player1, player2} {
		player, err := s.ledger.GetPlayerTx(ctx, tx, playerID)
		if err != nil {
			return nil, err
		}
		if player.EventID != eventID {
			return nil, bracket.ErrPlayerOutsideEvent
		}
	}

	_, err := s.teams.GetDefinitionByNameTx(ctx, tx, eventID, name)
	switch {
	case err == nil:
		return nil, bracket.ErrDuplicateTeamName
	case !errors.Is(err, bracket.ErrTeamDefinitionNotFound):
		return nil, err
	}

	taken, err := s.teams.GetDefinitionsByPlayersTx(ctx, tx, eventID, player1, player2)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, bracket.ErrPlayerAlreadyOnTeam
	}

	def := &bracket.TeamDefinition{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      name,
		Player1ID: player1,
		Player2ID: player2,
		CreatedAt: s.Clock(),
	}
	if err := s.teams.CreateDefinitionTx(ctx, tx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// resolveDefinitionTx finds the definition a TeamInput refers to, creating it
// when an inline team matches nothing yet.
func (s *TeamService) resolveDefinitionTx(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, input TeamInput) (*bracket.TeamDefinition, error) {
	if input.DefinitionID != nil {
		def, err := s.teams.GetDefinitionTx(ctx, tx, *input.DefinitionID)
		if err != nil {
			return nil, err
		}
		if def.EventID != eventID {
			return nil, bracket.ErrTeamDefinitionNotFound
		}
		return def, nil
	}

	name := bracket.NormalizeTeamName(input.Name)
	if name == "" {
		return nil, bracket.ErrTeamNameRequired
	}

	existing, err := s.teams.GetDefinitionByNameTx(ctx, tx, eventID, name)
	switch {
	case err == nil:
		if existing.SamePlayers(input.Player1ID, input.Player2ID) {
			return existing, nil
		}
		return nil, bracket.ErrDuplicateTeamName
	case !errors.Is(err, bracket.ErrTeamDefinitionNotFound):
		return nil, err
	}

	return s.createDefinitionTx(ctx, tx, eventID, name, input.Player1ID, input.Player2ID)
}

// BindTeam copies a team definition into a draft tournament.
func (s *TeamService) BindTeam(ctx context.Context, tournamentID uuid.UUID, input TeamInput) (*bracket.Team, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentDraft {
		return nil, bracket.ErrTournamentNotDraft
	}

	bound, err := s.teams.GetTeamsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(bound) >= bracket.TeamCount {
		return nil, bracket.ErrTournamentFull
	}

	def, err := s.resolveDefinitionTx(ctx, tx, tournament.EventID, input)
	if err != nil {
		return nil, err
	}

	for _, other := range bound {
		if bracket.SameTeamName(other.Name, def.Name) {
			return nil, bracket.ErrDuplicateTeamName
		}
		if other.HasPlayer(def.Player1ID) || other.HasPlayer(def.Player2ID) {
			return nil, bracket.ErrPlayerAlreadyOnTeam
		}
	}

	team := &bracket.Team{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		DefinitionID: def.ID,
		Name:         def.Name,
		Player1ID:    def.Player1ID,
		Player2ID:    def.Player2ID,
		CreatedAt:    s.Clock(),
	}
	if err := s.teams.CreateTeamTx(ctx, tx, team); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "team bound", "tournament_id", tournamentID, "team_id", team.ID, "name", team.Name, "teams", len(bound)+1)
	return team, nil
}

// CreateTeam binds an inline team, creating its definition in the event pool if needed.
func (s *TeamService) CreateTeam(ctx context.Context, tournamentID uuid.UUID, name string, player1, player2 uuid.UUID) (*bracket.Team, error) {
	return s.BindTeam(ctx, tournamentID, TeamInput{Name: name, Player1ID: player1, Player2ID: player2})
}

func (s *TeamService) RemoveTeam(ctx context.Context, tournamentID, teamID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.Status != bracket.TournamentDraft {
		return bracket.ErrTournamentNotDraft
	}

	if _, err := s.teams.GetTeamTx(ctx, tx, tournamentID, teamID); err != nil {
		return err
	}
	if err := s.teams.SoftDeleteTeamTx(ctx, tx, teamID, s.Clock()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *TeamService) ListTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	if _, err := s.tournaments.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.teams.GetTeams(ctx, tournamentID)
}
