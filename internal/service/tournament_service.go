package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/config"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// TournamentService owns the tournament lifecycle: draft, active, completed.
type TournamentService struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	teams    *store.TeamStore
	ledger   *store.LedgerStore
	brackets *BracketGeneration
	defaults config.TournamentDefaults
	Clock    func() time.Time
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, teams *store.TeamStore, ledger *store.LedgerStore, brackets *BracketGeneration, defaults config.TournamentDefaults) *TournamentService {
	return &TournamentService{
		db:       db,
		store:    store,
		teams:    teams,
		ledger:   ledger,
		brackets: brackets,
		defaults: defaults,
		Clock:    func() time.Time { return time.Now().UTC() },
	}
}

// TournamentInput configures a new tournament. Zero values fall back to the configured defaults.
type TournamentInput struct {
	Name               string                     `json:"name"`
	BeersPerPlayer     int                        `json:"beers_per_player"`
	TimeWindowMinutes  int                        `json:"time_window_minutes"`
	UndoWindowMinutes  int                        `json:"undo_window_minutes"`
	CancellationPolicy bracket.CancellationPolicy `json:"cancellation_policy"`
}

type TournamentData struct {
	Tournament  *bracket.Tournament `json:"tournament"`
	Teams       []bracket.Team      `json:"teams"`
	Matches     []bracket.Match     `json:"matches"`
	NextMatchID *uuid.UUID          `json:"next_match_id,omitempty"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, eventID uuid.UUID, input TournamentInput) (*bracket.Tournament, error) {
	tournament := &bracket.Tournament{
		ID:                 uuid.New(),
		EventID:            eventID,
		Name:               strings.TrimSpace(input.Name),
		Status:             bracket.TournamentDraft,
		BeersPerPlayer:     orDefault(input.BeersPerPlayer, s.defaults.BeersPerPlayer),
		TimeWindowMinutes:  orDefault(input.TimeWindowMinutes, s.defaults.TimeWindowMinutes),
		UndoWindowMinutes:  orDefault(input.UndoWindowMinutes, s.defaults.UndoWindowMinutes),
		CancellationPolicy: input.CancellationPolicy,
		CreatedAt:          s.Clock(),
	}
	if tournament.CancellationPolicy == "" {
		tournament.CancellationPolicy = s.defaults.CancellationPolicy
	}
	if tournament.Name == "" || tournament.BeersPerPlayer < 1 || tournament.TimeWindowMinutes < 1 || tournament.UndoWindowMinutes < 1 {
		return nil, bracket.ErrInvalidTournamentConfig
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.ledger.GetEventTx(ctx, tx, eventID); err != nil {
		return nil, err
	}
	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, err
	}
	return tournament, tx.Commit()
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	var teams []bracket.Team
	var matches []bracket.Match

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teams.GetTeams(gCtx, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.store.GetMatches(gCtx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var nextMatchID *uuid.UUID
	for _, m := range matches {
		if m.Status != bracket.MatchCompleted {
			id := m.ID
			nextMatchID = &id
			break
		}
	}

	return &TournamentData{
		Tournament:  tournament,
		Teams:       teams,
		Matches:     matches,
		NextMatchID: nextMatchID,
	}, nil
}

func (s *TournamentService) GetTournamentsForEvent(ctx context.Context, eventID uuid.UUID) ([]bracket.Tournament, error) {
	return s.store.GetTournamentsByEventID(ctx, eventID)
}

// StartTournament activates a draft tournament with a full roster and draws the quarterfinals
// in the same transaction.
func (s *TournamentService) StartTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentDraft {
		return nil, bracket.ErrTournamentNotDraft
	}

	teams, err := s.teams.GetTeamsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(teams) != bracket.TeamCount {
		return nil, bracket.ErrWrongTeamCount
	}

	now := s.Clock()
	tournament.Status = bracket.TournamentActive
	tournament.StartedAt = &now
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament, bracket.TournamentDraft); err != nil {
		return nil, err
	}

	if _, err := s.brackets.initializeTx(ctx, tx, tournament); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "tournament started", "tournament_id", id)
	return tournament, nil
}

// CompleteTournament closes an active tournament once its final has a winner.
func (s *TournamentService) CompleteTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentActive {
		return nil, bracket.ErrTournamentNotActive
	}

	matches, err := s.store.GetMatchesTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !hasDecidedFinal(matches) {
		return nil, bracket.ErrFinalNotDecided
	}

	now := s.Clock()
	tournament.Status = bracket.TournamentCompleted
	tournament.CompletedAt = &now
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament, bracket.TournamentActive); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "tournament completed", "tournament_id", id)
	return tournament, nil
}

func hasDecidedFinal(matches []bracket.Match) bool {
	for i := range matches {
		if matches[i].Round == bracket.Final && matches[i].IsDecided() {
			return true
		}
	}
	return false
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
