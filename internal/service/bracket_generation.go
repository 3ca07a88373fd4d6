package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BracketGeneration draws the quarterfinals once a tournament goes active.
type BracketGeneration struct {
	db    *sqlx.DB
	store *store.TournamentStore
	teams *store.TeamStore

	// Shuffle permutes the teams before pairing; tests swap in a fixed order
	Shuffle func(n int, swap func(i, j int))
	Clock   func() time.Time
}

func NewBracketService(db *sqlx.DB, store *store.TournamentStore, teams *store.TeamStore) *BracketGeneration {
	return &BracketGeneration{
		db:      db,
		store:   store,
		teams:   teams,
		Shuffle: rand.Shuffle,
		Clock:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *BracketGeneration) InitializeBracket(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	matches, err := s.initializeTx(ctx, tx, tournament)
	if err != nil {
		return nil, err
	}
	return matches, tx.Commit()
}

func (s *BracketGeneration) initializeTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) ([]bracket.Match, error) {
	if tournament.Status != bracket.TournamentActive {
		return nil, bracket.ErrTournamentNotActive
	}

	existing, err := s.store.CountMatchesTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, bracket.ErrBracketExists
	}

	teams, err := s.teams.GetTeamsTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}
	if len(teams) != bracket.TeamCount {
		return nil, bracket.ErrWrongTeamCount
	}

	matches := s.GenerateQuarterfinals(tournament.ID, teams)
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "bracket initialized", "tournament_id", tournament.ID, "matches", len(matches))
	return matches, nil
}

// GenerateQuarterfinals shuffles the teams and pairs them off consecutively,
// so every team lands in exactly one match.
func (s *BracketGeneration) GenerateQuarterfinals(tournamentID uuid.UUID, teams []bracket.Team) []bracket.Match {
	drawn := slices.Clone(teams)
	s.Shuffle(len(drawn), func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})

	now := s.Clock()
	matches := make([]bracket.Match, 0, len(drawn)/2)
	for i := 0; i+1 < len(drawn); i += 2 {
		matches = append(matches, newPendingMatch(tournamentID, bracket.Quarterfinal, i/2+1, drawn[i].ID, drawn[i+1].ID, now))
	}
	return matches
}

func newPendingMatch(tournamentID uuid.UUID, round bracket.Round, order int, teamA, teamB uuid.UUID, now time.Time) bracket.Match {
	return bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Round:        round,
		MatchOrder:   order,
		TeamAID:      teamA,
		TeamBID:      teamB,
		Status:       bracket.MatchPending,
		CreatedAt:    now,
	}
}
