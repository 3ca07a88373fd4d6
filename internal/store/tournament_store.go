package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	matchOrderClause = `ORDER BY CASE round
            WHEN 'quarterfinal' THEN 1
            WHEN 'semifinal' THEN 2
            ELSE 3
        END ASC, match_order ASC`

	markStartAttemptQuery = `
		UPDATE matches SET started_at = ?
		WHERE id = ? AND status = 'pending' AND started_at IS NULL
	`
	markCreditedQuery = `
		UPDATE matches SET
		status = 'in_progress',
		started_at = ?,
		credited_at = ?,
		started_by = ?
		WHERE id = ? AND status = 'pending' AND credited_at IS NULL
	`
	completeMatchQuery = `
		UPDATE matches SET
		status = 'completed',
		winner_id = ?,
		ended_at = ?,
		duration_seconds = ?
		WHERE id = ? AND status = 'in_progress'
	`
	resetMatchQuery = `
		UPDATE matches SET
		status = 'pending',
		started_at = NULL,
		credited_at = NULL,
		started_by = NULL
		WHERE id = ? AND status = 'in_progress' AND credited_at IS NOT NULL
	`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, event_id, name, status, beers_per_player, time_window_minutes, undo_window_minutes, cancellation_policy, created_at)
        VALUES (:id, :event_id, :name, :status, :beers_per_player, :time_window_minutes, :undo_window_minutes, :cancellation_policy, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, bracket.ErrTournamentNotFound)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, bracket.ErrTournamentNotFound)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByEventID(ctx context.Context, eventID uuid.UUID) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments WHERE event_id = ? ORDER BY created_at DESC", eventID)
	return tournaments, err
}

// UpdateTournamentStatusTx moves the tournament from one status to the next. The
// previous status is part of the WHERE clause so a racing transition loses cleanly.
func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, from bracket.TournamentStatus) error {
	result, err := tx.ExecContext(ctx, `UPDATE tournaments SET status = ?, started_at = ?, completed_at = ? WHERE id = ? AND status = ?`,
		tournament.Status, tournament.StartedAt, tournament.CompletedAt, tournament.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return checkAffectedRows(result, bracket.ErrInvalidState)
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round, match_order, team_a_id, team_b_id, status, created_at)
		VALUES (:id, :tournament_id, :round, :match_order, :team_a_id, :team_b_id, :status, :created_at)`, matches)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, bracket.ErrMatchNotFound)
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, bracket.ErrMatchNotFound)
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? "+matchOrderClause, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := tx.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? "+matchOrderClause, tournamentID)
	return matches, err
}

func (s *TournamentStore) CountMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ?", tournamentID)
	return count, err
}

func (s *TournamentStore) CountRoundTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round bracket.Round) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND round = ?", tournamentID, round)
	return count, err
}

// MarkStartAttempt records the first start attempt on a pending match. It is a
// no-op when an earlier attempt already set started_at.
func (s *TournamentStore) MarkStartAttempt(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, markStartAttemptQuery, at, matchID)
	return err
}

// MarkCreditedTx flips a pending, uncredited match to in progress. Zero affected
// rows means another transaction credited it first.
func (s *TournamentStore) MarkCreditedTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	result, err := tx.ExecContext(ctx, markCreditedQuery, match.StartedAt, match.CreditedAt, match.StartedBy, match.ID)
	if err != nil {
		return fmt.Errorf("failed to mark match credited: %w", err)
	}
	return checkAffectedRows(result, bracket.ErrConcurrentStart)
}

func (s *TournamentStore) CompleteMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	result, err := tx.ExecContext(ctx, completeMatchQuery, match.WinnerID, match.EndedAt, match.DurationSeconds, match.ID)
	if err != nil {
		return fmt.Errorf("failed to complete match: %w", err)
	}
	return checkAffectedRows(result, bracket.ErrMatchNotInProgress)
}

func (s *TournamentStore) ResetMatchTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, resetMatchQuery, matchID)
	if err != nil {
		return fmt.Errorf("failed to reset match: %w", err)
	}
	return checkAffectedRows(result, bracket.ErrConcurrentUndo)
}

func (s *TournamentStore) CreateCreditLinks(ctx context.Context, tx *sqlx.Tx, links []bracket.CreditLink) error {
	if len(links) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_credits (match_id, player_id, consumption_id)
		VALUES (:match_id, :player_id, :consumption_id)`, links)
	return err
}

func (s *TournamentStore) GetCreditLinks(ctx context.Context, matchID uuid.UUID) ([]bracket.CreditLink, error) {
	links := []bracket.CreditLink{}
	err := s.db.SelectContext(ctx, &links, "SELECT * FROM match_credits WHERE match_id = ? ORDER BY player_id", matchID)
	return links, err
}

func (s *TournamentStore) GetCreditLinksTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.CreditLink, error) {
	links := []bracket.CreditLink{}
	err := tx.SelectContext(ctx, &links, "SELECT * FROM match_credits WHERE match_id = ?", matchID)
	return links, err
}

func (s *TournamentStore) DeleteCreditLinksTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM match_credits WHERE match_id = ?", matchID)
	return err
}
