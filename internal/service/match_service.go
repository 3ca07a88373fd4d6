package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/AdamBeresnev/beer-pong/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Ledger is the consumption ledger as the match engine sees it. Both calls run
// inside the caller's transaction and keep the player's counter in step.
type Ledger interface {
	Append(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, barrelID *uuid.UUID, at time.Time) (uuid.UUID, error)
	SoftRemove(ctx context.Context, tx *sqlx.Tx, consumptionID uuid.UUID, at time.Time) (bool, error)
}

// SupplySource reports the barrel to tag credited records with. No active barrel is not an error.
type SupplySource interface {
	ActiveBarrel(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (*uuid.UUID, error)
}

type MatchService struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	teams       *store.TeamStore
	ledger      Ledger
	supply      SupplySource
	advancement *Advancement
	Clock       func() time.Time
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, teams *store.TeamStore, ledger Ledger, supply SupplySource, advancement *Advancement) *MatchService {
	return &MatchService{
		db:          db,
		store:       store,
		teams:       teams,
		ledger:      ledger,
		supply:      supply,
		advancement: advancement,
		Clock:       func() time.Time { return time.Now().UTC() },
	}
}

// MatchCompletion is the result of completing a match. AdvanceErr carries a
// failed advancement; the completion itself stands regardless.
type MatchCompletion struct {
	Match      *bracket.Match  `json:"match"`
	Advanced   []bracket.Match `json:"advanced"`
	AdvanceErr error           `json:"-"`
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

func (s *MatchService) ListCredits(ctx context.Context, matchID uuid.UUID) ([]bracket.CreditLink, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.store.GetCreditLinks(ctx, matchID)
}

// StartMatch credits all four players with the tournament's beers and moves the
// match to in progress, all in one transaction.
func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID, operatorID string) (*bracket.Match, error) {
	now := s.Clock()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != bracket.MatchPending {
		return nil, bracket.ErrMatchNotPending
	}
	if match.IsCredited() {
		return nil, bracket.ErrMatchAlreadyCredited
	}

	tournament, err := s.store.GetTournament(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}

	// A started_at without credits is a leftover from an attempt that never finished
	if match.StartedAt != nil && now.Sub(*match.StartedAt) > tournament.TimeWindow() {
		return nil, bracket.ErrStartWindowExceeded
	}
	if match.StartedAt == nil {
		if err := s.store.MarkStartAttempt(ctx, matchID, now); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if current.IsCredited() {
		return nil, bracket.ErrConcurrentStart
	}
	if current.Status != bracket.MatchPending {
		return nil, bracket.ErrMatchNotPending
	}

	teamA, err := s.teams.GetTeamTx(ctx, tx, current.TournamentID, current.TeamAID)
	if err != nil {
		return nil, err
	}
	teamB, err := s.teams.GetTeamTx(ctx, tx, current.TournamentID, current.TeamBID)
	if err != nil {
		return nil, err
	}

	barrelID, err := s.supply.ActiveBarrel(ctx, tx, tournament.EventID)
	if err != nil {
		return nil, err
	}

	if current.StartedAt == nil {
		current.StartedAt = &now
	}
	current.Status = bracket.MatchInProgress
	current.CreditedAt = &now
	current.StartedBy = utils.StringOrNil(operatorID)

	if err := s.store.MarkCreditedTx(ctx, tx, current); err != nil {
		return nil, err
	}

	links := make([]bracket.CreditLink, 0, 4*tournament.BeersPerPlayer)
	for _, team := range []*bracket.Team{teamA, teamB} {
		for _, playerID := range team.Players() {
			for range tournament.BeersPerPlayer {
				consumptionID, err := s.ledger.Append(ctx, tx, playerID, barrelID, now)
				if err != nil {
					return nil, err
				}
				links = append(links, bracket.CreditLink{
					MatchID:       current.ID,
					PlayerID:      playerID,
					ConsumptionID: consumptionID,
				})
			}
		}
	}

	if err := s.store.CreateCreditLinks(ctx, tx, links); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "match started", "match_id", current.ID, "round", current.Round, "credits", len(links), "started_by", utils.OrZero(current.StartedBy))
	return current, nil
}

// CompleteMatch records the winner, then tries to advance the bracket. An
// advancement failure is logged and returned on the result, never as the error.
func (s *MatchService) CompleteMatch(ctx context.Context, matchID, winnerTeamID uuid.UUID) (*MatchCompletion, error) {
	now := s.Clock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != bracket.MatchInProgress {
		return nil, bracket.ErrMatchNotInProgress
	}
	if !match.HasTeam(winnerTeamID) {
		return nil, bracket.ErrWinnerNotInMatch
	}

	match.Status = bracket.MatchCompleted
	match.WinnerID = &winnerTeamID
	match.EndedAt = &now
	match.DurationSeconds = utils.SecondsBetween(match.StartedAt, match.EndedAt)

	if err := s.store.CompleteMatchTx(ctx, tx, match); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "match completed", "match_id", match.ID, "round", match.Round, "winner_id", winnerTeamID)

	completion := &MatchCompletion{Match: match, Advanced: []bracket.Match{}}
	if s.advancement == nil {
		return completion, nil
	}

	advanced, err := s.advancement.TryAdvance(ctx, match.TournamentID)
	if err != nil {
		slog.WarnContext(ctx, "advancement failed after match completion", "match_id", match.ID, "tournament_id", match.TournamentID, "error", err)
		completion.AdvanceErr = err
		return completion, nil
	}
	completion.Advanced = advanced
	return completion, nil
}

// UndoMatchStart reverses the credits of a started match and puts it back to pending.
// It only works within the tournament's undo window.
func (s *MatchService) UndoMatchStart(ctx context.Context, matchID uuid.UUID) error {
	now := s.Clock()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.IsCredited() {
		return bracket.ErrNothingToUndo
	}
	if match.Status != bracket.MatchInProgress {
		return bracket.ErrMatchNotInProgress
	}

	tournament, err := s.store.GetTournament(ctx, match.TournamentID)
	if err != nil {
		return err
	}
	if now.Sub(*match.CreditedAt) > tournament.UndoWindow() {
		return bracket.ErrUndoWindowExceeded
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return err
	}
	if !current.IsCredited() {
		return bracket.ErrNothingToUndo
	}
	if current.Status != bracket.MatchInProgress {
		return bracket.ErrConcurrentUndo
	}

	links, err := s.store.GetCreditLinksTx(ctx, tx, matchID)
	if err != nil {
		return err
	}
	removed := 0
	for _, link := range links {
		ok, err := s.ledger.SoftRemove(ctx, tx, link.ConsumptionID, now)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}

	if err := s.store.DeleteCreditLinksTx(ctx, tx, matchID); err != nil {
		return err
	}
	if err := s.store.ResetMatchTx(ctx, tx, matchID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "match start undone", "match_id", matchID, "links", len(links), "removed", removed)
	return nil
}
