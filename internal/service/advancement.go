package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Advancement creates the next round once every match of the current one has a winner.
// It is safe to call any number of times; a round that has matches is never created twice.
type Advancement struct {
	db    *sqlx.DB
	store *store.TournamentStore
	Clock func() time.Time
}

func NewAdvancement(db *sqlx.DB, store *store.TournamentStore) *Advancement {
	return &Advancement{
		db:    db,
		store: store,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

func (a *Advancement) TryAdvance(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := a.store.GetTournamentTx(ctx, tx, tournamentID); err != nil {
		return nil, err
	}

	matches, err := a.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	next := nextRoundMatches(tournamentID, matches, a.Clock())
	if len(next) == 0 {
		return []bracket.Match{}, nil
	}

	existing, err := a.store.CountRoundTx(ctx, tx, tournamentID, next[0].Round)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return []bracket.Match{}, nil
	}

	if err := a.store.CreateMatches(ctx, tx, next); err != nil {
		if store.IsUniqueViolation(err) {
			// Someone else advanced this round first
			return []bracket.Match{}, nil
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "round advanced", "tournament_id", tournamentID, "round", next[0].Round, "matches", len(next))
	return next, nil
}

// nextRoundMatches pairs the winners of the first complete round whose successor
// does not exist yet: winners of matches 1 and 2, then 3 and 4, in bracket order.
// matches must be ordered by round then match order.
func nextRoundMatches(tournamentID uuid.UUID, matches []bracket.Match, now time.Time) []bracket.Match {
	byRound := make(map[bracket.Round][]bracket.Match)
	for _, m := range matches {
		byRound[m.Round] = append(byRound[m.Round], m)
	}

	for _, round := range []bracket.Round{bracket.Quarterfinal, bracket.Semifinal} {
		nextRound, _ := round.Next()
		if len(byRound[nextRound]) > 0 {
			continue
		}

		played := byRound[round]
		if len(played) != round.MatchCount() || !allDecided(played) {
			continue
		}

		next := make([]bracket.Match, 0, nextRound.MatchCount())
		for i := 0; i+1 < len(played); i += 2 {
			next = append(next, newPendingMatch(tournamentID, nextRound, i/2+1, *played[i].WinnerID, *played[i+1].WinnerID, now))
		}
		return next
	}
	return nil
}

func allDecided(matches []bracket.Match) bool {
	for i := range matches {
		if !matches[i].IsDecided() {
			return false
		}
	}
	return true
}
