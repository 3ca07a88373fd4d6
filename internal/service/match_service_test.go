package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/ledger"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// flakyLedger fails the nth append, after letting the earlier ones through
type flakyLedger struct {
	Ledger
	failOn  int
	appends int
}

func (l *flakyLedger) Append(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, barrelID *uuid.UUID, at time.Time) (uuid.UUID, error) {
	l.appends++
	if l.appends == l.failOn {
		return uuid.Nil, errors.New("ledger unavailable")
	}
	return l.Ledger.Append(ctx, tx, playerID, barrelID, at)
}

func TestStartMatch(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2})

	barrel := ledger.Barrel{ID: uuid.New(), EventID: f.event.ID, Name: "Keg 1", IsActive: true, CreatedAt: f.now}
	require.NoError(t, f.ledgerStore.CreateBarrel(f.ctx, &barrel))

	match := matches[0]
	started, err := f.matches.StartMatch(f.ctx, match.ID, "referee-1")
	require.NoError(t, err)

	assert.Equal(t, bracket.MatchInProgress, started.Status)
	require.NotNil(t, started.CreditedAt)
	require.NotNil(t, started.StartedAt)
	require.NotNil(t, started.StartedBy)
	assert.Equal(t, "referee-1", *started.StartedBy)

	stored, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, stored.Status)
	assert.WithinDuration(t, f.now, *stored.CreditedAt, time.Second)

	for _, playerID := range f.matchPlayers(t, match) {
		assert.Equal(t, 2, f.beerCount(t, playerID))

		consumptions, err := f.ledgerStore.GetConsumptions(f.ctx, playerID)
		require.NoError(t, err)
		require.Len(t, consumptions, 2)
		for _, c := range consumptions {
			require.NotNil(t, c.BarrelID)
			assert.Equal(t, barrel.ID, *c.BarrelID)
		}
	}

	links, err := f.matches.ListCredits(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, links, 8)

	// Players from other matches are untouched
	for _, playerID := range f.matchPlayers(t, matches[1]) {
		assert.Equal(t, 0, f.beerCount(t, playerID))
	}
}

func TestStartMatch_WithoutActiveBarrel(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 1})

	_, err := f.matches.StartMatch(f.ctx, matches[0].ID, "")
	require.NoError(t, err)

	stored, err := f.tournamentStore.GetMatch(f.ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Nil(t, stored.StartedBy)

	for _, playerID := range f.matchPlayers(t, matches[0]) {
		consumptions, err := f.ledgerStore.GetConsumptions(f.ctx, playerID)
		require.NoError(t, err)
		require.Len(t, consumptions, 1)
		assert.Nil(t, consumptions[0].BarrelID)
	}
}

func TestStartMatch_Rejections(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{})

	_, err := f.matches.StartMatch(f.ctx, uuid.New(), "referee")
	assert.ErrorIs(t, err, bracket.ErrMatchNotFound)
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = f.matches.StartMatch(f.ctx, matches[0].ID, "referee")
	require.NoError(t, err)

	_, err = f.matches.StartMatch(f.ctx, matches[0].ID, "referee")
	assert.ErrorIs(t, err, bracket.ErrMatchNotPending)
	assert.ErrorIs(t, err, bracket.ErrInvalidState)

	f.play(t, matches[1])
	_, err = f.matches.StartMatch(f.ctx, matches[1].ID, "referee")
	assert.ErrorIs(t, err, bracket.ErrMatchNotPending)

	assert.Equal(t, 8*2, f.countConsumptions(t, false), "only the two real starts credit anyone")
}

func TestStartMatch_TimeWindow(t *testing.T) {
	testCases := []struct {
		name        string
		attemptAgo  time.Duration
		expectedErr error
	}{
		{name: "stale attempt is refused", attemptAgo: 6 * time.Minute, expectedErr: bracket.ErrStartWindowExceeded},
		{name: "recent attempt is retried", attemptAgo: 4 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, matches := f.startedTournament(t, TournamentInput{TimeWindowMinutes: 5})
			match := matches[0]

			// An earlier start that died before crediting anyone
			attemptAt := f.now.Add(-tc.attemptAgo)
			_, err := f.db.Exec("UPDATE matches SET started_at = ? WHERE id = ?", attemptAt, match.ID)
			require.NoError(t, err)

			started, err := f.matches.StartMatch(f.ctx, match.ID, "referee")
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.ErrorIs(t, err, bracket.ErrTimeWindowExceeded)

				stored, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
				require.NoError(t, err)
				assert.Equal(t, bracket.MatchPending, stored.Status)
				assert.Nil(t, stored.CreditedAt)
				assert.Equal(t, 0, f.countConsumptions(t, false))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, started.StartedAt)
			assert.WithinDuration(t, attemptAt, *started.StartedAt, time.Second, "the first attempt keeps its timestamp")
			assert.WithinDuration(t, f.now, *started.CreditedAt, time.Second)
		})
	}
}

func TestStartMatch_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2})

	flaky := &flakyLedger{Ledger: f.ledgerStore, failOn: 6}
	f.matches.ledger = flaky

	_, err := f.matches.StartMatch(f.ctx, matches[0].ID, "referee")
	require.Error(t, err)
	assert.Equal(t, 6, flaky.appends)

	stored, err := f.tournamentStore.GetMatch(f.ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchPending, stored.Status)
	assert.Nil(t, stored.CreditedAt)
	assert.Nil(t, stored.StartedBy)
	assert.NotNil(t, stored.StartedAt, "the attempt itself is remembered")

	assert.Equal(t, 0, f.countConsumptions(t, false))
	for _, playerID := range f.matchPlayers(t, matches[0]) {
		assert.Equal(t, 0, f.beerCount(t, playerID))
	}
	links, err := f.tournamentStore.GetCreditLinks(f.ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	// A retry inside the time window goes through
	f.matches.ledger = f.ledgerStore
	f.advanceClock(time.Minute)
	_, err = f.matches.StartMatch(f.ctx, matches[0].ID, "referee")
	require.NoError(t, err)
	assert.Equal(t, 8, f.countConsumptions(t, true))
}

func TestStartMatch_ConcurrentStartCreditsOnce(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 3})

	const callers = 4
	errs := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, errs[i] = f.matches.StartMatch(f.ctx, matches[0].ID, "referee")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, bracket.ErrConflict) || errors.Is(err, bracket.ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 3*4, f.countConsumptions(t, false))
	for _, playerID := range f.matchPlayers(t, matches[0]) {
		assert.Equal(t, 3, f.beerCount(t, playerID))
	}
}

func TestUndoMatchStart_RoundTrip(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2, UndoWindowMinutes: 5})
	match := matches[0]
	players := f.matchPlayers(t, match)

	// Pre-existing consumption from the bar, unrelated to the match
	tx, err := f.db.BeginTxx(f.ctx, nil)
	require.NoError(t, err)
	_, err = f.ledgerStore.Append(f.ctx, tx, players[0], nil, f.now)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	before, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
	require.NoError(t, err)

	_, err = f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)
	assert.Equal(t, 3, f.beerCount(t, players[0]))

	f.advanceClock(4 * time.Minute)
	require.NoError(t, f.matches.UndoMatchStart(f.ctx, match.ID))

	after, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchPending, after.Status)
	assert.Nil(t, after.StartedAt)
	assert.Nil(t, after.CreditedAt)
	assert.Nil(t, after.StartedBy)
	assert.Equal(t, before.Status, after.Status)

	assert.Equal(t, 1, f.beerCount(t, players[0]))
	for _, playerID := range players[1:] {
		assert.Equal(t, 0, f.beerCount(t, playerID))
	}

	links, err := f.matches.ListCredits(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, 1, f.countConsumptions(t, true))
	assert.Equal(t, 9, f.countConsumptions(t, false), "undone records are soft removed, not deleted")

	err = f.matches.UndoMatchStart(f.ctx, match.ID)
	assert.ErrorIs(t, err, bracket.ErrNothingToUndo)

	// The match can be started again afterwards
	_, err = f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)
	assert.Equal(t, 3, f.beerCount(t, players[0]))
}

func TestUndoMatchStart_Rejections(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{})

	err := f.matches.UndoMatchStart(f.ctx, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrMatchNotFound)

	err = f.matches.UndoMatchStart(f.ctx, matches[0].ID)
	assert.ErrorIs(t, err, bracket.ErrNothingToUndo)

	f.play(t, matches[1])
	err = f.matches.UndoMatchStart(f.ctx, matches[1].ID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotInProgress)

	stored, err := f.tournamentStore.GetMatch(f.ctx, matches[1].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, stored.Status)
}

func TestUndoMatchStart_WindowExceeded(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2, UndoWindowMinutes: 5})
	match := matches[0]

	_, err := f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)

	f.advanceClock(10 * time.Minute)
	err = f.matches.UndoMatchStart(f.ctx, match.ID)
	assert.ErrorIs(t, err, bracket.ErrUndoWindowExceeded)
	assert.ErrorIs(t, err, bracket.ErrTimeWindowExceeded)

	stored, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, stored.Status)
	assert.NotNil(t, stored.CreditedAt)

	for _, playerID := range f.matchPlayers(t, match) {
		assert.Equal(t, 2, f.beerCount(t, playerID))
	}
	assert.Equal(t, 8, f.countConsumptions(t, true))
	links, err := f.tournamentStore.GetCreditLinks(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, links, 8)
}

func TestUndoMatchStart_CounterFloor(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2})
	match := matches[0]
	players := f.matchPlayers(t, match)

	_, err := f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)

	// Something outside the engine already knocked this counter down
	_, err = f.db.Exec("UPDATE players SET beer_count = 0 WHERE id = ?", players[0])
	require.NoError(t, err)

	require.NoError(t, f.matches.UndoMatchStart(f.ctx, match.ID))

	for _, playerID := range players {
		assert.Equal(t, 0, f.beerCount(t, playerID))
	}
}

func TestUndoMatchStart_SkipsRecordsRemovedElsewhere(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{BeersPerPlayer: 2})
	match := matches[0]
	players := f.matchPlayers(t, match)

	_, err := f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)

	// One of the credited records gets removed by hand, which already adjusts the counter
	links, err := f.tournamentStore.GetCreditLinks(f.ctx, match.ID)
	require.NoError(t, err)
	var target bracket.CreditLink
	for _, l := range links {
		if l.PlayerID == players[0] {
			target = l
			break
		}
	}
	tx, err := f.db.BeginTxx(f.ctx, nil)
	require.NoError(t, err)
	removed, err := f.ledgerStore.SoftRemove(f.ctx, tx, target.ConsumptionID, f.now)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, f.beerCount(t, players[0]))

	require.NoError(t, f.matches.UndoMatchStart(f.ctx, match.ID))
	for _, playerID := range players {
		assert.Equal(t, 0, f.beerCount(t, playerID))
	}
}

func TestCompleteMatch(t *testing.T) {
	f := newFixture(t)
	_, teams, matches := f.startedTournament(t, TournamentInput{})
	match := matches[0]

	_, err := f.matches.CompleteMatch(f.ctx, match.ID, match.TeamAID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotInProgress)

	_, err = f.matches.CompleteMatch(f.ctx, uuid.New(), match.TeamAID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotFound)

	_, err = f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)

	outsider := teams[len(teams)-1].ID
	require.False(t, match.HasTeam(outsider))
	_, err = f.matches.CompleteMatch(f.ctx, match.ID, outsider)
	assert.ErrorIs(t, err, bracket.ErrWinnerNotInMatch)
	assert.ErrorIs(t, err, bracket.ErrConstraintViolation)

	f.advanceClock(90 * time.Second)
	completion, err := f.matches.CompleteMatch(f.ctx, match.ID, match.TeamBID)
	require.NoError(t, err)
	assert.NoError(t, completion.AdvanceErr)
	assert.Empty(t, completion.Advanced)

	stored, err := f.tournamentStore.GetMatch(f.ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, match.TeamBID, *stored.WinnerID)
	require.NotNil(t, stored.DurationSeconds)
	assert.Equal(t, int64(90), *stored.DurationSeconds)
	assert.NotNil(t, stored.CreditedAt, "credits stay on record after completion")

	_, err = f.matches.CompleteMatch(f.ctx, match.ID, match.TeamAID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotInProgress)
}

func TestCompleteMatch_AdvancementFailureKeepsCompletion(t *testing.T) {
	f := newFixture(t)
	_, _, matches := f.startedTournament(t, TournamentInput{})

	for _, m := range matches[:3] {
		f.play(t, m)
	}

	broken := setupTestDB(t)
	require.NoError(t, broken.Close())
	f.matches.advancement = NewAdvancement(broken, store.NewTournamentStore(broken))

	_, err := f.matches.StartMatch(f.ctx, matches[3].ID, "referee")
	require.NoError(t, err)
	completion, err := f.matches.CompleteMatch(f.ctx, matches[3].ID, matches[3].TeamAID)
	require.NoError(t, err)
	assert.Error(t, completion.AdvanceErr)
	assert.Equal(t, bracket.MatchCompleted, completion.Match.Status)

	stored, err := f.tournamentStore.GetMatch(f.ctx, matches[3].ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, stored.Status)

	// A later call repairs the missing round
	created, err := f.advancement.TryAdvance(f.ctx, matches[3].TournamentID)
	require.NoError(t, err)
	assert.Len(t, created, 2)
}
