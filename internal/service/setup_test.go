package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/bracket"
	"github.com/AdamBeresnev/beer-pong/internal/config"
	"github.com/AdamBeresnev/beer-pong/internal/db"
	"github.com/AdamBeresnev/beer-pong/internal/ledger"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// Every connection to :memory: is its own database
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

// setupFileDB opens a SQLite file with the same connection settings the server uses
func setupFileDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(filepath.Join(t.TempDir(), "beer_pong.db"))
	require.NoError(t, err, "Failed to open file DB")
	require.NoError(t, db.RunMigrations(database.DB, "file://../../migrations"), "Failed to apply migrations")
	return database
}

// inOrder leaves the teams as bound, so quarterfinal N is team 2N-1 against team 2N
func inOrder(int, func(i, j int)) {}

type fixture struct {
	ctx context.Context
	db  *sqlx.DB
	now time.Time

	tournamentStore *store.TournamentStore
	teamStore       *store.TeamStore
	ledgerStore     *store.LedgerStore

	teams       *TeamService
	brackets    *BracketGeneration
	advancement *Advancement
	matches     *MatchService
	tournaments *TournamentService

	event   ledger.Event
	players []ledger.Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, setupTestDB(t))
}

func newFixtureOn(t *testing.T, database *sqlx.DB) *fixture {
	t.Helper()

	t.Cleanup(func() { database.Close() })

	f := &fixture{
		ctx:             context.Background(),
		db:              database,
		now:             time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		tournamentStore: store.NewTournamentStore(database),
		teamStore:       store.NewTeamStore(database),
		ledgerStore:     store.NewLedgerStore(database),
	}
	clock := func() time.Time { return f.now }

	f.teams = NewTeamService(database, f.tournamentStore, f.teamStore, f.ledgerStore)
	f.teams.Clock = clock
	f.brackets = NewBracketService(database, f.tournamentStore, f.teamStore)
	f.brackets.Clock = clock
	f.brackets.Shuffle = inOrder
	f.advancement = NewAdvancement(database, f.tournamentStore)
	f.advancement.Clock = clock
	f.matches = NewMatchService(database, f.tournamentStore, f.teamStore, f.ledgerStore, f.ledgerStore, f.advancement)
	f.matches.Clock = clock
	f.tournaments = NewTournamentService(database, f.tournamentStore, f.teamStore, f.ledgerStore, f.brackets, config.DefaultTournamentDefaults())
	f.tournaments.Clock = clock

	f.event = ledger.Event{ID: uuid.New(), Name: "Spring Keg Party", CreatedAt: f.now}
	require.NoError(t, f.ledgerStore.CreateEvent(f.ctx, &f.event))

	for i := 0; i < 2*bracket.TeamCount+2; i++ {
		f.players = append(f.players, f.addPlayer(t, f.event.ID, fmt.Sprintf("Player %d", i+1)))
	}
	return f
}

func (f *fixture) advanceClock(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addPlayer(t *testing.T, eventID uuid.UUID, name string) ledger.Player {
	t.Helper()
	p := ledger.Player{ID: uuid.New(), EventID: eventID, Name: name, CreatedAt: f.now}
	require.NoError(t, f.ledgerStore.CreatePlayer(f.ctx, &p))
	return p
}

func (f *fixture) createTournament(t *testing.T, input TournamentInput) *bracket.Tournament {
	t.Helper()
	if input.Name == "" {
		input.Name = "Beer Pong Cup"
	}
	tournament, err := f.tournaments.CreateTournament(f.ctx, f.event.ID, input)
	require.NoError(t, err)
	return tournament
}

// bindTeams binds n teams built from consecutive fixture players
func (f *fixture) bindTeams(t *testing.T, tournamentID uuid.UUID, n int) []bracket.Team {
	t.Helper()
	var teams []bracket.Team
	for i := 0; i < n; i++ {
		team, err := f.teams.CreateTeam(f.ctx, tournamentID, fmt.Sprintf("Team %d", i+1), f.players[2*i].ID, f.players[2*i+1].ID)
		require.NoError(t, err)
		teams = append(teams, *team)
		// keeps created_at ordering stable
		f.advanceClock(time.Second)
	}
	return teams
}

// startedTournament returns an active tournament with its four quarterfinals
func (f *fixture) startedTournament(t *testing.T, input TournamentInput) (*bracket.Tournament, []bracket.Team, []bracket.Match) {
	t.Helper()
	tournament := f.createTournament(t, input)
	teams := f.bindTeams(t, tournament.ID, bracket.TeamCount)

	tournament, err := f.tournaments.StartTournament(f.ctx, tournament.ID)
	require.NoError(t, err)

	matches, err := f.tournamentStore.GetMatches(f.ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 4)
	return tournament, teams, matches
}

// play starts and completes a match, with team A winning
func (f *fixture) play(t *testing.T, match bracket.Match) *MatchCompletion {
	t.Helper()
	_, err := f.matches.StartMatch(f.ctx, match.ID, "referee")
	require.NoError(t, err)
	f.advanceClock(2 * time.Minute)
	completion, err := f.matches.CompleteMatch(f.ctx, match.ID, match.TeamAID)
	require.NoError(t, err)
	return completion
}

func (f *fixture) beerCount(t *testing.T, playerID uuid.UUID) int {
	t.Helper()
	player, err := f.ledgerStore.GetPlayer(f.ctx, playerID)
	require.NoError(t, err)
	return player.BeerCount
}

func (f *fixture) matchPlayers(t *testing.T, match bracket.Match) []uuid.UUID {
	t.Helper()
	teams, err := f.teamStore.GetTeams(f.ctx, match.TournamentID)
	require.NoError(t, err)
	var players []uuid.UUID
	for _, team := range teams {
		if match.HasTeam(team.ID) {
			players = append(players, team.Player1ID, team.Player2ID)
		}
	}
	require.Len(t, players, 4)
	return players
}

func (f *fixture) countConsumptions(t *testing.T, activeOnly bool) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM consumptions"
	if activeOnly {
		query += " WHERE deleted_at IS NULL"
	}
	var count int
	require.NoError(t, f.db.Get(&count, query))
	return count
}

func (f *fixture) reloadMatch(t *testing.T, matchID uuid.UUID) bracket.Match {
	t.Helper()
	match, err := f.tournamentStore.GetMatch(f.ctx, matchID)
	require.NoError(t, err)
	return *match
}

func (f *fixture) countMatches(t *testing.T, tournamentID uuid.UUID) int {
	t.Helper()
	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ?", tournamentID))
	return count
}
