package main

import (
	"net/http"

	"github.com/AdamBeresnev/beer-pong/internal/httputil"
	"github.com/AdamBeresnev/beer-pong/internal/middleware"
	"github.com/AdamBeresnev/beer-pong/internal/service"
	"github.com/AdamBeresnev/beer-pong/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type application struct {
	teams       *service.TeamService
	tournaments *service.TournamentService
	matches     *service.MatchService
	brackets    *service.BracketGeneration
	advancement *service.Advancement
	ledger      *store.LedgerStore
}

func (app *application) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.OperatorHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Operator)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Post("/team-definitions", app.createTeamDefinition)
		r.Get("/team-definitions", app.listTeamDefinitions)
		r.Post("/tournaments", app.createTournament)
		r.Get("/tournaments", app.listTournaments)
	})

	r.Route("/tournaments/{id}", func(r chi.Router) {
		r.Get("/", app.getTournament)
		r.Get("/teams", app.listTeams)
		r.Post("/teams", app.bindTeam)
		r.Delete("/teams/{teamID}", app.removeTeam)
		r.Post("/start", app.startTournament)
		r.Post("/bracket", app.initializeBracket)
		r.Post("/advance", app.advance)
		r.Post("/complete", app.completeTournament)
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", app.getMatch)
		r.Get("/credits", app.listCredits)
		r.Post("/start", app.startMatch)
		r.Post("/complete", app.completeMatch)
		r.Post("/undo", app.undoMatchStart)
	})

	r.Get("/team-definitions/{id}", app.getTeamDefinition)

	r.Route("/players/{id}", func(r chi.Router) {
		r.Get("/consumptions", app.listConsumptions)
		r.Post("/recount", app.recountPlayer)
	})

	return r
}

// uuidParam parses a chi URL parameter, answering 400 itself when it is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, r, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		httputil.InternalServerError(w, r, "Failed to write response", err)
	}
}
