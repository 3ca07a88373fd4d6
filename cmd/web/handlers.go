package main

import (
	"net/http"
	"slices"

	"github.com/AdamBeresnev/beer-pong/internal/httputil"
	"github.com/AdamBeresnev/beer-pong/internal/ledger"
	"github.com/AdamBeresnev/beer-pong/internal/middleware"
	"github.com/AdamBeresnev/beer-pong/internal/service"
	"github.com/google/uuid"
)

type teamDefinitionRequest struct {
	Name      string    `json:"name"`
	Player1ID uuid.UUID `json:"player_1_id"`
	Player2ID uuid.UUID `json:"player_2_id"`
}

type completeMatchRequest struct {
	WinnerTeamID uuid.UUID `json:"winner_team_id"`
}

type matchCompletionResponse struct {
	*service.MatchCompletion
	AdvanceError string `json:"advance_error,omitempty"`
}

func (app *application) createTeamDefinition(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	var req teamDefinitionRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, err.Error(), nil)
		return
	}

	def, err := app.teams.CreateTeamDefinition(r.Context(), eventID, req.Name, req.Player1ID, req.Player2ID)
	if err != nil {
		httputil.Error(w, r, "Failed to create team definition", err)
		return
	}
	respond(w, r, http.StatusCreated, def)
}

func (app *application) listTeamDefinitions(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	defs, err := app.teams.ListTeamDefinitions(r.Context(), eventID)
	if err != nil {
		httputil.Error(w, r, "Failed to list team definitions", err)
		return
	}
	respond(w, r, http.StatusOK, defs)
}

func (app *application) getTeamDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	def, err := app.teams.GetTeamDefinition(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to get team definition", err)
		return
	}
	respond(w, r, http.StatusOK, def)
}

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	var input service.TournamentInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.BadRequest(w, r, err.Error(), nil)
		return
	}

	tournament, err := app.tournaments.CreateTournament(r.Context(), eventID, input)
	if err != nil {
		httputil.Error(w, r, "Failed to create tournament", err)
		return
	}
	respond(w, r, http.StatusCreated, tournament)
}

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidParam(w, r, "eventID")
	if !ok {
		return
	}
	tournaments, err := app.tournaments.GetTournamentsForEvent(r.Context(), eventID)
	if err != nil {
		httputil.Error(w, r, "Failed to list tournaments", err)
		return
	}
	respond(w, r, http.StatusOK, tournaments)
}

func (app *application) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := app.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to get tournament", err)
		return
	}
	respond(w, r, http.StatusOK, data)
}

func (app *application) listTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teams, err := app.teams.ListTeams(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to list teams", err)
		return
	}
	respond(w, r, http.StatusOK, teams)
}

func (app *application) bindTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var input service.TeamInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.BadRequest(w, r, err.Error(), nil)
		return
	}

	team, err := app.teams.BindTeam(r.Context(), id, input)
	if err != nil {
		httputil.Error(w, r, "Failed to bind team", err)
		return
	}
	respond(w, r, http.StatusCreated, team)
}

func (app *application) removeTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := uuidParam(w, r, "teamID")
	if !ok {
		return
	}
	if err := app.teams.RemoveTeam(r.Context(), id, teamID); err != nil {
		httputil.Error(w, r, "Failed to remove team", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) startTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := app.tournaments.StartTournament(r.Context(), id); err != nil {
		httputil.Error(w, r, "Failed to start tournament", err)
		return
	}
	app.getTournament(w, r)
}

func (app *application) initializeBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	matches, err := app.brackets.InitializeBracket(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to initialize bracket", err)
		return
	}
	respond(w, r, http.StatusCreated, matches)
}

func (app *application) advance(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	created, err := app.advancement.TryAdvance(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to advance tournament", err)
		return
	}
	respond(w, r, http.StatusOK, created)
}

func (app *application) completeTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	tournament, err := app.tournaments.CompleteTournament(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to complete tournament", err)
		return
	}
	respond(w, r, http.StatusOK, tournament)
}

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	match, err := app.matches.GetMatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to get match", err)
		return
	}
	respond(w, r, http.StatusOK, match)
}

func (app *application) listCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	links, err := app.matches.ListCredits(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to list match credits", err)
		return
	}
	respond(w, r, http.StatusOK, links)
}

func (app *application) startMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	operatorID, _ := middleware.GetOperatorIDFromContext(r.Context())

	match, err := app.matches.StartMatch(r.Context(), id, operatorID)
	if err != nil {
		httputil.Error(w, r, "Failed to start match", err)
		return
	}
	respond(w, r, http.StatusOK, match)
}

func (app *application) completeMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req completeMatchRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, err.Error(), nil)
		return
	}

	completion, err := app.matches.CompleteMatch(r.Context(), id, req.WinnerTeamID)
	if err != nil {
		httputil.Error(w, r, "Failed to complete match", err)
		return
	}
	resp := matchCompletionResponse{MatchCompletion: completion}
	if completion.AdvanceErr != nil {
		resp.AdvanceError = completion.AdvanceErr.Error()
	}
	respond(w, r, http.StatusOK, resp)
}

func (app *application) undoMatchStart(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := app.matches.UndoMatchStart(r.Context(), id); err != nil {
		httputil.Error(w, r, "Failed to undo match start", err)
		return
	}
	app.getMatch(w, r)
}

// listConsumptions returns the player's records, oldest first. Removed records
// are left out unless include_removed=true.
func (app *application) listConsumptions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := app.ledger.GetPlayer(r.Context(), id); err != nil {
		httputil.Error(w, r, "Failed to list consumptions", err)
		return
	}
	consumptions, err := app.ledger.GetConsumptions(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to list consumptions", err)
		return
	}
	if r.URL.Query().Get("include_removed") != "true" {
		consumptions = slices.DeleteFunc(consumptions, func(c ledger.Consumption) bool {
			return c.IsRemoved()
		})
	}
	respond(w, r, http.StatusOK, consumptions)
}

func (app *application) recountPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	player, err := app.ledger.RecountPlayer(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, "Failed to recount player", err)
		return
	}
	respond(w, r, http.StatusOK, player)
}
