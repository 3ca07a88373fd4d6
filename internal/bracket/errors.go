package bracket

import (
	"errors"
	"fmt"
)

// Error kinds. Every error below wraps exactly one of them, so callers can
// match either the kind or the specific failure with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrTimeWindowExceeded  = errors.New("time window exceeded")
	ErrConflict            = errors.New("conflict")
)

var (
	ErrEventNotFound          = fmt.Errorf("%w: event", ErrNotFound)
	ErrPlayerNotFound         = fmt.Errorf("%w: player", ErrNotFound)
	ErrTournamentNotFound     = fmt.Errorf("%w: tournament", ErrNotFound)
	ErrTeamNotFound           = fmt.Errorf("%w: team", ErrNotFound)
	ErrTeamDefinitionNotFound = fmt.Errorf("%w: team definition", ErrNotFound)
	ErrMatchNotFound          = fmt.Errorf("%w: match", ErrNotFound)

	ErrTournamentNotDraft   = fmt.Errorf("%w: tournament is not in draft", ErrInvalidState)
	ErrTournamentNotActive  = fmt.Errorf("%w: tournament is not active", ErrInvalidState)
	ErrBracketExists        = fmt.Errorf("%w: tournament already has matches", ErrInvalidState)
	ErrMatchNotPending      = fmt.Errorf("%w: match already started or completed", ErrInvalidState)
	ErrMatchNotInProgress   = fmt.Errorf("%w: match is not in progress", ErrInvalidState)
	ErrMatchAlreadyCredited = fmt.Errorf("%w: match credits already applied", ErrInvalidState)
	ErrNothingToUndo        = fmt.Errorf("%w: match has no credits to undo", ErrInvalidState)
	ErrFinalNotDecided      = fmt.Errorf("%w: final match missing or without winner", ErrInvalidState)

	ErrDuplicateTeamName       = fmt.Errorf("%w: team name already taken", ErrConstraintViolation)
	ErrPlayerAlreadyOnTeam     = fmt.Errorf("%w: player already on a team", ErrConstraintViolation)
	ErrSamePlayerTwice         = fmt.Errorf("%w: a team needs two different players", ErrConstraintViolation)
	ErrTeamNameRequired        = fmt.Errorf("%w: team name is required", ErrConstraintViolation)
	ErrTournamentFull          = fmt.Errorf("%w: tournament already has %d teams", ErrConstraintViolation, TeamCount)
	ErrWrongTeamCount          = fmt.Errorf("%w: tournament needs exactly %d teams", ErrConstraintViolation, TeamCount)
	ErrWinnerNotInMatch        = fmt.Errorf("%w: winner is not part of this match", ErrConstraintViolation)
	ErrPlayerOutsideEvent      = fmt.Errorf("%w: player does not belong to the event", ErrConstraintViolation)
	ErrInvalidTournamentConfig = fmt.Errorf("%w: invalid tournament configuration", ErrConstraintViolation)

	ErrStartWindowExceeded = fmt.Errorf("%w: previous start attempt is too old to credit", ErrTimeWindowExceeded)
	ErrUndoWindowExceeded  = fmt.Errorf("%w: undo window has passed", ErrTimeWindowExceeded)

	ErrConcurrentStart = fmt.Errorf("%w: match was credited by a concurrent start", ErrConflict)
	ErrConcurrentUndo  = fmt.Errorf("%w: match changed during undo", ErrConflict)
)
