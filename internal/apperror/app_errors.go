package apperror

import "errors"

var (
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameIsNotStarted   = errors.New("game is not started")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrInvalidCell        = errors.New("invalid cell index")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInsufficientFunds  = errors.New("balance is below the stake")
	ErrDivergenceDetected = errors.New("local state diverged from authoritative state")
	ErrNotInSession       = errors.New("player is not part of the session")
	ErrRematchNotOffered  = errors.New("no rematch has been requested")
)
