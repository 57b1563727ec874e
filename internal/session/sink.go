package session

import "github.com/stakearena/arena-backend/internal/entity"

// Sink receives server-initiated session events addressed to a single
// participant. The websocket transport implements it; the session core
// never talks to a connection directly.
type Sink interface {
	MatchFound(playerID string, session *entity.Session)
	GameUpdate(playerID, roomID string, update *entity.StateUpdate)
	FullState(playerID string, session *entity.Session)
	GameOver(playerID string, session *entity.Session, result *entity.GameResult)
	OpponentDisconnected(playerID, roomID string)
	OpponentReconnected(playerID, roomID string)
	SessionClosed(playerID, roomID string)
}
