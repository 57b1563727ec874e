package websocket

import (
	"encoding/json"

	"github.com/stakearena/arena-backend/internal/entity"
)

// Message is the wire envelope for both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> server actions.
const (
	actionJoinGame        = "join_game"
	actionLeaveQueue      = "leave_queue"
	actionGameAction      = "game_action"
	actionRejoinGame      = "rejoin_game"
	actionRequestFullSync = "request_full_sync"
)

// Server -> client actions.
const (
	actionMatchFound           = "match_found"
	actionGameUpdate           = "game_update"
	actionFullStateSync        = "full_state_sync"
	actionGameOver             = "game_over"
	actionRejoinFailed         = "rejoin_failed"
	actionOpponentDisconnected = "opponent_disconnected"
	actionOpponentReconnected  = "opponent_reconnected"
	actionSessionClosed        = "session_closed"
)

// Game action types carried inside game_action payloads.
const (
	gameActionMove           = "MOVE"
	gameActionForfeit        = "FORFEIT"
	gameActionRematchRequest = "REMATCH_REQUEST"
	gameActionRematchDecline = "REMATCH_DECLINE"
)

type GameAction struct {
	Type string `json:"type"`
	Cell *int   `json:"cell,omitempty"`
}

type Payload struct {
	Player        *entity.Player      `json:"player,omitempty"`
	RoomID        string              `json:"room_id,omitempty"`
	GameType      string              `json:"game_type,omitempty"`
	Stake         int64               `json:"stake,omitempty"`
	PrivateRoomID string              `json:"private_room_id,omitempty"`
	VsBot         bool                `json:"vs_bot,omitempty"`
	BotDifficulty string              `json:"bot_difficulty,omitempty"`
	Action        *GameAction         `json:"game_action,omitempty"`
	Session       *entity.Session     `json:"session,omitempty"`
	Update        *entity.StateUpdate `json:"update,omitempty"`
	Result        *entity.GameResult  `json:"result,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	Error         string              `json:"error,omitempty"`
}
