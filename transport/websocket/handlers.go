package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/session"
)

func (that *Server) handleJoinGame(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	log := that.logger.With("method", "handleJoinGame")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil {
		log.Error("Player is missing in payload")
		return that.sendErrorResponse(conn, msg.Action, "player is required")
	}

	if payloadReq.Stake <= 0 {
		return that.sendErrorResponse(conn, msg.Action, "stake must be positive")
	}

	gameType := payloadReq.GameType
	if gameType == "" {
		gameType = entity.GameTypeTicTacToe
	}

	that.registerConnection(payloadReq.Player.ID, conn)

	req := &session.JoinRequest{
		Player:        payloadReq.Player,
		GameType:      gameType,
		Stake:         payloadReq.Stake,
		PrivateRoomID: payloadReq.PrivateRoomID,
		VsBot:         payloadReq.VsBot,
		BotDifficulty: payloadReq.BotDifficulty,
	}

	if err := that.manager.Join(ctx, req); err != nil {
		if errors.Is(err, apperror.ErrInsufficientFunds) {
			return that.sendErrorResponse(conn, msg.Action, err.Error())
		}

		log.Error("failed to join", "playerID", payloadReq.Player.ID, "error", err)
		return that.sendErrorResponse(conn, msg.Action, "failed to join game")
	}

	log.Info("player searching", "playerID", payloadReq.Player.ID, "stake", payloadReq.Stake)

	return nil
}

func (that *Server) handleLeaveQueue(_ context.Context, conn *websocket.Conn, msg *Message) error {
	log := that.logger.With("method", "handleLeaveQueue")

	playerID, ok := that.identity(conn)
	if !ok {
		return that.sendErrorResponse(conn, msg.Action, "not connected to a session")
	}

	that.manager.LeaveQueue(playerID)

	log.Info("player left queue", "playerID", playerID)

	return nil
}

func (that *Server) handleGameAction(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	log := that.logger.With("method", "handleGameAction")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	playerID, ok := that.identity(conn)
	if !ok {
		return that.sendErrorResponse(conn, msg.Action, "not connected to a session")
	}

	if payloadReq.RoomID == "" || payloadReq.Action == nil {
		return that.sendErrorResponse(conn, msg.Action, "room_id and game_action are required")
	}

	log = log.With("playerID", playerID, "roomID", payloadReq.RoomID)

	var err error
	switch payloadReq.Action.Type {
	case gameActionMove:
		if payloadReq.Action.Cell == nil {
			return that.sendErrorResponse(conn, msg.Action, "cell is required for a move")
		}
		err = that.manager.Move(payloadReq.RoomID, playerID, *payloadReq.Action.Cell)
	case gameActionForfeit:
		err = that.manager.Forfeit(payloadReq.RoomID, playerID)
	case gameActionRematchRequest:
		err = that.manager.RematchRequest(ctx, payloadReq.RoomID, playerID)
	case gameActionRematchDecline:
		err = that.manager.RematchDecline(payloadReq.RoomID, playerID)
	default:
		return that.sendErrorResponse(conn, msg.Action, "unknown game action type")
	}

	if err != nil {
		// Rejections go to the submitting client only; the session
		// state is unaffected.
		log.Info("game action rejected", "type", payloadReq.Action.Type, "error", err)
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	return nil
}

func (that *Server) handleRejoinGame(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	log := that.logger.With("method", "handleRejoinGame")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payloadReq.Player == nil || payloadReq.RoomID == "" {
		return that.sendErrorResponse(conn, msg.Action, "player and room_id are required")
	}

	that.registerConnection(payloadReq.Player.ID, conn)

	log = log.With("playerID", payloadReq.Player.ID, "roomID", payloadReq.RoomID)

	// On success the manager pushes a full snapshot through the sink;
	// the client must replace its local copy wholesale, moves may have
	// landed while it was away.
	if _, err := that.manager.Rejoin(ctx, payloadReq.RoomID, payloadReq.Player.ID); err != nil {
		log.Info("rejoin failed", "error", err)

		payload := Payload{RoomID: payloadReq.RoomID, Reason: rejoinFailureReason(err)}
		return that.sendMessage(conn, actionRejoinFailed, payload)
	}

	log.Info("player rejoined")

	return nil
}

func (that *Server) handleRequestFullSync(_ context.Context, conn *websocket.Conn, msg *Message) error {
	log := that.logger.With("method", "handleRequestFullSync")

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	playerID, ok := that.identity(conn)
	if !ok {
		return that.sendErrorResponse(conn, msg.Action, "not connected to a session")
	}

	if payloadReq.RoomID == "" {
		return that.sendErrorResponse(conn, msg.Action, "room_id is required")
	}

	snapshot, err := that.manager.FullSync(payloadReq.RoomID, playerID)
	if err != nil {
		log.Info("full sync rejected", "roomID", payloadReq.RoomID, "error", err)
		return that.sendErrorResponse(conn, msg.Action, err.Error())
	}

	that.FullState(playerID, snapshot)

	return nil
}

func rejoinFailureReason(err error) string {
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return "session not found or expired"
	}
	if errors.Is(err, apperror.ErrNotInSession) {
		return "player is not part of this session"
	}
	return "rejoin rejected"
}

func (that *Server) identity(conn *websocket.Conn) (string, bool) {
	that.connectionsMutex.RLock()
	playerID, ok := that.identities[conn]
	that.connectionsMutex.RUnlock()

	return playerID, ok
}

// --- session.Sink implementation ---

func (that *Server) MatchFound(playerID string, s *entity.Session) {
	that.sendToPlayer(playerID, actionMatchFound, Payload{
		RoomID:  s.RoomID,
		Session: s,
		Player:  s.PlayerByID(playerID),
	})
}

func (that *Server) GameUpdate(playerID, roomID string, update *entity.StateUpdate) {
	that.sendToPlayer(playerID, actionGameUpdate, Payload{
		RoomID: roomID,
		Update: update,
	})
}

func (that *Server) FullState(playerID string, s *entity.Session) {
	that.sendToPlayer(playerID, actionFullStateSync, Payload{
		RoomID:  s.RoomID,
		Session: s,
	})
}

func (that *Server) GameOver(playerID string, s *entity.Session, result *entity.GameResult) {
	that.sendToPlayer(playerID, actionGameOver, Payload{
		RoomID:  s.RoomID,
		Result:  result,
		Session: s,
	})
}

func (that *Server) OpponentDisconnected(playerID, roomID string) {
	that.sendToPlayer(playerID, actionOpponentDisconnected, Payload{RoomID: roomID})
}

func (that *Server) OpponentReconnected(playerID, roomID string) {
	that.sendToPlayer(playerID, actionOpponentReconnected, Payload{RoomID: roomID})
}

func (that *Server) SessionClosed(playerID, roomID string) {
	that.sendToPlayer(playerID, actionSessionClosed, Payload{RoomID: roomID})
}
