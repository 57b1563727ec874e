package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/service"
	"github.com/stakearena/arena-backend/internal/tictactoe"
)

const (
	reasonTimeout    = "turn_timeout"
	reasonForfeit    = "forfeit"
	reasonDisconnect = "disconnect_timeout"
	reasonDraws      = "draws_exhausted"
	reasonWinLine    = "line_completed"
)

// Room is the authoritative actor for one session. Every mutation of
// the session's game state goes through the room mutex, so a move and
// a timer expiry can never both resolve the same turn: whichever takes
// the lock first wins, mirroring arrival order at the server.
type Room struct {
	logger *slog.Logger

	mu      sync.Mutex
	session *entity.Session

	turnTimeout time.Duration
	graceWindow time.Duration

	sink Sink
	bots service.BotService

	// persist and complete are supplied by the manager; both are called
	// with the room lock held.
	persist  func(session *entity.Session)
	complete func(session *entity.Session, result *entity.GameResult)

	turnTimer    *time.Timer
	graceTimers  map[string]*time.Timer
	disconnected map[string]bool

	rematchRequests map[string]bool
	completedAt     time.Time
}

func newRoom(logger *slog.Logger, session *entity.Session, turnTimeout, graceWindow time.Duration, sink Sink, bots service.BotService) *Room {
	return &Room{
		logger:          logger.With("component", "room", "roomID", session.RoomID),
		session:         session,
		turnTimeout:     turnTimeout,
		graceWindow:     graceWindow,
		sink:            sink,
		bots:            bots,
		graceTimers:     make(map[string]*time.Timer),
		disconnected:    make(map[string]bool),
		rematchRequests: make(map[string]bool),
	}
}

// Start moves the session into play: stamps the first turn, arms the
// clock and, when the bot holds the opening mark, plays its move.
func (that *Room) Start() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.startLocked()
}

func (that *Room) startLocked() {
	now := time.Now()

	that.session.Status = entity.SessionActive
	tictactoe.Start(that.session.Game, now)

	if that.session.IsWithBot() {
		botPlayer := that.session.PlayerByID(entity.BotID)
		if botPlayer.Mark == that.session.Game.Turn {
			if err := that.bots.MakeTurn(that.session, now); err != nil {
				that.logger.Error("bot failed to make first turn", "error", err)
			}
		}
	}

	that.persist(that.session)

	for _, player := range that.session.Players {
		if player.IsBot() {
			continue
		}
		that.sink.MatchFound(player.ID, that.session)
	}

	that.armTurnClockLocked()
}

// Submit validates and applies a move by the given participant and, in
// bot sessions, lets the bot answer within the same critical section.
func (that *Room) Submit(playerID string, cell int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session.IsCompleted() {
		return apperror.ErrGameFinished
	}

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return apperror.ErrNotInSession
	}

	now := time.Now()
	if err := tictactoe.ApplyMove(that.session.Game, player.Mark, cell, now); err != nil {
		return fmt.Errorf("failed to make turn: %w", err)
	}

	if !that.session.Game.IsFinished() && that.session.IsWithBot() {
		// The bot's reply bumps the seq again, so the human move gets
		// its own update first; otherwise clients merging partial
		// updates would see a sequence gap on every turn.
		that.broadcastUpdateLocked()

		if err := that.bots.MakeTurn(that.session, now); err != nil {
			that.logger.Error("bot failed to make turn", "error", err)
		}
	}

	that.afterMutationLocked()

	return nil
}

// Forfeit resolves the session as a loss for the forfeiting party. It
// is always available during play and does not depend on whose turn it
// is.
func (that *Room) Forfeit(playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session.IsCompleted() {
		return apperror.ErrGameFinished
	}

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return apperror.ErrNotInSession
	}

	that.finishWithLoserLocked(player, reasonForfeit)

	return nil
}

// Disconnect marks a participant gone and starts the grace window. The
// turn clock keeps running: whichever deadline fires first settles the
// session.
func (that *Room) Disconnect(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session.IsCompleted() {
		return
	}

	player := that.session.PlayerByID(playerID)
	if player == nil || player.IsBot() {
		return
	}

	if that.disconnected[playerID] {
		return
	}
	that.disconnected[playerID] = true

	that.graceTimers[playerID] = time.AfterFunc(that.graceWindow, func() {
		that.expireGrace(playerID)
	})

	if opponent := that.session.Opponent(playerID); opponent != nil && !opponent.IsBot() {
		that.sink.OpponentDisconnected(opponent.ID, that.session.RoomID)
	}

	that.logger.Info("participant disconnected, grace window started", "playerID", playerID)
}

// Reconnect resumes a session for a participant that came back within
// the grace window and hands them a full authoritative snapshot.
func (that *Room) Reconnect(playerID string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return nil, apperror.ErrNotInSession
	}

	if timer, ok := that.graceTimers[playerID]; ok {
		timer.Stop()
		delete(that.graceTimers, playerID)
	}
	delete(that.disconnected, playerID)

	if opponent := that.session.Opponent(playerID); opponent != nil && !opponent.IsBot() {
		that.sink.OpponentReconnected(opponent.ID, that.session.RoomID)
	}

	snapshot := that.snapshotLocked()

	return snapshot, nil
}

// Snapshot returns a deep-enough copy of the session for a full sync.
func (that *Room) Snapshot() *entity.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

func (that *Room) snapshotLocked() *entity.Session {
	gameCopy := *that.session.Game
	sessionCopy := *that.session
	sessionCopy.Game = &gameCopy

	// Players are copied too; a rematch swaps marks in place and must
	// not reach into snapshots already handed out.
	sessionCopy.Players = make([]*entity.Player, len(that.session.Players))
	for i, player := range that.session.Players {
		playerCopy := *player
		sessionCopy.Players[i] = &playerCopy
	}

	return &sessionCopy
}

// afterMutationLocked persists the new state, broadcasts it and either
// finishes the session or re-arms the clock.
func (that *Room) afterMutationLocked() {
	that.persist(that.session)

	if that.session.Game.IsFinished() {
		that.finishFromBoardLocked()
		return
	}

	that.broadcastUpdateLocked()

	that.armTurnClockLocked()
}

func (that *Room) broadcastUpdateLocked() {
	update := entity.UpdateFrom(that.session.Game)
	for _, player := range that.session.Players {
		if player.IsBot() {
			continue
		}
		that.sink.GameUpdate(player.ID, that.session.RoomID, update)
	}
}

// armTurnClockLocked resets the per-turn deadline. The armed seq pins
// the expiry to this exact turn: if any move lands first, seq advances
// and the stale expiry drops.
func (that *Room) armTurnClockLocked() {
	if that.turnTimer != nil {
		that.turnTimer.Stop()
	}

	armedSeq := that.session.Game.Seq
	that.turnTimer = time.AfterFunc(that.turnTimeout, func() {
		that.expireTurn(armedSeq)
	})
}

func (that *Room) expireTurn(armedSeq int64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session.IsCompleted() || that.session.Game.Seq != armedSeq {
		return
	}

	holder := that.session.PlayerByMark(that.session.Game.Turn)
	if holder == nil {
		return
	}

	that.logger.Info("turn clock expired", "playerID", holder.ID)
	that.finishWithLoserLocked(holder, reasonTimeout)
}

func (that *Room) expireGrace(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session.IsCompleted() || !that.disconnected[playerID] {
		return
	}

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return
	}

	that.logger.Info("grace window elapsed, forfeiting", "playerID", playerID)
	that.finishWithLoserLocked(player, reasonDisconnect)
}

// finishFromBoardLocked turns a terminal board into a GameResult: a
// completed line names the winner, an exhausted draw streak ends the
// session with no winner and stakes returned.
func (that *Room) finishFromBoardLocked() {
	game := that.session.Game

	if game.Winner == entity.PlayerTie {
		outcomes := make(map[string]string)
		for _, player := range that.session.Players {
			if player.IsBot() {
				continue
			}
			outcomes[player.ID] = entity.OutcomeQuit
		}

		that.finishLocked(&entity.GameResult{
			Outcomes:         outcomes,
			SettlementAmount: that.session.Stake,
		}, reasonDraws)

		return
	}

	winner := that.session.PlayerByMark(game.Winner)
	if winner == nil {
		that.logger.Error("terminal board without a matching winner", "winner", game.Winner)
		return
	}

	that.finishWithWinnerLocked(winner, reasonWinLine)
}

func (that *Room) finishWithLoserLocked(loser *entity.Player, reason string) {
	winner := that.session.Opponent(loser.ID)
	if winner == nil {
		return
	}

	outcomes := map[string]string{}
	if !loser.IsBot() {
		outcomes[loser.ID] = entity.OutcomeQuit
		if reason == reasonTimeout {
			outcomes[loser.ID] = entity.OutcomeLoss
		}
	}
	if !winner.IsBot() {
		outcomes[winner.ID] = entity.OutcomeWin
	}

	game := that.session.Game
	game.Status = entity.StatusFinished
	game.Winner = winner.Mark
	game.Turn = ""
	game.Seq++

	that.finishLocked(&entity.GameResult{
		WinnerID:         winner.ID,
		Outcomes:         outcomes,
		SettlementAmount: that.session.Stake * 2,
	}, reason)
}

func (that *Room) finishWithWinnerLocked(winner *entity.Player, reason string) {
	outcomes := make(map[string]string)
	for _, player := range that.session.Players {
		if player.IsBot() {
			continue
		}
		if player.ID == winner.ID {
			outcomes[player.ID] = entity.OutcomeWin
		} else {
			outcomes[player.ID] = entity.OutcomeLoss
		}
	}

	that.finishLocked(&entity.GameResult{
		WinnerID:         winner.ID,
		Outcomes:         outcomes,
		SettlementAmount: that.session.Stake * 2,
	}, reason)
}

// finishLocked fires exactly once: it cancels every timer, records the
// immutable result and hands settlement off to the manager.
func (that *Room) finishLocked(result *entity.GameResult, reason string) {
	if that.session.IsCompleted() {
		return
	}

	that.stopTimersLocked()

	that.session.Status = entity.SessionCompleted
	that.session.Result = result
	that.completedAt = time.Now()

	that.logger.Info("session completed", "reason", reason, "winnerID", result.WinnerID)

	that.complete(that.session, result)
}

func (that *Room) stopTimersLocked() {
	if that.turnTimer != nil {
		that.turnTimer.Stop()
		that.turnTimer = nil
	}

	for playerID, timer := range that.graceTimers {
		timer.Stop()
		delete(that.graceTimers, playerID)
	}
}

// --- rematch negotiation ---

// RequestRematch records one side's rematch request and reports whether
// both sides have now agreed.
func (that *Room) RequestRematch(playerID string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.session.IsCompleted() {
		return false, apperror.ErrGameIsNotStarted
	}

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return false, apperror.ErrNotInSession
	}

	that.rematchRequests[playerID] = true

	// A bot opponent always accepts.
	if that.session.IsWithBot() {
		return true, nil
	}

	for _, p := range that.session.Players {
		if !that.rematchRequests[p.ID] {
			return false, nil
		}
	}

	return true, nil
}

// DeclineRematch tears the negotiation down; the manager closes the
// room afterwards.
func (that *Room) DeclineRematch(playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.session.PlayerByID(playerID)
	if player == nil {
		return apperror.ErrNotInSession
	}

	if len(that.rematchRequests) == 0 {
		return apperror.ErrRematchNotOffered
	}

	that.rematchRequests = make(map[string]bool)

	return nil
}

// Restart begins a fresh game in the same room after an accepted
// rematch: new board, swapped marks, clocks re-armed.
func (that *Room) Restart() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, player := range that.session.Players {
		player.Mark = entity.OpponentMark(player.Mark)
	}

	that.session.Game = entity.NewGame()
	that.session.Result = nil
	that.rematchRequests = make(map[string]bool)
	that.completedAt = time.Time{}

	that.startLocked()
}

// Session returns the room's session for manager-side bookkeeping.
func (that *Room) Session() *entity.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.session
}

// HasRematchRequest reports whether any side has asked for a rematch.
func (that *Room) HasRematchRequest() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.rematchRequests) > 0
}

// CompletedAt reports when the session finished, if it has.
func (that *Room) CompletedAt() (time.Time, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.completedAt, !that.completedAt.IsZero()
}
