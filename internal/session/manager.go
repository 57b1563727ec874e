package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/pkg"
	"github.com/stakearena/arena-backend/internal/service"
)

// JoinRequest carries everything a join_game message declares.
type JoinRequest struct {
	Player        *entity.Player
	GameType      string
	Stake         int64
	PrivateRoomID string
	VsBot         bool
	BotDifficulty string
}

type sessionStore interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	DeleteByID(ctx context.Context, roomID string) error
}

// Manager owns every live room and the matchmaking queue. Rooms are
// independent units of concurrency; the manager's own lock only guards
// the registry.
type Manager struct {
	logger *slog.Logger

	turnTimeout   time.Duration
	graceWindow   time.Duration
	rematchWindow time.Duration

	wallet  service.WalletService
	bots    service.BotService
	players service.PlayerService
	store   sessionStore

	sink Sink

	matchmaker *Matchmaker

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewManager(
	logger *slog.Logger,
	turnTimeout, graceWindow, rematchWindow time.Duration,
	wallet service.WalletService,
	bots service.BotService,
	players service.PlayerService,
	store sessionStore,
) *Manager {
	return &Manager{
		logger:        logger.With("component", "session-manager"),
		turnTimeout:   turnTimeout,
		graceWindow:   graceWindow,
		rematchWindow: rematchWindow,
		wallet:        wallet,
		bots:          bots,
		players:       players,
		store:         store,
		matchmaker:    NewMatchmaker(),
		rooms:         make(map[string]*Room),
	}
}

// SetSink wires the outbound event target; must be called before any
// session is created.
func (that *Manager) SetSink(sink Sink) {
	that.sink = sink
}

// Join validates funds and either pairs the searcher, joins a private
// room, or spins up a bot opponent. Insufficient funds short-circuit
// before any state transition.
func (that *Manager) Join(ctx context.Context, req *JoinRequest) error {
	if err := that.wallet.RequireFunds(ctx, req.Player.ID, req.Stake); err != nil {
		return err
	}

	if err := that.players.CreateOrUpdate(ctx, req.Player); err != nil {
		return fmt.Errorf("failed to save player profile: %w", err)
	}

	switch {
	case req.VsBot:
		return that.createBotSession(ctx, req)
	case req.PrivateRoomID != "":
		return that.joinPrivateRoom(ctx, req)
	default:
		return that.joinPublicQueue(ctx, req)
	}
}

func (that *Manager) joinPublicQueue(ctx context.Context, req *JoinRequest) error {
	opponent, paired := that.matchmaker.Enqueue(req.Player, req.GameType, req.Stake)
	if !paired {
		that.logger.Info("player enqueued", "playerID", req.Player.ID, "gameType", req.GameType, "stake", req.Stake)
		return nil
	}

	// Funds were checked when each side entered the queue; the escrow
	// below is the authoritative re-check at pairing time.
	return that.createSession(ctx, pkg.GenerateRoomID(), req.GameType, req.Stake, opponent, req.Player)
}

func (that *Manager) joinPrivateRoom(ctx context.Context, req *JoinRequest) error {
	that.mu.Lock()
	room, ok := that.rooms[req.PrivateRoomID]
	that.mu.Unlock()

	if !ok {
		// First arrival creates the challenge room and waits.
		session := entity.NewSession(req.PrivateRoomID, req.GameType, req.Stake)
		session.Players = []*entity.Player{req.Player}

		if err := that.store.CreateOrUpdate(ctx, session); err != nil {
			return fmt.Errorf("failed to persist waiting session: %w", err)
		}

		that.registerRoom(session)
		that.logger.Info("private room created", "roomID", req.PrivateRoomID, "playerID", req.Player.ID)

		return nil
	}

	session := room.Session()
	if session.Status != entity.SessionSearching {
		return fmt.Errorf("%w: room %s is not joinable", apperror.ErrSessionNotFound, req.PrivateRoomID)
	}
	if session.Stake != req.Stake || session.GameType != req.GameType {
		return fmt.Errorf("%w: stake or game type mismatch", apperror.ErrSessionNotFound)
	}

	creator := session.Players[0]

	return that.startRoom(ctx, room, creator, req.Player)
}

func (that *Manager) createBotSession(ctx context.Context, req *JoinRequest) error {
	roomID := pkg.GenerateRoomID()
	botPlayer := entity.NewBotPlayer(roomID, req.BotDifficulty)

	return that.createSession(ctx, roomID, req.GameType, req.Stake, req.Player, botPlayer)
}

func (that *Manager) createSession(ctx context.Context, roomID, gameType string, stake int64, first, second *entity.Player) error {
	session := entity.NewSession(roomID, gameType, stake)
	session.Players = []*entity.Player{first, second}

	room := that.registerRoom(session)

	return that.startRoom(ctx, room, first, second)
}

// startRoom escrows both stakes, assigns marks and begins play.
func (that *Manager) startRoom(ctx context.Context, room *Room, first, second *entity.Player) error {
	session := room.Session()

	if second != nil && session.PlayerByID(second.ID) == nil {
		session.Players = append(session.Players, second)
	}

	firstMark, secondMark := randomMarks()
	first.Mark = firstMark
	first.RoomID = session.RoomID
	second.Mark = secondMark
	second.RoomID = session.RoomID

	if err := that.wallet.Escrow(ctx, session); err != nil {
		that.closeRoom(session.RoomID, true)
		return err
	}

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}
		if err := that.players.CreateOrUpdate(ctx, player); err != nil {
			that.logger.Error("failed to update player", "playerID", player.ID, "error", err)
		}
	}

	room.Start()

	return nil
}

// randomMarks assigns X and O by coin flip, matching who moves first.
func randomMarks() (string, string) {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return entity.PlayerX, entity.PlayerO
	}
	return entity.PlayerO, entity.PlayerX
}

func (that *Manager) registerRoom(session *entity.Session) *Room {
	room := newRoom(that.logger, session, that.turnTimeout, that.graceWindow, that.sink, that.bots)
	room.persist = that.persistSession
	room.complete = func(s *entity.Session, result *entity.GameResult) {
		that.settle(s, result)
	}

	that.mu.Lock()
	that.rooms[session.RoomID] = room
	that.mu.Unlock()

	return room
}

// persistSession mirrors authoritative room state into storage so a
// reloaded client can locate its session. Called under the room lock.
func (that *Manager) persistSession(session *entity.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := that.store.CreateOrUpdate(ctx, session); err != nil {
		that.logger.Error("failed to persist session", "roomID", session.RoomID, "error", err)
	}
}

// settle runs ledger settlement for a finished session and notifies
// both sides. The GameResult is the sole trigger of ledger mutation.
func (that *Manager) settle(session *entity.Session, result *entity.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ref, err := that.wallet.Settle(ctx, session, result)
	if err != nil {
		that.logger.Error("failed to settle session", "roomID", session.RoomID, "error", err)
	}
	result.FinancialsRef = ref

	if err = that.store.CreateOrUpdate(ctx, session); err != nil {
		that.logger.Error("failed to persist completed session", "roomID", session.RoomID, "error", err)
	}

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}
		that.sink.GameOver(player.ID, session, result)
	}

	// Keep the room alive for the rematch window, then tear it down
	// unless a negotiation is underway.
	roomID := session.RoomID
	time.AfterFunc(that.rematchWindow, func() {
		that.expireRematchWindow(roomID)
	})
}

func (that *Manager) expireRematchWindow(roomID string) {
	that.mu.RLock()
	room, ok := that.rooms[roomID]
	that.mu.RUnlock()

	if !ok {
		return
	}

	session := room.Session()
	if !session.IsCompleted() {
		// A rematch restarted the room; leave it alone.
		return
	}

	that.closeRoom(roomID, true)
}

// closeRoom removes the room and its persisted session and tells the
// participants the session is gone.
func (that *Manager) closeRoom(roomID string, notify bool) {
	that.mu.Lock()
	room, ok := that.rooms[roomID]
	delete(that.rooms, roomID)
	that.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := that.store.DeleteByID(ctx, roomID); err != nil {
		that.logger.Error("failed to delete session", "roomID", roomID, "error", err)
	}

	session := room.Session()
	for _, player := range session.Players {
		player.RoomID = ""
		player.Mark = ""
		if player.IsBot() {
			continue
		}
		if err := that.players.CreateOrUpdate(ctx, player); err != nil {
			that.logger.Error("failed to update player", "playerID", player.ID, "error", err)
		}
		if notify {
			that.sink.SessionClosed(player.ID, roomID)
		}
	}

	that.logger.Info("room closed", "roomID", roomID)
}

// LeaveQueue cancels matchmaking before pairing, or tears down a
// not-yet-started private room. No stake has been escrowed either way.
func (that *Manager) LeaveQueue(playerID string) {
	if that.matchmaker.Cancel(playerID) {
		that.logger.Info("player left queue", "playerID", playerID)
		return
	}

	// A private room creator leaving their own waiting room.
	that.mu.RLock()
	var waitingRoomID string
	for roomID, room := range that.rooms {
		session := room.Session()
		if session.Status == entity.SessionSearching && session.PlayerByID(playerID) != nil {
			waitingRoomID = roomID
			break
		}
	}
	that.mu.RUnlock()

	if waitingRoomID != "" {
		that.closeRoom(waitingRoomID, false)
	}
}

// Move submits a move for the given room.
func (that *Manager) Move(roomID, playerID string, cell int) error {
	room, err := that.room(roomID)
	if err != nil {
		return err
	}

	return room.Submit(playerID, cell)
}

// Forfeit resolves the session against the forfeiting player.
func (that *Manager) Forfeit(roomID, playerID string) error {
	room, err := that.room(roomID)
	if err != nil {
		return err
	}

	return room.Forfeit(playerID)
}

// Rejoin resumes a session after a reconnect. The rejoined player is
// pushed a full authoritative snapshot and must discard any locally
// cached state.
func (that *Manager) Rejoin(_ context.Context, roomID, playerID string) (*entity.Session, error) {
	room, err := that.room(roomID)
	if err != nil {
		return nil, err
	}

	snapshot, err := room.Reconnect(playerID)
	if err != nil {
		return nil, err
	}

	that.sink.FullState(playerID, snapshot)

	return snapshot, nil
}

// FullSync returns the authoritative snapshot for an explicit
// request_full_sync.
func (that *Manager) FullSync(roomID, playerID string) (*entity.Session, error) {
	room, err := that.room(roomID)
	if err != nil {
		return nil, err
	}

	if room.Session().PlayerByID(playerID) == nil {
		return nil, apperror.ErrNotInSession
	}

	return room.Snapshot(), nil
}

// Disconnected reacts to a dropped connection: searchers silently leave
// the queue, active sessions start the grace window.
func (that *Manager) Disconnected(playerID string) {
	that.matchmaker.Cancel(playerID)

	that.mu.RLock()
	var room *Room
	for _, r := range that.rooms {
		if r.Session().PlayerByID(playerID) != nil {
			room = r
			break
		}
	}
	that.mu.RUnlock()

	if room != nil {
		room.Disconnect(playerID)
	}
}

// RematchRequest drives the rematch negotiation; when both sides agree
// the stakes are re-checked and a fresh game starts in the same room.
func (that *Manager) RematchRequest(ctx context.Context, roomID, playerID string) error {
	room, err := that.room(roomID)
	if err != nil {
		return err
	}

	agreed, err := room.RequestRematch(playerID)
	if err != nil {
		return err
	}

	if !agreed {
		return nil
	}

	session := room.Session()
	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}
		if err = that.wallet.RequireFunds(ctx, player.ID, session.Stake); err != nil {
			that.closeRoom(roomID, true)
			return err
		}
	}

	if err = that.wallet.Escrow(ctx, session); err != nil {
		that.closeRoom(roomID, true)
		return err
	}

	room.Restart()

	return nil
}

// RematchDecline tears the session down to idle for both sides.
func (that *Manager) RematchDecline(roomID, playerID string) error {
	room, err := that.room(roomID)
	if err != nil {
		return err
	}

	if err = room.DeclineRematch(playerID); err != nil {
		return err
	}

	that.closeRoom(roomID, true)

	return nil
}

// SweepStale is the scheduler's backstop: it closes rooms that have
// sat completed past the rematch window, e.g. when a teardown timer was
// lost across an error path.
func (that *Manager) SweepStale() {
	that.mu.RLock()
	stale := make([]string, 0)
	for roomID, room := range that.rooms {
		completedAt, completed := room.CompletedAt()
		if completed && !room.HasRematchRequest() && time.Since(completedAt) > that.rematchWindow {
			stale = append(stale, roomID)
		}
	}
	that.mu.RUnlock()

	for _, roomID := range stale {
		that.closeRoom(roomID, true)
	}
}

func (that *Manager) room(roomID string) (*Room, error) {
	that.mu.RLock()
	room, ok := that.rooms[roomID]
	that.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: room %s", apperror.ErrSessionNotFound, roomID)
	}

	return room, nil
}
