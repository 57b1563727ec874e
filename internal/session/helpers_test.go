package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/service"
)

// fakeSink records every outbound event so tests can assert on what
// each participant was told. Timer callbacks deliver events off the
// test goroutine, hence the lock.
type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	kind     string
	playerID string
	roomID   string
	session  *entity.Session
	update   *entity.StateUpdate
	result   *entity.GameResult
}

func newFakeSink() *fakeSink {
	return &fakeSink{}
}

func (that *fakeSink) record(event sinkEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
}

func (that *fakeSink) MatchFound(playerID string, session *entity.Session) {
	that.record(sinkEvent{kind: "match_found", playerID: playerID, roomID: session.RoomID, session: session})
}

func (that *fakeSink) GameUpdate(playerID, roomID string, update *entity.StateUpdate) {
	that.record(sinkEvent{kind: "game_update", playerID: playerID, roomID: roomID, update: update})
}

func (that *fakeSink) FullState(playerID string, session *entity.Session) {
	that.record(sinkEvent{kind: "full_state_sync", playerID: playerID, roomID: session.RoomID, session: session})
}

func (that *fakeSink) GameOver(playerID string, session *entity.Session, result *entity.GameResult) {
	that.record(sinkEvent{kind: "game_over", playerID: playerID, roomID: session.RoomID, session: session, result: result})
}

func (that *fakeSink) OpponentDisconnected(playerID, roomID string) {
	that.record(sinkEvent{kind: "opponent_disconnected", playerID: playerID, roomID: roomID})
}

func (that *fakeSink) OpponentReconnected(playerID, roomID string) {
	that.record(sinkEvent{kind: "opponent_reconnected", playerID: playerID, roomID: roomID})
}

func (that *fakeSink) SessionClosed(playerID, roomID string) {
	that.record(sinkEvent{kind: "session_closed", playerID: playerID, roomID: roomID})
}

func (that *fakeSink) eventsOf(kind string) []sinkEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	var matched []sinkEvent
	for _, event := range that.events {
		if event.kind == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func (that *fakeSink) countOf(kind string) int {
	return len(that.eventsOf(kind))
}

// memWallet is an in-memory stand-in for the ledger with the same
// escrow and settlement semantics as the Redis-backed service.
type memWallet struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemWallet() *memWallet {
	return &memWallet{balances: make(map[string]int64)}
}

func (that *memWallet) Balance(_ context.Context, playerID string) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.balances[playerID], nil
}

func (that *memWallet) Deposit(_ context.Context, playerID string, amount int64, _ string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.balances[playerID] += amount
	return nil
}

func (that *memWallet) RequireFunds(_ context.Context, playerID string, stake int64) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.balances[playerID] < stake {
		return fmt.Errorf("%w: balance %d, stake %d", apperror.ErrInsufficientFunds, that.balances[playerID], stake)
	}
	return nil
}

func (that *memWallet) Escrow(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}
		if that.balances[player.ID] < session.Stake {
			return fmt.Errorf("%w: balance %d, stake %d", apperror.ErrInsufficientFunds, that.balances[player.ID], session.Stake)
		}
	}

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}
		that.balances[player.ID] -= session.Stake
	}

	return nil
}

func (that *memWallet) Settle(_ context.Context, session *entity.Session, result *entity.GameResult) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if result.WinnerID == "" {
		for _, player := range session.Players {
			if player.IsBot() {
				continue
			}
			that.balances[player.ID] += session.Stake
		}
		return "mem-ref", nil
	}

	winner := session.PlayerByID(result.WinnerID)
	if winner != nil && !winner.IsBot() {
		that.balances[winner.ID] += result.SettlementAmount
	}

	return "mem-ref", nil
}

func (that *memWallet) balanceOf(playerID string) int64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.balances[playerID]
}

func (that *memWallet) fund(playerID string, amount int64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.balances[playerID] = amount
}

// memPlayers keeps player profiles in a map.
type memPlayers struct {
	mu      sync.Mutex
	players map[string]entity.Player
}

func newMemPlayers() *memPlayers {
	return &memPlayers{players: make(map[string]entity.Player)}
}

func (that *memPlayers) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.players[player.ID] = *player
	return nil
}

func (that *memPlayers) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return &entity.Player{}, fmt.Errorf("player %s not found", id)
	}
	return &player, nil
}

// memStore keeps persisted sessions in a map.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.Session
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*entity.Session)}
}

func (that *memStore) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[session.RoomID] = session
	return nil
}

func (that *memStore) DeleteByID(_ context.Context, roomID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, roomID)
	return nil
}

func (that *memStore) has(roomID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.sessions[roomID]
	return ok
}

type testEnv struct {
	manager *Manager
	sink    *fakeSink
	wallet  *memWallet
	store   *memStore
}

type envOptions struct {
	turnTimeout   time.Duration
	graceWindow   time.Duration
	rematchWindow time.Duration
}

func defaultEnvOptions() envOptions {
	// Generous deadlines so timers never fire unless a test wants them to.
	return envOptions{
		turnTimeout:   time.Minute,
		graceWindow:   time.Minute,
		rematchWindow: time.Minute,
	}
}

func newTestEnv(opts envOptions) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := newFakeSink()
	wallet := newMemWallet()
	store := newMemStore()

	manager := NewManager(
		logger,
		opts.turnTimeout, opts.graceWindow, opts.rematchWindow,
		wallet,
		service.NewBotService(),
		newMemPlayers(),
		store,
	)
	manager.SetSink(sink)

	return &testEnv{
		manager: manager,
		sink:    sink,
		wallet:  wallet,
		store:   store,
	}
}
