package reconcile

import (
	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
)

// Replica is the client-held copy of a session's game state. It merges
// authoritative partial updates in arrival order and flags divergence
// when merging is no longer safe, at which point the client must ask
// for a full snapshot instead of guessing.
type Replica struct {
	state    entity.Game
	seq      int64
	diverged bool
}

func NewReplica() *Replica {
	return &Replica{state: *entity.NewGame()}
}

// State returns a copy of the replica's current game state.
func (that *Replica) State() entity.Game {
	return that.state
}

func (that *Replica) Seq() int64 {
	return that.seq
}

// Diverged reports whether the replica needs a full resync before any
// further incremental merge is trusted.
func (that *Replica) Diverged() bool {
	return that.diverged
}

// MarkDiverged records a locally detected divergence, e.g. the server
// rejected a move the local engine accepted.
func (that *Replica) MarkDiverged() {
	that.diverged = true
}

// Apply merges a partial update. Fields present in the update overwrite
// the local copy; absent fields are preserved, so a thin update cannot
// erase state a previous update already set. Applying the same update
// twice is a no-op.
//
// A sequence gap means at least one update was lost; merging past a gap
// is unsafe, so the replica is flagged and ErrDivergenceDetected
// returned.
func (that *Replica) Apply(update *entity.StateUpdate) error {
	if that.diverged {
		return apperror.ErrDivergenceDetected
	}

	if update.Seq <= that.seq {
		// Stale or duplicate delivery; already reflected locally.
		return nil
	}

	if update.Seq > that.seq+1 {
		that.diverged = true
		return apperror.ErrDivergenceDetected
	}

	if update.Board != nil {
		that.state.Board = *update.Board
	}
	if update.Turn != nil {
		that.state.Turn = *update.Turn
	}
	if update.Winner != nil {
		that.state.Winner = *update.Winner
	}
	if update.Status != nil {
		that.state.Status = *update.Status
	}
	if update.StartingMark != nil {
		that.state.StartingMark = *update.StartingMark
	}
	if update.DrawStreak != nil {
		that.state.DrawStreak = *update.DrawStreak
	}
	if update.TurnStartedAt != nil {
		that.state.TurnStartedAt = *update.TurnStartedAt
	}

	that.seq = update.Seq
	that.state.Seq = update.Seq

	return nil
}

// Replace installs a full authoritative snapshot unconditionally and
// clears the divergence flag.
func (that *Replica) Replace(game *entity.Game) {
	that.state = *game
	that.seq = game.Seq
	that.diverged = false
}
