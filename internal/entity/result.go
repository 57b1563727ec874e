package entity

const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeQuit = "quit"
)

// GameResult is terminal and immutable: it is created exactly once per
// session and is the sole trigger for ledger settlement.
type GameResult struct {
	// WinnerID is empty when the session ended without a winner
	// (draw streak exhausted).
	WinnerID string `json:"winner_id,omitempty"`

	// Outcomes maps each human participant to win, loss or quit.
	Outcomes map[string]string `json:"outcomes"`

	// SettlementAmount is what the winner receives; on a no-winner
	// outcome each side gets its stake back instead.
	SettlementAmount int64 `json:"settlement_amount"`

	FinancialsRef string `json:"financials_ref,omitempty"`
}

// StateUpdate is a partial authoritative update of a session's game
// state. Nil fields mean "unchanged"; Seq always reflects the state the
// update was produced from.
type StateUpdate struct {
	Board         *[9]string `json:"board,omitempty"`
	Turn          *string    `json:"player_turn,omitempty"`
	Winner        *string    `json:"winner,omitempty"`
	Status        *string    `json:"status,omitempty"`
	StartingMark  *string    `json:"starting_mark,omitempty"`
	DrawStreak    *int       `json:"draw_streak,omitempty"`
	TurnStartedAt *int64     `json:"turn_started_at,omitempty"`
	Seq           int64      `json:"seq"`
}

// UpdateFrom builds a full-field StateUpdate snapshot of the game. The
// transport may thin it out, but sending every field keeps a lost
// earlier update from leaving stale cells behind.
func UpdateFrom(game *Game) *StateUpdate {
	board := game.Board
	turn := game.Turn
	winner := game.Winner
	status := game.Status
	starting := game.StartingMark
	streak := game.DrawStreak
	startedAt := game.TurnStartedAt

	return &StateUpdate{
		Board:         &board,
		Turn:          &turn,
		Winner:        &winner,
		Status:        &status,
		StartingMark:  &starting,
		DrawStreak:    &streak,
		TurnStartedAt: &startedAt,
		Seq:           game.Seq,
	}
}
