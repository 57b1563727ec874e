package entity

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

// MaxDrawStreak bounds the draw tie-break: after this many consecutive
// draws the game ends without a winner instead of resetting again.
const MaxDrawStreak = 3

// Game is the engine-opaque state of one tic-tac-toe board inside a
// session. Every accepted mutation bumps Seq, so clients can order
// partial updates and detect gaps.
type Game struct {
	Board         [9]string `json:"board"`
	Turn          string    `json:"player_turn"`
	Winner        string    `json:"winner,omitempty"`
	Status        string    `json:"status"`
	StartingMark  string    `json:"starting_mark"`
	DrawStreak    int       `json:"draw_streak"`
	Seq           int64     `json:"seq"`
	TurnStartedAt int64     `json:"turn_started_at"`
}

func NewGame() *Game {
	return &Game{
		Board:        [9]string{EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell},
		Turn:         PlayerX,
		StartingMark: PlayerX,
		Status:       StatusWaiting,
	}
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

// OpponentMark returns the mark playing against the given one.
func OpponentMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
