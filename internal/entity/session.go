package entity

const (
	GameTypeTicTacToe = "tictactoe"

	SessionSearching = "searching"
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Session is one pairing of two participants over a stake. The server
// is the sole writer of Game and Status; clients hold a read-mostly
// replica reconciled against game_update messages.
type Session struct {
	RoomID   string      `json:"room_id"`
	GameType string      `json:"game_type"`
	Stake    int64       `json:"stake"`
	Players  []*Player   `json:"players,omitempty"`
	Game     *Game       `json:"game"`
	Status   string      `json:"status"`
	Result   *GameResult `json:"result,omitempty"`
}

func NewSession(roomID, gameType string, stake int64) *Session {
	return &Session{
		RoomID:   roomID,
		GameType: gameType,
		Stake:    stake,
		Game:     NewGame(),
		Status:   SessionSearching,
	}
}

func (that *Session) IsCompleted() bool {
	return that.Status == SessionCompleted
}

func (that *Session) IsActive() bool {
	return that.Status == SessionActive
}

// PlayerByID returns the participant with the given identity, or nil.
func (that *Session) PlayerByID(id string) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

// PlayerByMark returns the participant holding the given mark, or nil.
func (that *Session) PlayerByMark(mark string) *Player {
	for _, player := range that.Players {
		if player.Mark == mark {
			return player
		}
	}
	return nil
}

// Opponent returns the other participant, or nil for an unknown id.
func (that *Session) Opponent(id string) *Player {
	for _, player := range that.Players {
		if player.ID != id {
			return player
		}
	}
	return nil
}

func (that *Session) IsWithBot() bool {
	return that.PlayerByID(BotID) != nil
}
