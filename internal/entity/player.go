package entity

// BotID is the sentinel participant identity used when the opponent is
// a bot. A session containing it never waits for a second connection.
const BotID = "bot"

const (
	BotEasy   = "easy"
	BotMedium = "medium"
	BotHard   = "hard"
)

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Mark       string `json:"mark,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

func NewBotPlayer(roomID, difficulty string) *Player {
	if difficulty == "" {
		difficulty = BotEasy
	}

	return &Player{
		ID:         BotID,
		RoomID:     roomID,
		Difficulty: difficulty,
	}
}

func (that *Player) IsBot() bool {
	return that.ID == BotID
}
