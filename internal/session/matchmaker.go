package session

import (
	"fmt"
	"sync"

	"github.com/stakearena/arena-backend/internal/entity"
)

// Matchmaker pairs searchers with an identical gameType and stake.
// Enqueue either returns the waiting opponent immediately or parks the
// searcher; cancellation before pairing has no financial effect since
// no stake has been escrowed yet.
type Matchmaker struct {
	mu      sync.Mutex
	waiting map[string][]*entity.Player
}

func NewMatchmaker() *Matchmaker {
	return &Matchmaker{
		waiting: make(map[string][]*entity.Player),
	}
}

func queueKey(gameType string, stake int64) string {
	return fmt.Sprintf("%s/%d", gameType, stake)
}

// Enqueue returns the matched opponent and true when a compatible
// searcher was already waiting; otherwise the player is parked.
func (that *Matchmaker) Enqueue(player *entity.Player, gameType string, stake int64) (*entity.Player, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	key := queueKey(gameType, stake)
	queue := that.waiting[key]

	for _, waiting := range queue {
		if waiting.ID == player.ID {
			// Re-joining the same queue is a no-op.
			return nil, false
		}
	}

	if len(queue) > 0 {
		opponent := queue[0]
		that.waiting[key] = queue[1:]
		return opponent, true
	}

	that.waiting[key] = append(queue, player)

	return nil, false
}

// Cancel removes the player from whatever queue holds them.
func (that *Matchmaker) Cancel(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	for key, queue := range that.waiting {
		for i, waiting := range queue {
			if waiting.ID == playerID {
				that.waiting[key] = append(queue[:i], queue[i+1:]...)
				return true
			}
		}
	}

	return false
}
