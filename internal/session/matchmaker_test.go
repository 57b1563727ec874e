package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-backend/internal/entity"
)

func TestMatchmaker_Enqueue(t *testing.T) {
	t.Run("FirstSearcherWaits", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		opponent, paired := matchmaker.Enqueue(&entity.Player{ID: "alice"}, entity.GameTypeTicTacToe, 500)

		require.False(t, paired)
		assert.Nil(t, opponent)
	})

	t.Run("MatchingStakePairs", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		_, paired := matchmaker.Enqueue(&entity.Player{ID: "alice"}, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		opponent, paired := matchmaker.Enqueue(&entity.Player{ID: "bob"}, entity.GameTypeTicTacToe, 500)

		require.True(t, paired)
		require.NotNil(t, opponent)
		assert.Equal(t, "alice", opponent.ID)
	})

	t.Run("DifferentStakeDoesNotPair", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		_, paired := matchmaker.Enqueue(&entity.Player{ID: "alice"}, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		_, paired = matchmaker.Enqueue(&entity.Player{ID: "bob"}, entity.GameTypeTicTacToe, 1000)

		assert.False(t, paired)
	})

	t.Run("DifferentGameTypeDoesNotPair", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		_, paired := matchmaker.Enqueue(&entity.Player{ID: "alice"}, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		_, paired = matchmaker.Enqueue(&entity.Player{ID: "bob"}, "othergame", 500)

		assert.False(t, paired)
	})

	t.Run("DuplicateEnqueueIsNoOp", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		alice := &entity.Player{ID: "alice"}
		_, paired := matchmaker.Enqueue(alice, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		// When: the same player joins the same queue again
		_, paired = matchmaker.Enqueue(alice, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		// Then: a real opponent still pairs against the single entry
		opponent, paired := matchmaker.Enqueue(&entity.Player{ID: "bob"}, entity.GameTypeTicTacToe, 500)
		require.True(t, paired)
		assert.Equal(t, "alice", opponent.ID)
	})
}

func TestMatchmaker_Cancel(t *testing.T) {
	t.Run("CancelRemovesSearcher", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		_, paired := matchmaker.Enqueue(&entity.Player{ID: "alice"}, entity.GameTypeTicTacToe, 500)
		require.False(t, paired)

		require.True(t, matchmaker.Cancel("alice"))

		// Then: the next searcher waits instead of pairing
		_, paired = matchmaker.Enqueue(&entity.Player{ID: "bob"}, entity.GameTypeTicTacToe, 500)
		assert.False(t, paired)
	})

	t.Run("CancelUnknownPlayer", func(t *testing.T) {
		matchmaker := NewMatchmaker()

		assert.False(t, matchmaker.Cancel("nobody"))
	})
}
