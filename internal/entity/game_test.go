package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	game := NewGame()

	expected := &Game{
		Board:        [9]string{"", "", "", "", "", "", "", "", ""},
		Turn:         PlayerX,
		StartingMark: PlayerX,
		Status:       StatusWaiting,
	}

	require.Equal(t, expected, game)
}

func TestOpponentMark(t *testing.T) {
	assert.Equal(t, PlayerO, OpponentMark(PlayerX))
	assert.Equal(t, PlayerX, OpponentMark(PlayerO))
}

func TestSession_Lookups(t *testing.T) {
	session := NewSession("12345678", GameTypeTicTacToe, 500)
	session.Players = []*Player{
		{ID: "alice", Mark: PlayerX},
		{ID: "bob", Mark: PlayerO},
	}

	t.Run("PlayerByID", func(t *testing.T) {
		require.NotNil(t, session.PlayerByID("alice"))
		assert.Nil(t, session.PlayerByID("mallory"))
	})

	t.Run("PlayerByMark", func(t *testing.T) {
		require.NotNil(t, session.PlayerByMark(PlayerO))
		assert.Equal(t, "bob", session.PlayerByMark(PlayerO).ID)
		assert.Nil(t, session.PlayerByMark("?"))
	})

	t.Run("Opponent", func(t *testing.T) {
		require.NotNil(t, session.Opponent("alice"))
		assert.Equal(t, "bob", session.Opponent("alice").ID)
	})

	t.Run("IsWithBot", func(t *testing.T) {
		assert.False(t, session.IsWithBot())

		session.Players = append(session.Players, NewBotPlayer(session.RoomID, BotHard))
		assert.True(t, session.IsWithBot())
	})
}

func TestUpdateFrom(t *testing.T) {
	game := NewGame()
	game.Status = StatusOngoing
	game.Board[4] = PlayerX
	game.Turn = PlayerO
	game.Seq = 2

	update := UpdateFrom(game)

	// Every field is populated so a lost earlier update cannot leave
	// stale state behind.
	require.NotNil(t, update.Board)
	require.NotNil(t, update.Turn)
	require.NotNil(t, update.Status)
	assert.Equal(t, PlayerX, (*update.Board)[4])
	assert.Equal(t, PlayerO, *update.Turn)
	assert.Equal(t, int64(2), update.Seq)

	// The update holds copies, not references into the live game.
	game.Board[4] = PlayerO
	assert.Equal(t, PlayerX, (*update.Board)[4])
}
