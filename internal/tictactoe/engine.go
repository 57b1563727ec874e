package tictactoe

import (
	"fmt"
	"time"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// TurnDuration is the fixed per-turn deadline for tic-tac-toe.
const TurnDuration = 15 * time.Second

// Start moves a waiting game into play and stamps the first turn.
func Start(game *entity.Game, now time.Time) {
	game.Status = entity.StatusOngoing
	game.Turn = game.StartingMark
	game.TurnStartedAt = now.Unix()
	game.Seq++
}

// ApplyMove validates and applies one move. It is a pure function of
// the game state and the move: server-side validation and client-side
// prediction running it over the same state agree deterministically.
//
// A draw on a full board does not finish the game until it is the
// third draw in a row: earlier draws reset the board and alternate the
// starting mark.
func ApplyMove(game *entity.Game, playerMark string, cell int, now time.Time) error {
	if game.IsFinished() {
		return apperror.ErrGameFinished
	}

	if game.IsWaiting() {
		return apperror.ErrGameIsNotStarted
	}

	if err := validateMove(game, playerMark, cell); err != nil {
		return fmt.Errorf("invalid turn: %w", err)
	}

	game.Board[cell] = playerMark
	game.Seq++

	updateGameStatus(game, playerMark, now)

	return nil
}

// Winner reports the mark holding a completed triple, PlayerTie for a
// full board with no triple, or "" while the game is still open.
func Winner(board [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range board {
		if cell == entity.EmptyCell {
			return ""
		}
	}

	return entity.PlayerTie
}

// validateMove - checks if the move is valid.
func validateMove(game *entity.Game, playerMark string, cell int) error {
	if cell < 0 || cell >= len(game.Board) {
		return apperror.ErrInvalidCell
	}

	if game.Turn != playerMark {
		return apperror.ErrNotYourTurn
	}

	if game.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// updateGameStatus - checks the game status after a move.
func updateGameStatus(game *entity.Game, playerMark string, now time.Time) {
	switch winner := Winner(game.Board); winner {
	case entity.PlayerX, entity.PlayerO:
		game.Winner = winner
		game.Status = entity.StatusFinished
		game.Turn = ""
	case entity.PlayerTie:
		game.DrawStreak++
		if game.DrawStreak >= entity.MaxDrawStreak {
			game.Winner = entity.PlayerTie
			game.Status = entity.StatusFinished
			game.Turn = ""
			return
		}
		resetForNextRound(game, now)
	default:
		game.Turn = entity.OpponentMark(playerMark)
		game.TurnStartedAt = now.Unix()
	}
}

// resetForNextRound clears the board after a non-final draw and hands
// the opening move to the other side.
func resetForNextRound(game *entity.Game, now time.Time) {
	for i := range game.Board {
		game.Board[i] = entity.EmptyCell
	}

	game.StartingMark = entity.OpponentMark(game.StartingMark)
	game.Turn = game.StartingMark
	game.TurnStartedAt = now.Unix()
}
