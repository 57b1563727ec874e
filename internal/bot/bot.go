package bot

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/tictactoe"
)

var (
	ErrNoAvailableMoves  = errors.New("no available moves")
	ErrUnknownDifficulty = errors.New("unknown bot difficulty")
)

const centerCell = 4

// ChooseMove picks a legal cell for the bot holding the given mark.
//
// Hard play is fully deterministic: ties among equal-scored moves are
// broken towards the lowest cell index.
func ChooseMove(board [9]string, mark, difficulty string) (int, error) {
	cells := availableCells(board)
	if len(cells) == 0 {
		return 0, ErrNoAvailableMoves
	}

	switch difficulty {
	case entity.BotEasy:
		return cells[rand.Intn(len(cells))], nil //nolint: gosec // game move, not a secret
	case entity.BotMedium:
		return mediumMove(board, mark, cells), nil
	case entity.BotHard:
		return hardMove(board, mark, cells), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownDifficulty, difficulty)
	}
}

func availableCells(board [9]string) []int {
	cells := make([]int, 0, len(board))
	for i, cell := range board {
		if cell == entity.EmptyCell {
			cells = append(cells, i)
		}
	}
	return cells
}

// mediumMove completes a winning line when possible, otherwise blocks
// the opponent's winning line, otherwise plays random.
func mediumMove(board [9]string, mark string, cells []int) int {
	if cell, ok := completingCell(board, mark); ok {
		return cell
	}

	if cell, ok := completingCell(board, entity.OpponentMark(mark)); ok {
		return cell
	}

	return cells[rand.Intn(len(cells))] //nolint: gosec // game move, not a secret
}

// completingCell finds an empty cell that would complete a triple for
// the given mark.
func completingCell(board [9]string, mark string) (int, bool) {
	for _, combo := range tictactoe.WinCombos {
		count, empty := 0, -1
		for _, idx := range combo {
			switch board[idx] {
			case mark:
				count++
			case entity.EmptyCell:
				empty = idx
			}
		}
		if count == 2 && empty >= 0 {
			return empty, true
		}
	}
	return 0, false
}

func hardMove(board [9]string, mark string, cells []int) int {
	// The center is provably optimal on an empty board; skip the search.
	if len(cells) == len(board) {
		return centerCell
	}

	bestScore := -100
	bestCell := cells[0]
	for _, cell := range cells {
		board[cell] = mark
		score := minimax(board, mark, entity.OpponentMark(mark), 1)
		board[cell] = entity.EmptyCell

		if score > bestScore {
			bestScore = score
			bestCell = cell
		}
	}

	return bestCell
}

// minimax scores the position for the bot: +(10-depth) for a bot win,
// -(10-depth) for an opponent win, 0 for a draw. toMove holds the mark
// whose ply it is.
func minimax(board [9]string, botMark, toMove string, depth int) int {
	switch tictactoe.Winner(board) {
	case botMark:
		return 10 - depth
	case entity.OpponentMark(botMark):
		return depth - 10
	case entity.PlayerTie:
		return 0
	}

	maximizing := toMove == botMark

	best := 100
	if maximizing {
		best = -100
	}

	for i, cell := range board {
		if cell != entity.EmptyCell {
			continue
		}

		board[i] = toMove
		score := minimax(board, botMark, entity.OpponentMark(toMove), depth+1)
		board[i] = entity.EmptyCell

		if maximizing && score > best {
			best = score
		}
		if !maximizing && score < best {
			best = score
		}
	}

	return best
}
