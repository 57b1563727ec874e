package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/stakearena/arena-backend/internal/bot"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/tictactoe"
)

var ErrBotNotFound = errors.New("bot player not found")

type BotService interface {
	MakeTurn(session *entity.Session, now time.Time) error
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// MakeTurn plays one move for the session's bot participant. Callers
// must hold the session's room lock: the bot is never invoked
// concurrently with a human move for the same session.
func (that *botService) MakeTurn(session *entity.Session, now time.Time) error {
	var botPlayer *entity.Player
	for _, player := range session.Players {
		if player.IsBot() {
			botPlayer = player
			break
		}
	}

	if botPlayer == nil {
		return ErrBotNotFound
	}

	cell, err := bot.ChooseMove(session.Game.Board, botPlayer.Mark, botPlayer.Difficulty)
	if err != nil {
		return fmt.Errorf("bot failed to choose move: %w", err)
	}

	if err = tictactoe.ApplyMove(session.Game, botPlayer.Mark, cell, now); err != nil {
		return fmt.Errorf("bot failed to make turn: %w", err)
	}

	return nil
}
