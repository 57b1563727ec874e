package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
	"github.com/stakearena/arena-backend/internal/pkg"
	"github.com/stakearena/arena-backend/internal/repository"
)

const (
	txReasonDeposit = "deposit"
	txReasonEscrow  = "escrow"
	txReasonPayout  = "payout"
	txReasonRefund  = "refund"
)

// WalletService is the ledger collaborator: the session core only reads
// balances, escrows stakes and settles a GameResult. Bot participants
// hold no wallet; the house bankrolls their side.
type WalletService interface {
	Balance(ctx context.Context, playerID string) (int64, error)
	Deposit(ctx context.Context, playerID string, amount int64, ref string) error
	RequireFunds(ctx context.Context, playerID string, stake int64) error
	Escrow(ctx context.Context, session *entity.Session) error
	Settle(ctx context.Context, session *entity.Session, result *entity.GameResult) (string, error)
}

type walletRepo interface {
	Balance(ctx context.Context, playerID string) (int64, error)
	AdjustBalance(ctx context.Context, playerID string, delta int64) (int64, error)
	AppendTransaction(ctx context.Context, tx *repository.Transaction) error
}

type walletService struct {
	walletRepo walletRepo
}

func NewWalletService(walletRepo walletRepo) WalletService {
	return &walletService{
		walletRepo: walletRepo,
	}
}

func (that *walletService) Balance(ctx context.Context, playerID string) (int64, error) {
	balance, err := that.walletRepo.Balance(ctx, playerID)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	return balance, nil
}

func (that *walletService) Deposit(ctx context.Context, playerID string, amount int64, ref string) error {
	if _, err := that.walletRepo.AdjustBalance(ctx, playerID, amount); err != nil {
		return fmt.Errorf("failed to credit deposit: %w", err)
	}

	tx := &repository.Transaction{
		Ref:      ref,
		PlayerID: playerID,
		Amount:   amount,
		Reason:   txReasonDeposit,
	}
	if err := that.walletRepo.AppendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}

	return nil
}

// RequireFunds short-circuits a join or rematch before any session
// state transition when the balance cannot cover the stake.
func (that *walletService) RequireFunds(ctx context.Context, playerID string, stake int64) error {
	balance, err := that.Balance(ctx, playerID)
	if err != nil {
		return err
	}

	if balance < stake {
		return fmt.Errorf("%w: balance %d, stake %d", apperror.ErrInsufficientFunds, balance, stake)
	}

	return nil
}

// Escrow debits each human participant's stake for the duration of the
// session. Funds are verified for every participant before any wallet
// is touched, so a refused escrow leaves all balances as they were.
func (that *walletService) Escrow(ctx context.Context, session *entity.Session) error {
	ref := pkg.GenerateTransactionRef()

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}

		if err := that.RequireFunds(ctx, player.ID, session.Stake); err != nil {
			return err
		}
	}

	for _, player := range session.Players {
		if player.IsBot() {
			continue
		}

		if _, err := that.walletRepo.AdjustBalance(ctx, player.ID, -session.Stake); err != nil {
			return fmt.Errorf("failed to escrow stake: %w", err)
		}

		tx := &repository.Transaction{
			Ref:      ref,
			PlayerID: player.ID,
			Amount:   -session.Stake,
			Reason:   txReasonEscrow,
			RoomID:   session.RoomID,
		}
		if err := that.walletRepo.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to record escrow: %w", err)
		}
	}

	return nil
}

// Settle releases the escrow according to the result: the winner takes
// both stakes, a no-winner outcome refunds each side its own stake.
// It returns the financials reference shared by all ledger entries.
func (that *walletService) Settle(ctx context.Context, session *entity.Session, result *entity.GameResult) (string, error) {
	ref := pkg.GenerateTransactionRef()

	if result.WinnerID == "" {
		for _, player := range session.Players {
			if player.IsBot() {
				continue
			}

			if err := that.credit(ctx, ref, player.ID, session.Stake, txReasonRefund, session.RoomID); err != nil {
				return "", err
			}
		}

		return ref, nil
	}

	winner := session.PlayerByID(result.WinnerID)
	if winner == nil || winner.IsBot() {
		return ref, nil
	}

	if err := that.credit(ctx, ref, winner.ID, result.SettlementAmount, txReasonPayout, session.RoomID); err != nil {
		return "", err
	}

	return ref, nil
}

func (that *walletService) credit(ctx context.Context, ref, playerID string, amount int64, reason, roomID string) error {
	if _, err := that.walletRepo.AdjustBalance(ctx, playerID, amount); err != nil {
		return fmt.Errorf("failed to credit settlement: %w", err)
	}

	tx := &repository.Transaction{
		Ref:      ref,
		PlayerID: playerID,
		Amount:   amount,
		Reason:   reason,
		RoomID:   roomID,
	}
	if err := that.walletRepo.AppendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}

	return nil
}
