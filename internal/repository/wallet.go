package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrWalletNotFound = errors.New("wallet not found")

// Transaction is one append-only ledger entry. Amount is positive for
// credits and negative for debits, in the platform's stake unit.
type Transaction struct {
	Ref       string `json:"ref"`
	PlayerID  string `json:"player_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	RoomID    string `json:"room_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type WalletRepository interface {
	Balance(ctx context.Context, playerID string) (int64, error)
	SetBalance(ctx context.Context, playerID string, amount int64) error
	AdjustBalance(ctx context.Context, playerID string, delta int64) (int64, error)
	AppendTransaction(ctx context.Context, tx *Transaction) error
	Transactions(ctx context.Context, playerID string, limit int64) ([]*Transaction, error)
}

type dbWallet struct {
	client *redis.Client
}

func NewWalletRepository(client *redis.Client) WalletRepository {
	return &dbWallet{
		client: client,
	}
}

func (that *dbWallet) Balance(ctx context.Context, playerID string) (int64, error) {
	walletKey := "wallet:" + playerID

	balance, err := that.client.Get(ctx, walletKey).Int64()

	if errors.Is(err, redis.Nil) {
		return 0, ErrWalletNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

func (that *dbWallet) SetBalance(ctx context.Context, playerID string, amount int64) error {
	walletKey := "wallet:" + playerID

	if err := that.client.Set(ctx, walletKey, amount, 0).Err(); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}

	return nil
}

func (that *dbWallet) AdjustBalance(ctx context.Context, playerID string, delta int64) (int64, error) {
	walletKey := "wallet:" + playerID

	balance, err := that.client.IncrBy(ctx, walletKey, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	return balance, nil
}

func (that *dbWallet) AppendTransaction(ctx context.Context, tx *Transaction) error {
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}

	txJSON, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	txKey := "tx:" + tx.PlayerID
	if err = that.client.LPush(ctx, txKey, txJSON).Err(); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

func (that *dbWallet) Transactions(ctx context.Context, playerID string, limit int64) ([]*Transaction, error) {
	txKey := "tx:" + playerID

	entries, err := that.client.LRange(ctx, txKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transactions := make([]*Transaction, 0, len(entries))
	for _, entry := range entries {
		var tx Transaction
		if err = json.Unmarshal([]byte(entry), &tx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	return transactions, nil
}
