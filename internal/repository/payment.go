package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrPaymentNotFound = errors.New("payment not found")

const pendingPaymentsKey = "payments:pending"

// Payment tracks one deposit initiated through the external gateway
// until it resolves.
type Payment struct {
	TransactionID string `json:"transaction_id"`
	PlayerID      string `json:"player_id"`
	Amount        int64  `json:"amount"`
	Link          string `json:"link"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"created_at"`
}

type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, transactionID string) (*Payment, error)
	PendingIDs(ctx context.Context) ([]string, error)
	MarkResolved(ctx context.Context, transactionID string) error
}

type dbPayment struct {
	client *redis.Client
}

func NewPaymentRepository(client *redis.Client) PaymentRepository {
	return &dbPayment{
		client: client,
	}
}

func (that *dbPayment) Save(ctx context.Context, payment *Payment) error {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	paymentKey := "payment:" + payment.TransactionID
	if err = that.client.Set(ctx, paymentKey, paymentJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set payment: %w", err)
	}

	if err = that.client.SAdd(ctx, pendingPaymentsKey, payment.TransactionID).Err(); err != nil {
		return fmt.Errorf("failed to track pending payment: %w", err)
	}

	return nil
}

func (that *dbPayment) GetByID(ctx context.Context, transactionID string) (*Payment, error) {
	paymentKey := "payment:" + transactionID

	response, err := that.client.Get(ctx, paymentKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrPaymentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get payment by ID: %w", err)
	}

	var payment Payment
	if err = json.Unmarshal([]byte(response), &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	return &payment, nil
}

func (that *dbPayment) PendingIDs(ctx context.Context) ([]string, error) {
	ids, err := that.client.SMembers(ctx, pendingPaymentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}

	return ids, nil
}

func (that *dbPayment) MarkResolved(ctx context.Context, transactionID string) error {
	if err := that.client.SRem(ctx, pendingPaymentsKey, transactionID).Err(); err != nil {
		return fmt.Errorf("failed to untrack pending payment: %w", err)
	}

	return nil
}
