package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stakearena/arena-backend/internal/repository"
)

const (
	PaymentPending    = "PENDING"
	PaymentSuccessful = "SUCCESSFUL"
	PaymentFailed     = "FAILED"
	PaymentExpired    = "EXPIRED"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentGateway is the external payment collaborator: it hands out a
// redirect link with a transaction id and eventually reports a terminal
// status for it.
type PaymentGateway interface {
	Initiate(ctx context.Context, playerID string, amount int64) (link, transactionID string, err error)
	PollStatus(ctx context.Context, transactionID string) (string, error)
}

type PaymentService interface {
	InitiateDeposit(ctx context.Context, playerID string, amount int64) (*repository.Payment, error)
	Status(ctx context.Context, transactionID string) (string, error)
	PollPending(ctx context.Context) error
}

type paymentRepo interface {
	Save(ctx context.Context, payment *repository.Payment) error
	GetByID(ctx context.Context, transactionID string) (*repository.Payment, error)
	PendingIDs(ctx context.Context) ([]string, error)
	MarkResolved(ctx context.Context, transactionID string) error
}

type paymentService struct {
	logger      *slog.Logger
	gateway     PaymentGateway
	paymentRepo paymentRepo
	wallet      WalletService
}

func NewPaymentService(logger *slog.Logger, gateway PaymentGateway, paymentRepo paymentRepo, wallet WalletService) PaymentService {
	return &paymentService{
		logger:      logger,
		gateway:     gateway,
		paymentRepo: paymentRepo,
		wallet:      wallet,
	}
}

func (that *paymentService) InitiateDeposit(ctx context.Context, playerID string, amount int64) (*repository.Payment, error) {
	link, transactionID, err := that.gateway.Initiate(ctx, playerID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	payment := &repository.Payment{
		TransactionID: transactionID,
		PlayerID:      playerID,
		Amount:        amount,
		Link:          link,
		Status:        PaymentPending,
		CreatedAt:     time.Now().Unix(),
	}

	if err = that.paymentRepo.Save(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	return payment, nil
}

func (that *paymentService) Status(ctx context.Context, transactionID string) (string, error) {
	payment, err := that.paymentRepo.GetByID(ctx, transactionID)
	if err != nil {
		return "", fmt.Errorf("failed to get payment: %w", err)
	}

	return payment.Status, nil
}

// PollPending re-checks every pending deposit against the gateway and
// credits the wallet once a deposit reports success. Runs on the
// background scheduler.
func (that *paymentService) PollPending(ctx context.Context) error {
	log := that.logger.With("method", "PollPending")

	ids, err := that.paymentRepo.PendingIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending payments: %w", err)
	}

	for _, id := range ids {
		if err = that.resolve(ctx, id); err != nil {
			log.Error("failed to resolve payment", "transactionID", id, "error", err)
		}
	}

	return nil
}

func (that *paymentService) resolve(ctx context.Context, transactionID string) error {
	log := that.logger.With("method", "resolve", "transactionID", transactionID)

	payment, err := that.paymentRepo.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}

	status, err := that.gateway.PollStatus(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to poll status: %w", err)
	}

	if status == PaymentPending {
		return nil
	}

	payment.Status = status
	if err = that.paymentRepo.Save(ctx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	if err = that.paymentRepo.MarkResolved(ctx, transactionID); err != nil {
		return fmt.Errorf("failed to mark payment resolved: %w", err)
	}

	if status == PaymentSuccessful {
		if err = that.wallet.Deposit(ctx, payment.PlayerID, payment.Amount, transactionID); err != nil {
			return fmt.Errorf("failed to credit deposit: %w", err)
		}
	}

	log.Info("payment resolved", "status", status)

	return nil
}

// httpGateway talks to the real gateway over its HTTP API.
type httpGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string) PaymentGateway {
	return &httpGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (that *httpGateway) Initiate(ctx context.Context, playerID string, amount int64) (string, string, error) {
	body, err := json.Marshal(map[string]any{
		"player_id": playerID,
		"amount":    amount,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal initiate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, that.baseURL+"/initiate", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := that.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result struct {
		Link          string `json:"link"`
		TransactionID string `json:"transaction_id"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("failed to decode initiate response: %w", err)
	}

	return result.Link, result.TransactionID, nil
}

func (that *httpGateway) PollStatus(ctx context.Context, transactionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, that.baseURL+"/status/"+transactionID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := that.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}

	return result.Status, nil
}
