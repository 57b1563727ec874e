package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stakearena/arena-backend/internal/repository"
	"github.com/stakearena/arena-backend/internal/service"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)

	InitiateDeposit(w http.ResponseWriter, r *http.Request)
	DepositStatus(w http.ResponseWriter, r *http.Request)
	WalletBalance(w http.ResponseWriter, r *http.Request)
}

type paymentService interface {
	InitiateDeposit(ctx context.Context, playerID string, amount int64) (*repository.Payment, error)
	Status(ctx context.Context, transactionID string) (string, error)
}

type walletService interface {
	Balance(ctx context.Context, playerID string) (int64, error)
}

type handlers struct {
	logger *slog.Logger

	payments paymentService
	wallets  walletService
}

func NewHandlers(logger *slog.Logger, payments paymentService, wallets walletService) Handlers {
	return &handlers{
		logger:   logger.With("component", "rest"),
		payments: payments,
		wallets:  wallets,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *handlers) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "InitiateDeposit")

	var req struct {
		PlayerID string `json:"player_id"`
		Amount   int64  `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.PlayerID == "" || req.Amount <= 0 {
		http.Error(w, "player_id and a positive amount are required", http.StatusBadRequest)
		return
	}

	payment, err := that.payments.InitiateDeposit(r.Context(), req.PlayerID, req.Amount)
	if err != nil {
		if errors.Is(err, service.ErrGatewayUnavailable) {
			http.Error(w, "Payment provider unavailable", http.StatusBadGateway)
			return
		}

		log.Error("failed to initiate deposit", "playerID", req.PlayerID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusCreated, map[string]any{
		"transaction_id": payment.TransactionID,
		"link":           payment.Link,
		"status":         payment.Status,
	})
}

func (that *handlers) DepositStatus(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "DepositStatus")

	transactionID := r.PathValue("id")
	if transactionID == "" {
		http.Error(w, "Transaction id is required", http.StatusBadRequest)
		return
	}

	status, err := that.payments.Status(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			http.Error(w, "Payment not found", http.StatusNotFound)
			return
		}

		log.Error("failed to get payment status", "transactionID", transactionID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": transactionID,
		"status":         status,
	})
}

func (that *handlers) WalletBalance(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "WalletBalance")

	playerID := r.PathValue("id")
	if playerID == "" {
		http.Error(w, "Player id is required", http.StatusBadRequest)
		return
	}

	balance, err := that.wallets.Balance(r.Context(), playerID)
	if err != nil {
		log.Error("failed to get balance", "playerID", playerID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"player_id": playerID,
		"balance":   balance,
	})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
