package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-backend/internal/repository"
)

type fakeGateway struct {
	link     string
	txID     string
	statuses map[string]string
}

func (that *fakeGateway) Initiate(_ context.Context, _ string, _ int64) (string, string, error) {
	return that.link, that.txID, nil
}

func (that *fakeGateway) PollStatus(_ context.Context, transactionID string) (string, error) {
	return that.statuses[transactionID], nil
}

type fakePaymentRepo struct {
	payments map[string]*repository.Payment
	pending  map[string]bool
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[string]*repository.Payment),
		pending:  make(map[string]bool),
	}
}

func (that *fakePaymentRepo) Save(_ context.Context, payment *repository.Payment) error {
	copied := *payment
	that.payments[payment.TransactionID] = &copied
	that.pending[payment.TransactionID] = true
	return nil
}

func (that *fakePaymentRepo) GetByID(_ context.Context, transactionID string) (*repository.Payment, error) {
	payment, ok := that.payments[transactionID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (that *fakePaymentRepo) PendingIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id, isPending := range that.pending {
		if isPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (that *fakePaymentRepo) MarkResolved(_ context.Context, transactionID string) error {
	delete(that.pending, transactionID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPaymentService_InitiateDeposit(t *testing.T) {
	gateway := &fakeGateway{link: "https://pay.example/tx-1", txID: "tx-1"}
	paymentRepo := newFakePaymentRepo()
	walletRepo := newFakeWalletRepo()

	payments := NewPaymentService(discardLogger(), gateway, paymentRepo, NewWalletService(walletRepo))

	payment, err := payments.InitiateDeposit(context.Background(), "alice", 1000)

	require.NoError(t, err)
	assert.Equal(t, "tx-1", payment.TransactionID)
	assert.Equal(t, "https://pay.example/tx-1", payment.Link)
	assert.Equal(t, PaymentPending, payment.Status)

	// Then: the payment is tracked but no funds moved yet
	assert.True(t, paymentRepo.pending["tx-1"])
	assert.Zero(t, walletRepo.balances["alice"])
}

func TestPaymentService_Status(t *testing.T) {
	gateway := &fakeGateway{link: "https://pay.example/tx-1", txID: "tx-1"}
	paymentRepo := newFakePaymentRepo()

	payments := NewPaymentService(discardLogger(), gateway, paymentRepo, NewWalletService(newFakeWalletRepo()))

	_, err := payments.InitiateDeposit(context.Background(), "alice", 1000)
	require.NoError(t, err)

	status, err := payments.Status(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, status)

	_, err = payments.Status(context.Background(), "tx-missing")
	require.ErrorIs(t, err, repository.ErrPaymentNotFound)
}

func TestPaymentService_PollPending(t *testing.T) {
	t.Run("SuccessfulDepositCreditsWallet", func(t *testing.T) {
		gateway := &fakeGateway{
			link:     "https://pay.example/tx-1",
			txID:     "tx-1",
			statuses: map[string]string{"tx-1": PaymentSuccessful},
		}
		paymentRepo := newFakePaymentRepo()
		walletRepo := newFakeWalletRepo()

		payments := NewPaymentService(discardLogger(), gateway, paymentRepo, NewWalletService(walletRepo))

		_, err := payments.InitiateDeposit(context.Background(), "alice", 1000)
		require.NoError(t, err)

		// When: the poller sees the deposit succeed
		require.NoError(t, payments.PollPending(context.Background()))

		// Then: the wallet is credited and the payment leaves the pending set
		assert.Equal(t, int64(1000), walletRepo.balances["alice"])
		assert.False(t, paymentRepo.pending["tx-1"])

		status, err := payments.Status(context.Background(), "tx-1")
		require.NoError(t, err)
		assert.Equal(t, PaymentSuccessful, status)
	})

	t.Run("FailedDepositDoesNotCredit", func(t *testing.T) {
		gateway := &fakeGateway{
			link:     "https://pay.example/tx-1",
			txID:     "tx-1",
			statuses: map[string]string{"tx-1": PaymentFailed},
		}
		paymentRepo := newFakePaymentRepo()
		walletRepo := newFakeWalletRepo()

		payments := NewPaymentService(discardLogger(), gateway, paymentRepo, NewWalletService(walletRepo))

		_, err := payments.InitiateDeposit(context.Background(), "alice", 1000)
		require.NoError(t, err)

		require.NoError(t, payments.PollPending(context.Background()))

		assert.Zero(t, walletRepo.balances["alice"])
		assert.False(t, paymentRepo.pending["tx-1"])
	})

	t.Run("PendingDepositStaysTracked", func(t *testing.T) {
		gateway := &fakeGateway{
			link:     "https://pay.example/tx-1",
			txID:     "tx-1",
			statuses: map[string]string{"tx-1": PaymentPending},
		}
		paymentRepo := newFakePaymentRepo()
		walletRepo := newFakeWalletRepo()

		payments := NewPaymentService(discardLogger(), gateway, paymentRepo, NewWalletService(walletRepo))

		_, err := payments.InitiateDeposit(context.Background(), "alice", 1000)
		require.NoError(t, err)

		require.NoError(t, payments.PollPending(context.Background()))

		// Then: still pending, nothing credited, next poll will retry
		assert.True(t, paymentRepo.pending["tx-1"])
		assert.Zero(t, walletRepo.balances["alice"])
	})
}

func TestHTTPGateway(t *testing.T) {
	t.Run("Initiate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/initiate", r.URL.Path)

			var req struct {
				PlayerID string `json:"player_id"`
				Amount   int64  `json:"amount"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "alice", req.PlayerID)
			assert.Equal(t, int64(1000), req.Amount)

			_ = json.NewEncoder(w).Encode(map[string]string{
				"link":           "https://pay.example/tx-1",
				"transaction_id": "tx-1",
			})
		}))
		defer server.Close()

		gateway := NewHTTPGateway(server.URL)

		link, txID, err := gateway.Initiate(context.Background(), "alice", 1000)

		require.NoError(t, err)
		assert.Equal(t, "https://pay.example/tx-1", link)
		assert.Equal(t, "tx-1", txID)
	})

	t.Run("PollStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/status/tx-1", r.URL.Path)

			_ = json.NewEncoder(w).Encode(map[string]string{"status": PaymentSuccessful})
		}))
		defer server.Close()

		gateway := NewHTTPGateway(server.URL)

		status, err := gateway.PollStatus(context.Background(), "tx-1")

		require.NoError(t, err)
		assert.Equal(t, PaymentSuccessful, status)
	})

	t.Run("ErrorStatusMapsToUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		gateway := NewHTTPGateway(server.URL)

		_, _, err := gateway.Initiate(context.Background(), "alice", 1000)
		require.ErrorIs(t, err, ErrGatewayUnavailable)

		_, err = gateway.PollStatus(context.Background(), "tx-1")
		require.ErrorIs(t, err, ErrGatewayUnavailable)
	})
}
