package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-backend/testing/suite"
)

func TestPaymentRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	paymentRepo := NewPaymentRepository(st.Storage)

	// Given: a freshly initiated deposit
	payment := &Payment{
		TransactionID: "tx-1",
		PlayerID:      "alice",
		Amount:        1000,
		Link:          "https://pay.example/tx-1",
		Status:        "PENDING",
	}

	// When: Save is called
	err := paymentRepo.Save(ctx, payment)

	// Then: the payment is stored and tracked as pending
	require.NoError(t, err)

	pending, err := paymentRepo.PendingIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, pending, "tx-1")
}

func TestPaymentRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		paymentRepo := NewPaymentRepository(st.Storage)

		payment := &Payment{
			TransactionID: "tx-1",
			PlayerID:      "alice",
			Amount:        1000,
			Status:        "PENDING",
		}
		require.NoError(t, paymentRepo.Save(ctx, payment))

		// When: GetByID is called with the existing transaction ID
		retrieved, err := paymentRepo.GetByID(ctx, "tx-1")

		// Then: the payment round-trips
		require.NoError(t, err)
		require.Equal(t, payment.TransactionID, retrieved.TransactionID)
		require.Equal(t, payment.PlayerID, retrieved.PlayerID)
		require.Equal(t, payment.Amount, retrieved.Amount)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		paymentRepo := NewPaymentRepository(st.Storage)

		// When: GetByID is called with a non-existent transaction ID
		retrieved, err := paymentRepo.GetByID(ctx, "tx-missing")

		// Then: an ErrPaymentNotFound error should be returned
		require.Error(t, err)
		assert.Equal(t, ErrPaymentNotFound, err)
		assert.Nil(t, retrieved)
	})
}

func TestPaymentRepository_MarkResolved(t *testing.T) {
	ctx, st := suite.New(t)

	paymentRepo := NewPaymentRepository(st.Storage)

	require.NoError(t, paymentRepo.Save(ctx, &Payment{TransactionID: "tx-1", PlayerID: "alice", Amount: 1000}))
	require.NoError(t, paymentRepo.Save(ctx, &Payment{TransactionID: "tx-2", PlayerID: "bob", Amount: 500}))

	// When: one payment resolves
	require.NoError(t, paymentRepo.MarkResolved(ctx, "tx-1"))

	// Then: only the other remains pending, the record itself survives
	pending, err := paymentRepo.PendingIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tx-2"}, pending)

	_, err = paymentRepo.GetByID(ctx, "tx-1")
	require.NoError(t, err)
}
