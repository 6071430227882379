package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(kind ListingKind, state TransactionState) *Transaction {
	return &Transaction{
		ID:          7,
		BuyerUID:    "buyer",
		SellerUID:   "seller",
		ListingKind: kind,
		State:       state,
		FinalAmount: decimal.RequireFromString("72.5"),
	}
}

func TestTransactionConfirmReceipt(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		kind    ListingKind
		state   TransactionState
		actor   string
		wantErr error
	}{
		{"sale by buyer", ListingKindSale, TransactionPending, "buyer", nil},
		{"donation by buyer", ListingKindDonation, TransactionPending, "buyer", nil},
		{"seller cannot confirm", ListingKindSale, TransactionPending, "seller", ErrNotAllowed},
		{"rental uses return flow", ListingKindRental, TransactionPending, "buyer", ErrWrongKind},
		{"already concluded", ListingKindSale, TransactionConcluded, "buyer", ErrInvalidState},
		{"canceled", ListingKindSale, TransactionCanceled, "buyer", ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTx(tt.kind, tt.state)
			err := tx.ConfirmReceiptByBuyer(tt.actor, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.state, tx.State)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TransactionConcluded, tx.State)
			assert.NotNil(t, tx.ConcludedAt)
		})
	}
}

func TestTransactionReturnFlow(t *testing.T) {
	now := time.Now()
	tx := newTx(ListingKindRental, TransactionPending)

	assert.ErrorIs(t, tx.ConfirmReturnBySeller("seller", now), ErrInvalidState)
	assert.ErrorIs(t, tx.RegisterReturn("seller"), ErrNotAllowed)

	require.NoError(t, tx.RegisterReturn("buyer"))
	assert.Equal(t, TransactionReturnPending, tx.State)

	assert.ErrorIs(t, tx.Cancel("buyer", now), ErrInvalidState)
	assert.ErrorIs(t, tx.ConfirmReturnBySeller("buyer", now), ErrNotAllowed)

	require.NoError(t, tx.ConfirmReturnBySeller("seller", now))
	assert.Equal(t, TransactionConcluded, tx.State)
}

func TestTransactionRegisterReturnRequiresRental(t *testing.T) {
	tx := newTx(ListingKindSale, TransactionPending)
	assert.ErrorIs(t, tx.RegisterReturn("buyer"), ErrWrongKind)
	assert.Equal(t, TransactionPending, tx.State)
}

func TestTransactionCancel(t *testing.T) {
	now := time.Now()
	for _, actor := range []string{"buyer", "seller"} {
		tx := newTx(ListingKindSale, TransactionPending)
		require.NoError(t, tx.Cancel(actor, now))
		assert.Equal(t, TransactionCanceled, tx.State)
	}

	tx := newTx(ListingKindSale, TransactionPending)
	assert.ErrorIs(t, tx.Cancel("stranger", now), ErrNotAllowed)

	done := newTx(ListingKindSale, TransactionConcluded)
	assert.ErrorIs(t, done.Cancel("buyer", now), ErrInvalidState)
}

func TestTransactionEarnedPoints(t *testing.T) {
	assert.Equal(t, int64(72), newTx(ListingKindSale, TransactionConcluded).EarnedPoints())
	assert.Equal(t, int64(72), newTx(ListingKindRental, TransactionConcluded).EarnedPoints())
	assert.Equal(t, int64(0), newTx(ListingKindDonation, TransactionConcluded).EarnedPoints())
}
