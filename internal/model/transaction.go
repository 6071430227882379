package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionState string

const (
	TransactionPending       TransactionState = "PENDING"
	TransactionConcluded     TransactionState = "CONCLUDED"
	TransactionCanceled      TransactionState = "CANCELED"
	TransactionReturnPending TransactionState = "RETURN_PENDING"
)

type Transaction struct {
	ID                   uint64           `gorm:"primaryKey;autoIncrement"`
	NegotiationRequestID uint64           `gorm:"column:negotiation_request_id;not null;uniqueIndex:uk_transactions_negotiation"`
	ListingID            uint64           `gorm:"column:listing_id;index;not null"`
	ListingKind          ListingKind      `gorm:"column:listing_kind;size:16;not null"`
	BuyerUID             string           `gorm:"column:buyer_uid;size:128;index;not null"`
	SellerUID            string           `gorm:"column:seller_uid;size:128;index;not null"`
	BaseAmount           decimal.Decimal  `gorm:"column:base_amount;type:decimal(10,2);not null"`
	DiscountAmount       decimal.Decimal  `gorm:"column:discount_amount;type:decimal(10,2);not null"`
	FinalAmount          decimal.Decimal  `gorm:"column:final_amount;type:decimal(10,2);not null"`
	PointsSpent          int64            `gorm:"column:points_spent;not null;default:0"`
	State                TransactionState `gorm:"column:state;size:16;not null"`
	ConcludedAt          *time.Time       `gorm:"column:concluded_at"`
	CanceledAt           *time.Time       `gorm:"column:canceled_at"`
	CreatedAt            time.Time        `gorm:"autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) ConfirmReceiptByBuyer(actorUID string, now time.Time) error {
	if t.State != TransactionPending {
		return refuse(ErrInvalidState, "transaction is not pending")
	}
	if actorUID == "" || actorUID != t.BuyerUID {
		return refuse(ErrNotAllowed, "only the buyer can confirm receipt")
	}
	if t.ListingKind != ListingKindSale && t.ListingKind != ListingKindDonation {
		return refuse(ErrWrongKind, "rentals are concluded through the return flow")
	}
	t.State = TransactionConcluded
	t.ConcludedAt = &now
	return nil
}

func (t *Transaction) RegisterReturn(actorUID string) error {
	if t.State != TransactionPending {
		return refuse(ErrInvalidState, "transaction is not pending")
	}
	if t.ListingKind != ListingKindRental {
		return refuse(ErrWrongKind, "only rentals can be returned")
	}
	if actorUID == "" || actorUID != t.BuyerUID {
		return refuse(ErrNotAllowed, "only the buyer can register a return")
	}
	t.State = TransactionReturnPending
	return nil
}

func (t *Transaction) ConfirmReturnBySeller(actorUID string, now time.Time) error {
	if t.State != TransactionReturnPending {
		return refuse(ErrInvalidState, "no return is pending for this transaction")
	}
	if actorUID == "" || actorUID != t.SellerUID {
		return refuse(ErrNotAllowed, "only the seller can confirm the return")
	}
	if t.ListingKind != ListingKindRental {
		return refuse(ErrWrongKind, "only rentals can be returned")
	}
	t.State = TransactionConcluded
	t.ConcludedAt = &now
	return nil
}

func (t *Transaction) Cancel(actorUID string, now time.Time) error {
	if t.State != TransactionPending {
		return refuse(ErrInvalidState, "transaction is not pending")
	}
	if !t.HasParty(actorUID) {
		return refuse(ErrNotAllowed, "only the buyer or the seller can cancel")
	}
	t.State = TransactionCanceled
	t.CanceledAt = &now
	return nil
}

func (t *Transaction) HasParty(uid string) bool {
	return uid != "" && (uid == t.BuyerUID || uid == t.SellerUID)
}

// EarnedPoints is the number of points each party receives when the deal concludes.
func (t *Transaction) EarnedPoints() int64 {
	if t.ListingKind == ListingKindDonation {
		return 0
	}
	return t.FinalAmount.Floor().IntPart()
}
