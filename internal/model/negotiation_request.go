package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type NegotiationState string

const (
	NegotiationPending  NegotiationState = "PENDING"
	NegotiationAccepted NegotiationState = "ACCEPTED"
	NegotiationRejected NegotiationState = "REJECTED"
	NegotiationCanceled NegotiationState = "CANCELED"
)

type NegotiationRequest struct {
	ID             uint64           `gorm:"primaryKey;autoIncrement"`
	ProposedAmount decimal.Decimal  `gorm:"column:proposed_amount;type:decimal(10,2);not null"`
	ListingKind    ListingKind      `gorm:"column:listing_kind;size:16;not null"`
	ListingID      uint64           `gorm:"column:listing_id;index;not null"`
	ConversationID uint64           `gorm:"column:conversation_id;index;not null"`
	BuyerUID       string           `gorm:"column:buyer_uid;size:128;index;not null"`
	SellerUID      string           `gorm:"column:seller_uid;size:128;index;not null"`
	SenderUID      string           `gorm:"column:sender_uid;size:128;not null"`
	RecipientUID   string           `gorm:"column:recipient_uid;size:128;not null"`
	RentalDays     *int             `gorm:"column:rental_days"`
	State          NegotiationState `gorm:"column:state;size:16;not null"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
}

func (NegotiationRequest) TableName() string {
	return "negotiation_requests"
}

func (r *NegotiationRequest) Accept(actorUID string) error {
	if err := r.guardRecipient(actorUID); err != nil {
		return err
	}
	r.State = NegotiationAccepted
	return nil
}

func (r *NegotiationRequest) Reject(actorUID string) error {
	if err := r.guardRecipient(actorUID); err != nil {
		return err
	}
	r.State = NegotiationRejected
	return nil
}

// Cancel has no actor check; it is used when a newer request supersedes this one.
func (r *NegotiationRequest) Cancel() error {
	if r.State != NegotiationPending {
		return refuse(ErrInvalidState, "negotiation request is no longer pending")
	}
	r.State = NegotiationCanceled
	return nil
}

func (r *NegotiationRequest) guardRecipient(actorUID string) error {
	if r.State != NegotiationPending {
		return refuse(ErrInvalidState, "negotiation request is no longer pending")
	}
	if actorUID == "" || actorUID != r.RecipientUID {
		return refuse(ErrNotAllowed, "only the recipient can answer this negotiation request")
	}
	return nil
}

// Counterpart returns the other party of the negotiation.
func (r *NegotiationRequest) Counterpart(uid string) string {
	if uid == r.BuyerUID {
		return r.SellerUID
	}
	return r.BuyerUID
}

func (r *NegotiationRequest) HasParty(uid string) bool {
	return uid != "" && (uid == r.BuyerUID || uid == r.SellerUID)
}
