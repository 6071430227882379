package model

import "time"

type Return struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement"`
	TransactionID      uint64     `gorm:"column:transaction_id;not null;uniqueIndex:uk_returns_transaction"`
	InitiatingBuyerUID string     `gorm:"column:initiating_buyer_uid;size:128;not null"`
	RegisteredAt       time.Time  `gorm:"column:registered_at;not null"`
	SellerConfirmedAt  *time.Time `gorm:"column:seller_confirmed_at"`
	Confirmed          bool       `gorm:"column:confirmed;not null;default:false"`
}

func (Return) TableName() string {
	return "returns"
}

func (r *Return) Confirm(now time.Time) {
	r.Confirmed = true
	r.SellerConfirmedAt = &now
}
