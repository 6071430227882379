package model

import "time"

type LedgerKind string

const (
	LedgerKindGrant LedgerKind = "GRANT"
	LedgerKindSpend LedgerKind = "SPEND"
)

// PointsLedgerEntry is append-only. ID is a ULID so lexical order follows time.
type PointsLedgerEntry struct {
	ID            string     `gorm:"column:id;primaryKey;size:26"`
	CustomerUID   string     `gorm:"column:customer_uid;size:128;index;not null"`
	TransactionID *uint64    `gorm:"column:transaction_id;index"`
	Kind          LedgerKind `gorm:"column:kind;size:8;not null"`
	Amount        int64      `gorm:"column:amount;not null"`
	OccurredAt    time.Time  `gorm:"column:occurred_at;not null"`
}

func (PointsLedgerEntry) TableName() string {
	return "points_ledger"
}
