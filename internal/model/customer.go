package model

import "time"

// Customer is the slice of the profile the engine needs. PointsBalance is only
// written by the points repository, together with a ledger append.
type Customer struct {
	UID           string    `gorm:"column:uid;primaryKey;size:128"`
	DisplayName   string    `gorm:"column:display_name;size:120"`
	PointsBalance int64     `gorm:"column:points_balance;not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}
