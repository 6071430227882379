package model

import "time"

type Favorite struct {
	ListingID   uint64    `gorm:"column:listing_id;not null;primaryKey"`
	CustomerUID string    `gorm:"column:customer_uid;size:128;not null;primaryKey"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}
