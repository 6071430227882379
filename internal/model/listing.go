package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingKind string

const (
	ListingKindSale     ListingKind = "SALE"
	ListingKindRental   ListingKind = "RENTAL"
	ListingKindDonation ListingKind = "DONATION"
)

type ListingState string

const (
	ListingStateActive      ListingState = "ACTIVE"
	ListingStateUnavailable ListingState = "UNAVAILABLE"
	ListingStateSold        ListingState = "SOLD"
)

type Listing struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	SellerUID string          `gorm:"column:seller_uid;size:128;index;not null"`
	Title     string          `gorm:"size:120;not null"`
	Author    string          `gorm:"size:120"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Kind      ListingKind     `gorm:"column:kind;size:16;not null"`
	State     ListingState    `gorm:"column:state;size:16;not null;default:ACTIVE"`
	// ImageURL is either an absolute URL or an object name inside the image bucket.
	ImageURL  *string   `gorm:"column:image_url;size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
