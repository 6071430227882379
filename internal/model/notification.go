package model

import "time"

type NotificationKind string

const (
	NotificationKindTransaction NotificationKind = "TRANSACTION"
	NotificationKindFavorite    NotificationKind = "FAVORITE"
)

func (k NotificationKind) Valid() bool {
	return k == NotificationKindTransaction || k == NotificationKindFavorite
}

type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserUID   string           `gorm:"column:user_uid;size:128;index;not null"`
	Kind      NotificationKind `gorm:"column:kind;size:32;not null"`
	Body      string           `gorm:"column:body;type:text"`
	ReadAt    *time.Time       `gorm:"column:read_at"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
