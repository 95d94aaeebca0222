package db

import "time"

// App 是由 app 类型文章派生出的应用登记记录。
type App struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;uniqueIndex:idx_apps_user_public,priority:1"`
	PublicID    string `gorm:"size:64;not null;uniqueIndex:idx_apps_user_public,priority:2"`
	PostID      uint   `gorm:"index;not null"`
	Name        string
	Description string   `gorm:"type:text"`
	URL         string
	RedirectURI string
	ReadTypes   []string `gorm:"serializer:json;type:text"`
	WriteTypes  []string `gorm:"serializer:json;type:text"`
	Scopes      []string `gorm:"serializer:json;type:text"`
	AuthCode    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
