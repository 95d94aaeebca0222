package db

import "time"

// Entity 是一个联邦身份 URI，首次被引用时创建，之后只读。
type Entity struct {
	ID        uint   `gorm:"primaryKey"`
	Entity    string `gorm:"size:512;uniqueIndex;not null"`
	CreatedAt time.Time
}
