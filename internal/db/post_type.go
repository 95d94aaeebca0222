package db

import "time"

// TypeBase 是去掉版本片段后的类型标识。
type TypeBase struct {
	ID        uint   `gorm:"primaryKey"`
	Base      string `gorm:"size:512;uniqueIndex;not null"`
	CreatedAt time.Time
}

// Type 是完整的类型 URI，引用其基础类型。
type Type struct {
	ID         uint   `gorm:"primaryKey"`
	Type       string `gorm:"size:512;uniqueIndex;not null"`
	TypeBaseID uint   `gorm:"index;not null"`
	CreatedAt  time.Time
}
