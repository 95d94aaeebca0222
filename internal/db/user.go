package db

import "gorm.io/gorm"

// User 定义了本地账号，每个账号绑定一个实体 URI。
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	EntityID uint   `gorm:"index"`
	Entity   string `gorm:"not null"`
}
