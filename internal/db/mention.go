package db

import "time"

// Mention 记录从文章到实体（以及可选的目标文章）的一条提及边。
// 同一文章可以重复提及同一目标。
type Mention struct {
	ID         uint    `gorm:"primaryKey"`
	UserID     uint    `gorm:"index;not null"`
	PostID     uint    `gorm:"index;not null"`
	EntityID   uint    `gorm:"index;not null"`
	TargetPost *string `gorm:"column:post;size:64;index"`
	Public     *bool
	CreatedAt  time.Time
}
