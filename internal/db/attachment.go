package db

import "time"

// Attachment 是按 (digest, size) 去重的附件数据块。
type Attachment struct {
	ID          uint   `gorm:"primaryKey"`
	Digest      string `gorm:"size:128;not null;uniqueIndex:idx_attachments_digest_size,priority:1"`
	Size        int64  `gorm:"not null;uniqueIndex:idx_attachments_digest_size,priority:2"`
	Compression string `gorm:"size:16;not null"`
	Data        []byte
	CreatedAt   time.Time
}

// PostAttachment 将文章版本与数据块关联，并保存该关联声明的内容类型。
type PostAttachment struct {
	ID           uint   `gorm:"primaryKey"`
	PostID       uint   `gorm:"index;not null"`
	AttachmentID uint   `gorm:"index;not null"`
	ContentType  string `gorm:"size:255;not null"`
	Name         string `gorm:"size:255"`
	Category     string `gorm:"size:255"`
	CreatedAt    time.Time
}

// TableName 指定自定义表名。
func (PostAttachment) TableName() string {
	return "posts_attachments"
}
