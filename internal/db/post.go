package db

import "time"

// MentionRef 是文章中声明的提及描述。
type MentionRef struct {
	Entity string `json:"entity"`
	Post   string `json:"post,omitempty"`
	Public *bool  `json:"public,omitempty"`
}

// AttachmentRef 是文章中反规范化保存的附件描述。
type AttachmentRef struct {
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Digest      string `json:"digest"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// VersionParent 指向同一文章的某个既有版本。
type VersionParent struct {
	Version string `json:"version"`
}

// Post 对应一条不可变的文章版本记录。
// ID 单调递增，同时作为同一 public_id 下的插入序号。
type Post struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"size:64;not null;uniqueIndex:idx_posts_public_version,priority:1"`
	Version   string `gorm:"size:128;not null;uniqueIndex:idx_posts_public_version,priority:2"`
	UserID    uint   `gorm:"index;not null"`
	EntityID  uint   `gorm:"not null"`
	Entity    string `gorm:"size:512;not null"`

	Type       string `gorm:"size:512;not null"`
	TypeID     uint   `gorm:"not null"`
	TypeBaseID uint   `gorm:"index;not null"`

	// Content 保存规范化后的 JSON 文本，空字符串表示 null。
	Content        string          `gorm:"type:text"`
	Mentions       []MentionRef    `gorm:"serializer:json;type:text"`
	Attachments    []AttachmentRef `gorm:"serializer:json;type:text"`
	VersionParents []VersionParent `gorm:"serializer:json;type:text"`
	VersionMessage string          `gorm:"type:text"`

	VersionPublishedAt int64 `gorm:"index;not null"`
	VersionReceivedAt  int64
	PublishedAt        int64 `gorm:"not null"`
	ReceivedAt         int64

	// 布尔字段不设置数据库默认值，避免 false 被 gorm 当作零值跳过。
	Public bool `gorm:"not null"`

	CreatedAt time.Time
}

// IsInitial 判断该行是否为文章的首个版本。
func (p *Post) IsInitial() bool {
	return len(p.VersionParents) == 0
}
