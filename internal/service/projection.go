package service

import (
	"encoding/json"
	"fmt"

	"github.com/tentpost/internal/canonical"
	"github.com/tentpost/internal/db"
)

// Projection 是返回给客户端的文章视图，去掉 version.id 后即为哈希输入。
// 字段的省略规则直接决定哈希结果，修改前需确认跨实现兼容。
type Projection struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Entity      string                 `json:"entity"`
	PublishedAt int64                  `json:"published_at"`
	ReceivedAt  *int64                 `json:"received_at,omitempty"`
	Content     json.RawMessage        `json:"content,omitempty"`
	Mentions    []db.MentionRef        `json:"mentions,omitempty"`
	Attachments []db.AttachmentRef     `json:"attachments,omitempty"`
	Permissions *ProjectionPermissions `json:"permissions,omitempty"`
	Version     ProjectionVersion      `json:"version"`
}

// ProjectionVersion 是视图中嵌套的版本信息。
type ProjectionVersion struct {
	ID          string             `json:"id,omitempty"`
	Parents     []db.VersionParent `json:"parents,omitempty"`
	Message     string             `json:"message,omitempty"`
	PublishedAt int64              `json:"published_at"`
	ReceivedAt  *int64             `json:"received_at,omitempty"`
}

// ProjectionPermissions 只在 public 为 false 时出现。
type ProjectionPermissions struct {
	Public bool `json:"public"`
}

// ProjectPost 将文章行转换为客户端视图。
func ProjectPost(post *db.Post) Projection {
	p := Projection{
		ID:          post.PublicID,
		Type:        post.Type,
		Entity:      post.Entity,
		PublishedAt: post.PublishedAt,
		ReceivedAt:  optionalTimestamp(post.ReceivedAt),
		Version: ProjectionVersion{
			ID:          post.Version,
			Parents:     post.VersionParents,
			Message:     post.VersionMessage,
			PublishedAt: post.VersionPublishedAt,
			ReceivedAt:  optionalTimestamp(post.VersionReceivedAt),
		},
	}
	if post.Content != "" && post.Content != "null" {
		p.Content = json.RawMessage(post.Content)
	}
	if len(post.Mentions) > 0 {
		p.Mentions = post.Mentions
	}
	if len(post.Attachments) > 0 {
		p.Attachments = post.Attachments
	}
	if !post.Public {
		p.Permissions = &ProjectionPermissions{Public: false}
	}
	return p
}

// VersionOf 计算视图（忽略 version.id）的内容哈希。
func VersionOf(p Projection) (string, error) {
	p.Version.ID = ""
	version, err := canonical.Hash(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return version, nil
}

// EnvelopeFromProjection 以视图重新构造写入信封，附件按摘要引用已有数据块。
func EnvelopeFromProjection(p Projection) Envelope {
	published := p.PublishedAt
	env := Envelope{
		ID:          p.ID,
		Type:        p.Type,
		Content:     p.Content,
		PublishedAt: &published,
		Mentions:    append([]db.MentionRef(nil), p.Mentions...),
	}
	if p.Permissions != nil {
		public := p.Permissions.Public
		env.Permissions = &EnvelopePermissions{Public: &public}
	}
	for _, ref := range p.Attachments {
		env.Attachments = append(env.Attachments, AttachmentInput{
			Name:        ref.Name,
			Category:    ref.Category,
			ContentType: ref.ContentType,
			Digest:      ref.Digest,
			Size:        ref.Size,
		})
	}
	return env
}

func optionalTimestamp(ts int64) *int64 {
	if ts == 0 {
		return nil
	}
	return &ts
}
