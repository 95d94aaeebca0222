package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tentpost/internal/canonical"
	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/posttype"
)

// CurrentUser 是发起写入的账号，显式传入每次管线调用。
type CurrentUser struct {
	ID       uint
	EntityID uint
	Entity   string
}

// Envelope 是一次写入请求携带的结构化输入。
type Envelope struct {
	ID          string               `json:"id,omitempty"`
	Type        string               `json:"type"`
	Content     json.RawMessage      `json:"content,omitempty"`
	PublishedAt *int64               `json:"published_at,omitempty"`
	Version     *EnvelopeVersion     `json:"version,omitempty"`
	Permissions *EnvelopePermissions `json:"permissions,omitempty"`
	Mentions    []db.MentionRef      `json:"mentions,omitempty"`
	Attachments []AttachmentInput    `json:"attachments,omitempty"`
}

// EnvelopeVersion 描述版本父节点与说明。客户端回传的 id 会被忽略。
type EnvelopeVersion struct {
	ID      string             `json:"id,omitempty"`
	Parents []db.VersionParent `json:"parents,omitempty"`
	Message string             `json:"message,omitempty"`
}

// EnvelopePermissions 仅承载 public 标记。
type EnvelopePermissions struct {
	Public *bool `json:"public,omitempty"`
}

// AttachmentInput 描述一个附件。Data 为空时 Digest 与 Size 必须指向已存在的数据块。
type AttachmentInput struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Digest      string `json:"digest,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Parents 返回声明的父版本，未声明时为 nil。
func (e *Envelope) Parents() []db.VersionParent {
	if e.Version == nil || len(e.Version.Parents) == 0 {
		return nil
	}
	return e.Version.Parents
}

func (e *Envelope) public() bool {
	if e.Permissions == nil || e.Permissions.Public == nil {
		return true
	}
	return *e.Permissions.Public
}

func (e *Envelope) message() string {
	if e.Version == nil {
		return ""
	}
	return e.Version.Message
}

// prepareEnvelope 在任何持久化之前完成校验：类型、内容规范化与附件摘要。
func prepareEnvelope(env Envelope, user CurrentUser) (Envelope, error) {
	if user.ID == 0 || strings.TrimSpace(user.Entity) == "" {
		return Envelope{}, fmt.Errorf("%w: current user is required", ErrValidation)
	}
	if _, err := posttype.Parse(env.Type); err != nil {
		return Envelope{}, fmt.Errorf("%w: type %q", ErrValidation, env.Type)
	}

	parents := env.Parents()
	if env.ID != "" && len(parents) == 0 {
		return Envelope{}, fmt.Errorf("%w: id may only be declared with version.parents", ErrValidation)
	}
	if len(parents) > 0 && env.ID == "" {
		return Envelope{}, fmt.Errorf("%w: version.parents require the post id", ErrValidation)
	}
	for _, parent := range parents {
		if strings.TrimSpace(parent.Version) == "" {
			return Envelope{}, fmt.Errorf("%w: empty parent version", ErrValidation)
		}
	}

	content, err := canonicalContent(env.Content)
	if err != nil {
		return Envelope{}, err
	}
	env.Content = content

	for i, mention := range env.Mentions {
		if strings.TrimSpace(mention.Entity) == "" {
			return Envelope{}, fmt.Errorf("%w: mention %d has no entity", ErrValidation, i)
		}
	}

	attachments := make([]AttachmentInput, len(env.Attachments))
	for i, attachment := range env.Attachments {
		verified, err := verifyAttachment(attachment)
		if err != nil {
			return Envelope{}, fmt.Errorf("attachment %d: %w", i, err)
		}
		attachments[i] = verified
	}
	env.Attachments = attachments

	return env, nil
}

func canonicalContent(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	encoded, err := canonical.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	if string(encoded) == "null" {
		return nil, nil
	}
	return encoded, nil
}

func verifyAttachment(input AttachmentInput) (AttachmentInput, error) {
	if strings.TrimSpace(input.ContentType) == "" {
		return AttachmentInput{}, fmt.Errorf("%w: content_type is required", ErrValidation)
	}

	if input.Data == nil {
		if input.Digest == "" || input.Size < 0 {
			return AttachmentInput{}, fmt.Errorf("%w: digest and size are required without data", ErrValidation)
		}
		return input, nil
	}

	digest := canonical.Digest(input.Data)
	if input.Digest != "" && input.Digest != digest {
		return AttachmentInput{}, ErrDigestMismatch
	}
	size := int64(len(input.Data))
	if input.Size != 0 && input.Size != size {
		return AttachmentInput{}, ErrDigestMismatch
	}

	input.Digest = digest
	input.Size = size
	return input, nil
}

func (a AttachmentInput) ref() db.AttachmentRef {
	return db.AttachmentRef{
		Category:    a.Category,
		ContentType: a.ContentType,
		Digest:      a.Digest,
		Name:        a.Name,
		Size:        a.Size,
	}
}
