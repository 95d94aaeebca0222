package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
)

// TypeCredentials 是授权凭证文章的类型。
const TypeCredentials = "https://tent.io/types/credentials/v0#"

// IngestFunc 在调用方的事务内写入一篇文章。
type IngestFunc func(env Envelope) (*db.Post, error)

// CredentialIssuer 为授权文章签发凭证。
type CredentialIssuer interface {
	Generate(ctx context.Context, tx *gorm.DB, ingest IngestFunc, user CurrentUser, target *db.Post) (*db.Post, error)
}

// Credentials 是凭证文章的内容。
type Credentials struct {
	HawkKey       string `json:"hawk_key"`
	HawkAlgorithm string `json:"hawk_algorithm"`
}

// HawkCredentialIssuer 生成 hawk 凭证文章，并与目标文章互相提及。
type HawkCredentialIssuer struct {
	mentions *MentionGraph
	random   io.Reader
}

// NewHawkCredentialIssuer 创建 HawkCredentialIssuer。
func NewHawkCredentialIssuer(mentions *MentionGraph) *HawkCredentialIssuer {
	return &HawkCredentialIssuer{mentions: mentions, random: rand.Reader}
}

// Generate 写入凭证文章（提及 target），再补一条 target 指向凭证的提及边。
func (i *HawkCredentialIssuer) Generate(ctx context.Context, tx *gorm.DB, ingest IngestFunc, user CurrentUser, target *db.Post) (*db.Post, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(i.random, key); err != nil {
		return nil, fmt.Errorf("generate hawk key: %w", err)
	}

	content, err := json.Marshal(Credentials{
		HawkKey:       hex.EncodeToString(key),
		HawkAlgorithm: "sha256",
	})
	if err != nil {
		return nil, err
	}

	credentials, err := ingest(Envelope{
		Type:    TypeCredentials,
		Content: content,
		Mentions: []db.MentionRef{
			{Entity: user.Entity, Post: target.PublicID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create credentials post: %w", err)
	}

	if _, err := i.mentions.LinkPosts(tx, target, credentials); err != nil {
		return nil, err
	}
	return credentials, nil
}

// CredentialsOf 解析凭证文章的内容。
func CredentialsOf(post *db.Post) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal([]byte(post.Content), &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: credentials content: %v", ErrIntegrity, err)
	}
	if creds.HawkKey == "" {
		return Credentials{}, fmt.Errorf("%w: credentials without hawk_key", ErrIntegrity)
	}
	return creds, nil
}
