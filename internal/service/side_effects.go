package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
)

const (
	// BaseTypeApp 是应用登记文章的基础类型。
	BaseTypeApp = "https://tent.io/types/app"
	// BaseTypeAppAuth 是应用授权文章的基础类型。
	BaseTypeAppAuth = "https://tent.io/types/app-auth"
)

// SideEffectRun 是副作用执行时可用的上下文，所有写入都发生在 Tx 内。
type SideEffectRun struct {
	Tx     *gorm.DB
	Post   *db.Post
	Base   db.TypeBase
	User   CurrentUser
	Ingest IngestFunc
}

// SideEffect 在首个版本写入后执行。
type SideEffect func(ctx context.Context, run SideEffectRun) error

// SideEffectRegistry 以基础类型为键登记副作用。
type SideEffectRegistry struct {
	handlers map[string]SideEffect
}

// NewSideEffectRegistry 创建空的副作用表。
func NewSideEffectRegistry() *SideEffectRegistry {
	return &SideEffectRegistry{handlers: make(map[string]SideEffect)}
}

// Register 登记或替换某个基础类型的副作用。应在管线开始处理请求前完成。
func (r *SideEffectRegistry) Register(base string, effect SideEffect) {
	r.handlers[base] = effect
}

// Lookup 查找基础类型对应的副作用。
func (r *SideEffectRegistry) Lookup(base string) (SideEffect, bool) {
	effect, ok := r.handlers[base]
	return effect, ok
}

// registerApp 将 app 文章登记为应用记录。
func registerApp(apps *AppService) SideEffect {
	return func(ctx context.Context, run SideEffectRun) error {
		_, err := apps.UpsertFromPost(run.Tx, run.Post)
		return err
	}
}

// authorizeApp 签发凭证，并把凭证密钥写入被提及应用的 auth_code。
func authorizeApp(apps *AppService, issuer CredentialIssuer, types *TypeRegistry) SideEffect {
	return func(ctx context.Context, run SideEffectRun) error {
		credentialsPost, err := issuer.Generate(ctx, run.Tx, run.Ingest, run.User, run.Post)
		if err != nil {
			return err
		}
		creds, err := CredentialsOf(credentialsPost)
		if err != nil {
			return err
		}

		appPost, err := findMentionedApp(run.Tx, types, run.Post)
		if err != nil {
			return err
		}

		app, err := apps.find(run.Tx, run.Post.UserID, appPost.PublicID)
		if err != nil {
			if errors.Is(err, ErrAppNotFound) {
				return fmt.Errorf("%w: app post %s has no app record", ErrIntegrity, appPost.PublicID)
			}
			return err
		}
		return apps.SetAuthCode(run.Tx, app.ID, creds.HawkKey)
	}
}

// findMentionedApp 返回第一个指向 app 类型文章的提及。
func findMentionedApp(tx *gorm.DB, types *TypeRegistry, post *db.Post) (*db.Post, error) {
	for _, mention := range post.Mentions {
		if mention.Post == "" {
			continue
		}

		var candidate db.Post
		err := tx.Where("user_id = ? AND public_id = ?", post.UserID, mention.Post).
			Order("version_published_at desc, id desc").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		base, err := types.BaseByID(tx, candidate.TypeBaseID)
		if err != nil {
			return nil, err
		}
		if base.Base == BaseTypeApp {
			return &candidate, nil
		}
	}
	return nil, fmt.Errorf("%w: app-auth post %s does not mention an app post", ErrIntegrity, post.PublicID)
}
