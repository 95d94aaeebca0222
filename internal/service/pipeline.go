package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tentpost/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pipeline 把写入信封转换为文章版本及其派生记录。
// 每次写入在单个事务中完成：文章行、附件、提及与副作用要么全部提交，要么全部回滚。
type Pipeline struct {
	db          *gorm.DB
	types       *TypeRegistry
	versions    *VersionStore
	mentions    *MentionGraph
	attachments *AttachmentStore
	apps        *AppService
	effects     *SideEffectRegistry
	logger      *zap.Logger
}

// PipelineConfig 汇总构造管线所需的可选依赖。
type PipelineConfig struct {
	Logger          *zap.Logger
	BlobCompression string
	Credentials     CredentialIssuer
}

// NewPipeline 创建管线并登记内置副作用（app、app-auth）。
func NewPipeline(gdb *gorm.DB, cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	types := NewTypeRegistry()
	mentions := NewMentionGraph(gdb)
	apps := NewAppService(gdb)

	issuer := cfg.Credentials
	if issuer == nil {
		issuer = NewHawkCredentialIssuer(mentions)
	}

	effects := NewSideEffectRegistry()
	effects.Register(BaseTypeApp, registerApp(apps))
	effects.Register(BaseTypeAppAuth, authorizeApp(apps, issuer, types))

	return &Pipeline{
		db:          gdb,
		types:       types,
		versions:    NewVersionStore(gdb, types),
		mentions:    mentions,
		attachments: NewAttachmentStore(gdb, cfg.BlobCompression),
		apps:        apps,
		effects:     effects,
		logger:      logger,
	}
}

// SetClock 替换时间来源，主要面向测试场景。
func (p *Pipeline) SetClock(now func() time.Time) {
	p.versions.SetClock(now)
}

// Versions 暴露版本存储，供只读查询使用。
func (p *Pipeline) Versions() *VersionStore { return p.versions }

// Attachments 暴露附件存储。
func (p *Pipeline) Attachments() *AttachmentStore { return p.attachments }

// Mentions 暴露提及图。
func (p *Pipeline) Mentions() *MentionGraph { return p.mentions }

// Apps 暴露应用记录服务。
func (p *Pipeline) Apps() *AppService { return p.apps }

// SideEffects 暴露副作用表，可在启动时登记额外的类型处理器。
func (p *Pipeline) SideEffects() *SideEffectRegistry { return p.effects }

// CreateFromEnvelope 校验信封后在一个事务内写入文章及其派生记录。
func (p *Pipeline) CreateFromEnvelope(ctx context.Context, env Envelope, user CurrentUser) (*db.Post, error) {
	prepared, err := prepareEnvelope(env, user)
	if err != nil {
		return nil, err
	}

	var (
		post     *db.Post
		resolved []typeRecord
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		post, txErr = p.ingest(ctx, tx, prepared, user, &resolved)
		return txErr
	})
	if err != nil {
		p.logger.Warn("post ingestion failed",
			zap.String("type", env.Type),
			zap.Uint("user_id", user.ID),
			zap.Error(err),
		)
		return nil, err
	}

	for _, record := range resolved {
		p.types.Remember(record.typ, record.base)
	}

	p.logger.Info("post ingested",
		zap.String("public_id", post.PublicID),
		zap.String("version", post.Version),
		zap.String("type", post.Type),
		zap.Int("parents", len(post.VersionParents)),
	)
	return post, nil
}

// CreateNewVersion 以新内容写入 existing 的下一个版本，提及随版本保留。
func (p *Pipeline) CreateNewVersion(ctx context.Context, existing *db.Post, content json.RawMessage, user CurrentUser) (*db.Post, error) {
	return p.CreateFromEnvelope(ctx, p.versions.NewVersionEnvelope(existing, content), user)
}

// SaveVersion 以文章当前视图重新写入，父版本指向 post 本身。
// 版本化永远是带父指针的重新写入，旧行不会被修改。
func (p *Pipeline) SaveVersion(ctx context.Context, post *db.Post, user CurrentUser) (*db.Post, error) {
	env := EnvelopeFromProjection(ProjectPost(post))
	env.Version = &EnvelopeVersion{
		Parents: []db.VersionParent{{Version: post.Version}},
	}
	return p.CreateFromEnvelope(ctx, env, user)
}

func (p *Pipeline) ingest(ctx context.Context, tx *gorm.DB, env Envelope, user CurrentUser, resolved *[]typeRecord) (*db.Post, error) {
	post, typ, base, err := p.versions.Create(tx, env, user)
	if err != nil {
		return nil, err
	}
	*resolved = append(*resolved, typeRecord{typ: typ, base: base})

	for i, attachment := range env.Attachments {
		blobID, err := p.attachmentBlob(tx, attachment)
		if err != nil {
			return nil, err
		}
		if _, err := p.attachments.Link(tx, post, blobID, post.Attachments[i], attachment.ContentType); err != nil {
			return nil, err
		}
	}

	if _, err := p.mentions.CreateMentions(tx, post, env.Mentions); err != nil {
		return nil, err
	}

	if !post.IsInitial() {
		return post, nil
	}
	effect, ok := p.effects.Lookup(base.Base)
	if !ok {
		return post, nil
	}

	run := SideEffectRun{
		Tx:   tx,
		Post: post,
		Base: base,
		User: user,
		Ingest: func(nested Envelope) (*db.Post, error) {
			prepared, err := prepareEnvelope(nested, user)
			if err != nil {
				return nil, err
			}
			return p.ingest(ctx, tx, prepared, user, resolved)
		},
	}
	if err := effect(ctx, run); err != nil {
		return nil, err
	}
	p.logger.Debug("post side effect applied",
		zap.String("public_id", post.PublicID),
		zap.String("base_type", base.Base),
	)
	return post, nil
}

func (p *Pipeline) attachmentBlob(tx *gorm.DB, attachment AttachmentInput) (uint, error) {
	if attachment.Data == nil {
		return p.attachments.blobID(tx, attachment.Digest, attachment.Size)
	}
	return p.attachments.FindOrCreateBlob(tx, attachment.Digest, attachment.Size, attachment.Data)
}
