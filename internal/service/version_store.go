package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
)

// VersionStore 写入不可变的文章版本行，并计算内容哈希版本号。
type VersionStore struct {
	db          *gorm.DB
	types       *TypeRegistry
	now         func() time.Time
	newPublicID func() string
}

// NewVersionStore 创建 VersionStore。
func NewVersionStore(gdb *gorm.DB, types *TypeRegistry) *VersionStore {
	return &VersionStore{
		db:          gdb,
		types:       types,
		now:         time.Now,
		newPublicID: randomPublicID,
	}
}

// SetClock 替换时间来源，主要面向测试场景。
func (s *VersionStore) SetClock(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// Create 解析类型、分配 public_id、计算版本哈希并写入文章行。
// env 需已经过 prepareEnvelope 校验。
func (s *VersionStore) Create(tx *gorm.DB, env Envelope, user CurrentUser) (*db.Post, db.Type, db.TypeBase, error) {
	typ, base, err := s.types.FindOrCreate(tx, env.Type)
	if err != nil {
		return nil, db.Type{}, db.TypeBase{}, err
	}

	parents := env.Parents()
	publicID := s.newPublicID()
	if len(parents) > 0 {
		if err := s.checkParents(tx, env.ID, parents); err != nil {
			return nil, db.Type{}, db.TypeBase{}, err
		}
		publicID = env.ID
	}

	received := s.now().UnixMilli()
	published := received
	if env.PublishedAt != nil {
		published = *env.PublishedAt
	}

	post := &db.Post{
		PublicID:           publicID,
		UserID:             user.ID,
		EntityID:           user.EntityID,
		Entity:             user.Entity,
		Type:               typ.Type,
		TypeID:             typ.ID,
		TypeBaseID:         base.ID,
		Content:            string(env.Content),
		VersionParents:     parents,
		VersionMessage:     env.message(),
		VersionPublishedAt: published,
		VersionReceivedAt:  received,
		PublishedAt:        published,
		ReceivedAt:         received,
		Public:             env.public(),
	}
	if len(env.Mentions) > 0 {
		post.Mentions = env.Mentions
	}
	for _, attachment := range env.Attachments {
		post.Attachments = append(post.Attachments, attachment.ref())
	}

	version, err := VersionOf(ProjectPost(post))
	if err != nil {
		return nil, db.Type{}, db.TypeBase{}, err
	}
	post.Version = version

	var existing int64
	if err := tx.Model(&db.Post{}).
		Where("public_id = ? AND version = ?", post.PublicID, post.Version).
		Count(&existing).Error; err != nil {
		return nil, db.Type{}, db.TypeBase{}, err
	}
	if existing > 0 {
		return nil, db.Type{}, db.TypeBase{}, ErrConflict
	}

	if err := tx.Create(post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, db.Type{}, db.TypeBase{}, ErrConflict
		}
		return nil, db.Type{}, db.TypeBase{}, fmt.Errorf("create post: %w", err)
	}

	return post, typ, base, nil
}

// NewVersionEnvelope 构造 existing 的新版本信封：相同 public_id 与类型，父版本指向 existing。
func (s *VersionStore) NewVersionEnvelope(existing *db.Post, content json.RawMessage) Envelope {
	env := Envelope{
		ID:       existing.PublicID,
		Type:     existing.Type,
		Content:  content,
		Version:  &EnvelopeVersion{Parents: []db.VersionParent{{Version: existing.Version}}},
		Mentions: append([]db.MentionRef(nil), existing.Mentions...),
	}
	if !existing.Public {
		public := false
		env.Permissions = &EnvelopePermissions{Public: &public}
	}
	return env
}

// CreateNewVersion 只写入新版本行，旧行保持不变。需要提及与附件记录时使用 Pipeline.CreateNewVersion。
func (s *VersionStore) CreateNewVersion(tx *gorm.DB, existing *db.Post, content json.RawMessage, user CurrentUser) (*db.Post, error) {
	env, err := prepareEnvelope(s.NewVersionEnvelope(existing, content), user)
	if err != nil {
		return nil, err
	}
	post, _, _, err := s.Create(tx, env, user)
	return post, err
}

// LatestVersion 返回 version_published_at 最大的版本，相同时取插入序号最大者。
func (s *VersionStore) LatestVersion(publicID string) (*db.Post, error) {
	return latestVersion(s.db, publicID)
}

// Get 返回指定版本。
func (s *VersionStore) Get(publicID, version string) (*db.Post, error) {
	var post db.Post
	if err := s.db.Where("public_id = ? AND version = ?", publicID, version).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Versions 按插入顺序返回文章的全部版本。
func (s *VersionStore) Versions(publicID string) ([]db.Post, error) {
	var posts []db.Post
	if err := s.db.Where("public_id = ?", publicID).Order("id asc").Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts, nil
}

// Tips 返回没有被任何其他版本引用为父节点的版本；并发保存会产生多个 tip。
func (s *VersionStore) Tips(publicID string) ([]db.Post, error) {
	posts, err := s.Versions(publicID)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{}, len(posts))
	for _, post := range posts {
		for _, parent := range post.VersionParents {
			referenced[parent.Version] = struct{}{}
		}
	}

	tips := make([]db.Post, 0, 1)
	for _, post := range posts {
		if _, ok := referenced[post.Version]; !ok {
			tips = append(tips, post)
		}
	}
	return tips, nil
}

func (s *VersionStore) checkParents(tx *gorm.DB, publicID string, parents []db.VersionParent) error {
	wanted := make([]string, 0, len(parents))
	seen := make(map[string]struct{}, len(parents))
	for _, parent := range parents {
		if _, ok := seen[parent.Version]; ok {
			continue
		}
		seen[parent.Version] = struct{}{}
		wanted = append(wanted, parent.Version)
	}

	var found int64
	if err := tx.Model(&db.Post{}).
		Where("public_id = ? AND version IN ?", publicID, wanted).
		Count(&found).Error; err != nil {
		return err
	}
	if found != int64(len(wanted)) {
		return fmt.Errorf("%w: %s", ErrUnknownParent, publicID)
	}
	return nil
}

func latestVersion(tx *gorm.DB, publicID string) (*db.Post, error) {
	var post db.Post
	if err := tx.Where("public_id = ?", publicID).
		Order("version_published_at desc, id desc").
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func randomPublicID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
