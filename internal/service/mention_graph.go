package service

import (
	"fmt"
	"strings"

	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MentionGraph 维护实体与文章之间的提及边。
type MentionGraph struct {
	db *gorm.DB
}

// NewMentionGraph 创建 MentionGraph。
func NewMentionGraph(gdb *gorm.DB) *MentionGraph {
	return &MentionGraph{db: gdb}
}

// ResolveEntity 按 URI 幂等查找或创建实体。
func (g *MentionGraph) ResolveEntity(tx *gorm.DB, uri string) (db.Entity, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return db.Entity{}, fmt.Errorf("%w: entity uri is required", ErrValidation)
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity"}},
		DoNothing: true,
	}).Create(&db.Entity{Entity: uri}).Error; err != nil {
		return db.Entity{}, fmt.Errorf("upsert entity %s: %w", uri, err)
	}

	var entity db.Entity
	if err := tx.Where("entity = ?", uri).First(&entity).Error; err != nil {
		return db.Entity{}, fmt.Errorf("load entity %s: %w", uri, err)
	}
	return entity, nil
}

// CreateMentions 按输入顺序为文章写入提及边，不做去重。
func (g *MentionGraph) CreateMentions(tx *gorm.DB, post *db.Post, mentions []db.MentionRef) ([]db.Mention, error) {
	created := make([]db.Mention, 0, len(mentions))
	for _, ref := range mentions {
		entity, err := g.ResolveEntity(tx, ref.Entity)
		if err != nil {
			return nil, err
		}

		mention := db.Mention{
			UserID:   post.UserID,
			PostID:   post.ID,
			EntityID: entity.ID,
			Public:   ref.Public,
		}
		if ref.Post != "" {
			target := ref.Post
			mention.TargetPost = &target
		}
		if err := tx.Create(&mention).Error; err != nil {
			return nil, fmt.Errorf("create mention: %w", err)
		}
		created = append(created, mention)
	}
	return created, nil
}

// LinkPosts 写入一条从 from 指向 to 的提及边，用于双向提及。
func (g *MentionGraph) LinkPosts(tx *gorm.DB, from, to *db.Post) (db.Mention, error) {
	target := to.PublicID
	mention := db.Mention{
		UserID:     from.UserID,
		PostID:     from.ID,
		EntityID:   to.EntityID,
		TargetPost: &target,
	}
	if err := tx.Create(&mention).Error; err != nil {
		return db.Mention{}, fmt.Errorf("link posts: %w", err)
	}
	return mention, nil
}

// MentionsOf 按创建顺序返回文章的提及边。
func (g *MentionGraph) MentionsOf(postID uint) ([]db.Mention, error) {
	var mentions []db.Mention
	if err := g.db.Where("post_id = ?", postID).Order("id asc").Find(&mentions).Error; err != nil {
		return nil, err
	}
	return mentions, nil
}
