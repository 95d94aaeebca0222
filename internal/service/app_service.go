package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppService 维护由 app 类型文章派生出的应用记录。
type AppService struct {
	db *gorm.DB
}

type appContent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
	Types       struct {
		Read  []string `json:"read"`
		Write []string `json:"write"`
	} `json:"types"`
}

// NewAppService creates an AppService instance.
func NewAppService(gdb *gorm.DB) *AppService {
	return &AppService{db: gdb}
}

// UpsertFromPost 以 (user, public_id) 为键创建或更新应用记录，auth_code 保持不变。
func (s *AppService) UpsertFromPost(tx *gorm.DB, post *db.Post) (*db.App, error) {
	var content appContent
	if post.Content != "" {
		if err := json.Unmarshal([]byte(post.Content), &content); err != nil {
			return nil, fmt.Errorf("%w: app content: %v", ErrValidation, err)
		}
	}

	app := db.App{
		UserID:      post.UserID,
		PublicID:    post.PublicID,
		PostID:      post.ID,
		Name:        content.Name,
		Description: content.Description,
		URL:         content.URL,
		RedirectURI: content.RedirectURI,
		ReadTypes:   content.Types.Read,
		WriteTypes:  content.Types.Write,
		Scopes:      content.Scopes,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "public_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"post_id", "name", "description", "url", "redirect_uri",
			"read_types", "write_types", "scopes", "updated_at",
		}),
	}).Create(&app).Error; err != nil {
		return nil, fmt.Errorf("upsert app %s: %w", post.PublicID, err)
	}

	return s.find(tx, post.UserID, post.PublicID)
}

// FindByPublicID 返回用户名下指定应用。
func (s *AppService) FindByPublicID(userID uint, publicID string) (*db.App, error) {
	return s.find(s.db, userID, publicID)
}

// SetAuthCode 写入应用的授权码。
func (s *AppService) SetAuthCode(tx *gorm.DB, appID uint, code string) error {
	result := tx.Model(&db.App{}).Where("id = ?", appID).Update("auth_code", code)
	if result.Error != nil {
		return fmt.Errorf("set auth code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: app %d missing", ErrIntegrity, appID)
	}
	return nil
}

func (s *AppService) find(tx *gorm.DB, userID uint, publicID string) (*db.App, error) {
	var app db.App
	if err := tx.Where("user_id = ? AND public_id = ?", userID, publicID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}
	return &app, nil
}
