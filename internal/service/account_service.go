package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tentpost/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountService 提供账号查找与登录校验，账号生命周期管理不在此处。
type AccountService struct {
	db       *gorm.DB
	mentions *MentionGraph
}

// NewAccountService creates an AccountService instance.
func NewAccountService(gdb *gorm.DB, mentions *MentionGraph) *AccountService {
	return &AccountService{db: gdb, mentions: mentions}
}

// EnsureUser 存在性检查：若账号不存在，则以 bcrypt 哈希密码创建并绑定实体。
// 用户名、密码或实体为空时不做任何操作。
func (s *AccountService) EnsureUser(username, password, entity string) (*db.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	entity = strings.TrimSpace(entity)
	if username == "" || password == "" || entity == "" {
		return nil, nil
	}

	var user db.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).First(&user).Error; err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		resolved, err := s.mentions.ResolveEntity(tx, entity)
		if err != nil {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user = db.User{
			Username: username,
			Password: string(hashed),
			EntityID: resolved.ID,
			Entity:   resolved.Entity,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", username, err)
	}
	return &user, nil
}

// Authenticate 校验用户名与密码。
func (s *AccountService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// CurrentUser 按账号 ID 构造写入所需的当前用户。
func (s *AccountService) CurrentUser(userID uint) (CurrentUser, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CurrentUser{}, ErrUserNotFound
		}
		return CurrentUser{}, err
	}
	return CurrentUserOf(&user), nil
}

// CurrentUserByName 按用户名构造当前用户。
func (s *AccountService) CurrentUserByName(username string) (CurrentUser, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CurrentUser{}, ErrUserNotFound
		}
		return CurrentUser{}, err
	}
	return CurrentUserOf(&user), nil
}

// CurrentUserOf 将账号转换为 CurrentUser。
func CurrentUserOf(user *db.User) CurrentUser {
	return CurrentUser{ID: user.ID, EntityID: user.EntityID, Entity: user.Entity}
}
