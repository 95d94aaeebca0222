package service

import (
	"fmt"
	"sync"

	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/posttype"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TypeRegistry 负责类型记录的幂等查找或创建。
// 缓存只保存已确认提交的记录，由管线在事务提交后调用 Remember 写入。
type TypeRegistry struct {
	cache sync.Map
}

type typeRecord struct {
	typ  db.Type
	base db.TypeBase
}

// NewTypeRegistry 创建 TypeRegistry。
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{}
}

// FindOrCreate 先写入基础类型，再写入引用它的完整类型。并发首次使用不会产生重复行。
func (r *TypeRegistry) FindOrCreate(tx *gorm.DB, typeString string) (db.Type, db.TypeBase, error) {
	if cached, ok := r.cache.Load(typeString); ok {
		record := cached.(typeRecord)
		return record.typ, record.base, nil
	}

	parsed, err := posttype.Parse(typeString)
	if err != nil {
		return db.Type{}, db.TypeBase{}, fmt.Errorf("%w: type %q", ErrValidation, typeString)
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "base"}},
		DoNothing: true,
	}).Create(&db.TypeBase{Base: parsed.Base}).Error; err != nil {
		return db.Type{}, db.TypeBase{}, fmt.Errorf("upsert type base %s: %w", parsed.Base, err)
	}

	var base db.TypeBase
	if err := tx.Where("base = ?", parsed.Base).First(&base).Error; err != nil {
		return db.Type{}, db.TypeBase{}, fmt.Errorf("load type base %s: %w", parsed.Base, err)
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "type"}},
		DoNothing: true,
	}).Create(&db.Type{Type: typeString, TypeBaseID: base.ID}).Error; err != nil {
		return db.Type{}, db.TypeBase{}, fmt.Errorf("upsert type %s: %w", typeString, err)
	}

	var typ db.Type
	if err := tx.Where("type = ?", typeString).First(&typ).Error; err != nil {
		return db.Type{}, db.TypeBase{}, fmt.Errorf("load type %s: %w", typeString, err)
	}

	return typ, base, nil
}

// Remember 缓存已提交的类型记录。
func (r *TypeRegistry) Remember(typ db.Type, base db.TypeBase) {
	if typ.ID == 0 || base.ID == 0 {
		return
	}
	r.cache.Store(typ.Type, typeRecord{typ: typ, base: base})
}

// BaseByID 读取基础类型记录。
func (r *TypeRegistry) BaseByID(tx *gorm.DB, id uint) (db.TypeBase, error) {
	var base db.TypeBase
	if err := tx.First(&base, id).Error; err != nil {
		return db.TypeBase{}, fmt.Errorf("load type base %d: %w", id, err)
	}
	return base, nil
}
