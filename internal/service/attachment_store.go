package service

import (
	"errors"
	"fmt"

	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttachmentStore 以 (digest, size) 为键保存去重后的附件数据块。
// 唯一索引加上冲突容忍的插入保证并发上传同一内容时只有一行。
type AttachmentStore struct {
	db          *gorm.DB
	compression string
}

// Blob 是解压后的附件数据。
type Blob struct {
	ID     uint
	Digest string
	Size   int64
	Data   []byte
}

// NewAttachmentStore 创建 AttachmentStore，compression 取 zstd 或 none。
func NewAttachmentStore(gdb *gorm.DB, compression string) *AttachmentStore {
	if compression != BlobCompressionZstd {
		compression = BlobCompressionNone
	}
	return &AttachmentStore{db: gdb, compression: compression}
}

// FindOrCreateBlob 返回数据块 ID，已存在时不会重写数据。
// 调用方必须事先校验 digest 确实由 data 计算得出。
func (s *AttachmentStore) FindOrCreateBlob(tx *gorm.DB, digest string, size int64, data []byte) (uint, error) {
	stored, compression := encodeBlob(data, s.compression)
	blob := db.Attachment{
		Digest:      digest,
		Size:        size,
		Compression: compression,
		Data:        stored,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "digest"}, {Name: "size"}},
		DoNothing: true,
	}).Create(&blob).Error; err != nil {
		return 0, fmt.Errorf("upsert blob %s: %w", digest, err)
	}

	return s.blobID(tx, digest, size)
}

// Link 为文章写入一条附件关联，内容类型按关联独立保存。
func (s *AttachmentStore) Link(tx *gorm.DB, post *db.Post, blobID uint, ref db.AttachmentRef, contentType string) (db.PostAttachment, error) {
	link := db.PostAttachment{
		PostID:       post.ID,
		AttachmentID: blobID,
		ContentType:  contentType,
		Name:         ref.Name,
		Category:     ref.Category,
	}
	if err := tx.Create(&link).Error; err != nil {
		return db.PostAttachment{}, fmt.Errorf("link attachment %s: %w", ref.Digest, err)
	}
	return link, nil
}

// Open 读取并解压数据块。
func (s *AttachmentStore) Open(digest string, size int64) (*Blob, error) {
	var blob db.Attachment
	if err := s.db.Where("digest = ? AND size = ?", digest, size).First(&blob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}

	data, err := decodeBlob(blob.Data, blob.Compression, blob.Size)
	if err != nil {
		return nil, err
	}
	return &Blob{ID: blob.ID, Digest: blob.Digest, Size: blob.Size, Data: data}, nil
}

// LinksOf 按创建顺序返回文章的附件关联。
func (s *AttachmentStore) LinksOf(postID uint) ([]db.PostAttachment, error) {
	var links []db.PostAttachment
	if err := s.db.Where("post_id = ?", postID).Order("id asc").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (s *AttachmentStore) blobID(tx *gorm.DB, digest string, size int64) (uint, error) {
	var existing db.Attachment
	if err := tx.Select("id").Where("digest = ? AND size = ?", digest, size).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrBlobNotFound
		}
		return 0, fmt.Errorf("load blob %s: %w", digest, err)
	}
	return existing.ID, nil
}

// OpenByDigest 按摘要读取数据块，并返回首个关联声明的内容类型。
// 同一摘要对应多个长度时取最早写入的一条。
func (s *AttachmentStore) OpenByDigest(digest string) (*Blob, string, error) {
	var blob db.Attachment
	if err := s.db.Select("id", "size").Where("digest = ?", digest).Order("id asc").First(&blob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrBlobNotFound
		}
		return nil, "", err
	}

	opened, err := s.Open(digest, blob.Size)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	var link db.PostAttachment
	err = s.db.Where("attachment_id = ?", blob.ID).Order("id asc").First(&link).Error
	switch {
	case err == nil:
		contentType = link.ContentType
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, "", err
	}
	return opened, contentType, nil
}
