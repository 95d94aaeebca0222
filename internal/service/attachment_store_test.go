package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tentpost/internal/canonical"
	"github.com/tentpost/internal/db"
)

func TestAttachmentStore_FindOrCreateBlobDoesNotRewrite(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := NewAttachmentStore(gdb, BlobCompressionNone)

	data := []byte("original bytes")
	digest := canonical.Digest(data)

	first, err := store.FindOrCreateBlob(gdb, digest, int64(len(data)), data)
	require.NoError(t, err)

	// 摘要由调用方保证；相同键的第二次写入不会覆盖数据。
	second, err := store.FindOrCreateBlob(gdb, digest, int64(len(data)), []byte("tampered bytes"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	blob, err := store.Open(digest, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)

	_, err = store.Open(digest, 999)
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestAttachmentStore_LinkKeepsPerLinkContentType(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := NewAttachmentStore(gdb, BlobCompressionZstd)

	data := bytes.Repeat([]byte("abc"), 200)
	digest := canonical.Digest(data)
	blobID, err := store.FindOrCreateBlob(gdb, digest, int64(len(data)), data)
	require.NoError(t, err)

	post := &db.Post{ID: 42}
	ref := db.AttachmentRef{Name: "file", Category: "docs", Digest: digest, Size: int64(len(data))}
	_, err = store.Link(gdb, post, blobID, ref, "text/plain")
	require.NoError(t, err)
	_, err = store.Link(gdb, post, blobID, ref, "text/csv")
	require.NoError(t, err)

	links, err := store.LinksOf(42)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "text/plain", links[0].ContentType)
	assert.Equal(t, "text/csv", links[1].ContentType)

	var stored db.Attachment
	require.NoError(t, gdb.First(&stored, blobID).Error)
	assert.Equal(t, BlobCompressionZstd, stored.Compression)
	assert.Less(t, len(stored.Data), len(data))

	blob, err := store.Open(digest, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)
}

func TestAttachmentStore_OpenByDigest(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := NewAttachmentStore(gdb, BlobCompressionNone)

	data := []byte("plain text body")
	digest := canonical.Digest(data)
	blobID, err := store.FindOrCreateBlob(gdb, digest, int64(len(data)), data)
	require.NoError(t, err)

	blob, contentType, err := store.OpenByDigest(digest)
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)
	assert.Equal(t, "application/octet-stream", contentType)

	_, err = store.Link(gdb, &db.Post{ID: 7}, blobID, db.AttachmentRef{Name: "body.txt", Digest: digest}, "text/plain")
	require.NoError(t, err)
	_, contentType, err = store.OpenByDigest(digest)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)

	_, _, err = store.OpenByDigest("sha512t256-missing")
	require.ErrorIs(t, err, ErrBlobNotFound)
}
