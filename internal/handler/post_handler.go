package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/service"
)

const maxMultipartMemory = 32 << 20

type newVersionRequest struct {
	Content json.RawMessage `json:"content"`
	Parent  string          `json:"parent"`
}

// CreatePost 写入一篇新文章或一个带父版本的新版本。
// 请求体为 JSON 信封，或 multipart 表单：envelope 字段加 attach[分类] 文件。
func (a *API) CreatePost(c *gin.Context) {
	var env service.Envelope
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		parsed, err := envelopeFromMultipart(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		env = parsed
	} else if !bindJSON(c, &env, "invalid post envelope") {
		return
	}

	post, err := a.pipeline.CreateFromEnvelope(c.Request.Context(), env, currentUser(c))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ProjectPost(post))
}

// GetPost 返回文章的最新版本。
func (a *API) GetPost(c *gin.Context) {
	post, err := a.versions.LatestVersion(c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ProjectPost(post))
}

// ListVersions 返回文章的全部版本及当前的 tip 列表。
func (a *API) ListVersions(c *gin.Context) {
	publicID := c.Param("id")
	posts, err := a.versions.Versions(publicID)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	tips, err := a.versions.Tips(publicID)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	versions := make([]service.Projection, 0, len(posts))
	for i := range posts {
		versions = append(versions, service.ProjectPost(&posts[i]))
	}
	tipIDs := make([]string, 0, len(tips))
	for _, tip := range tips {
		tipIDs = append(tipIDs, tip.Version)
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions, "tips": tipIDs})
}

// GetVersion 返回指定版本。
func (a *API) GetVersion(c *gin.Context) {
	post, err := a.versions.Get(c.Param("id"), c.Param("version"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ProjectPost(post))
}

// CreateVersion 基于已有版本写入新版本。
// 请求体为空时原样重新保存，否则以 content 替换内容；parent 缺省为最新版本。
func (a *API) CreateVersion(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req newVersionRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid version request")
			return
		}
	}

	existing, err := a.baseVersion(c.Param("id"), req.Parent)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	var post *db.Post
	if req.Content == nil {
		post, err = a.pipeline.SaveVersion(c.Request.Context(), existing, currentUser(c))
	} else {
		post, err = a.pipeline.CreateNewVersion(c.Request.Context(), existing, req.Content, currentUser(c))
	}
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ProjectPost(post))
}

func (a *API) baseVersion(publicID, version string) (*db.Post, error) {
	if strings.TrimSpace(version) == "" {
		return a.versions.LatestVersion(publicID)
	}
	return a.versions.Get(publicID, version)
}

func envelopeFromMultipart(c *gin.Context) (service.Envelope, error) {
	var env service.Envelope
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return env, fmt.Errorf("invalid multipart body: %w", err)
	}
	form := c.Request.MultipartForm

	raw := form.Value["envelope"]
	if len(raw) == 0 {
		return env, fmt.Errorf("missing envelope field")
	}
	if err := json.Unmarshal([]byte(raw[0]), &env); err != nil {
		return env, fmt.Errorf("invalid post envelope")
	}

	// 字段名排序后逐个读取，保证附件顺序稳定。
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		category, ok := attachmentCategory(field)
		if !ok {
			continue
		}
		for _, header := range form.File[field] {
			attachment, err := readAttachment(header, category)
			if err != nil {
				return env, err
			}
			env.Attachments = append(env.Attachments, attachment)
		}
	}
	return env, nil
}

func attachmentCategory(field string) (string, bool) {
	if !strings.HasPrefix(field, "attach[") || !strings.HasSuffix(field, "]") {
		return "", false
	}
	category := strings.TrimSuffix(strings.TrimPrefix(field, "attach["), "]")
	return category, category != ""
}

func readAttachment(header *multipart.FileHeader, category string) (service.AttachmentInput, error) {
	file, err := header.Open()
	if err != nil {
		return service.AttachmentInput{}, fmt.Errorf("open attachment %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.AttachmentInput{}, fmt.Errorf("read attachment %s: %w", header.Filename, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return service.AttachmentInput{
		Name:        header.Filename,
		Category:    category,
		ContentType: contentType,
		Data:        data,
	}, nil
}
