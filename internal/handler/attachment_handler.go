package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAttachment 按摘要返回附件数据，内容类型取自写入时的声明。
func (a *API) GetAttachment(c *gin.Context) {
	blob, contentType, err := a.attachments.OpenByDigest(c.Param("digest"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, blob.Data)
}
