package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/tentpost/internal/handler"
	"github.com/tentpost/internal/logging"
	"go.uber.org/zap"
)

const sessionName = "tentpost_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/login", api.Login)
	r.GET("/logout", api.Logout)

	// 需要认证的路由
	auth := r.Group("")
	auth.Use(api.AuthRequired())
	{
		auth.POST("/posts", api.CreatePost)
		auth.GET("/posts/:id", api.GetPost)
		auth.GET("/posts/:id/versions", api.ListVersions)
		auth.GET("/posts/:id/versions/:version", api.GetVersion)
		auth.POST("/posts/:id/versions", api.CreateVersion)
		auth.GET("/attachments/:digest", api.GetAttachment)
	}

	return r
}
