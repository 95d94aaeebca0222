package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/tentpost/internal/service"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	currentUserKey     = "current_user"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login 校验账号密码并写入会话，支持表单与 JSON。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid login request")
		return
	}

	user, err := a.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username, "entity": user.Entity})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Status(http.StatusNoContent)
}

// AuthRequired 从会话载入当前用户，未登录时返回 401。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(sessionUserIDKey))
		if !ok {
			respondError(c, http.StatusUnauthorized, "login required")
			c.Abort()
			return
		}

		user, err := a.accounts.CurrentUser(userID)
		if err != nil {
			a.respondServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) service.CurrentUser {
	if value, exists := c.Get(currentUserKey); exists {
		if user, ok := value.(service.CurrentUser); ok {
			return user
		}
	}
	return service.CurrentUser{}
}

func sessionUserID(value interface{}) (uint, bool) {
	switch id := value.(type) {
	case uint:
		return id, id != 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	default:
		return 0, false
	}
}
