package router_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/handler"
	"github.com/tentpost/internal/router"
	"github.com/tentpost/internal/service"
	"gorm.io/gorm"
)

const (
	appType     = "https://tent.io/types/app/v0#"
	appAuthType = "https://tent.io/types/app-auth/v0#"
	entityURI   = "https://alice.example.com"
	baseURL     = "http://tentpost.test"
)

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(t *testing.T, handler http.Handler) *localClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) *http.Response {
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	c.jar.SetCookies(req.URL, resp.Cookies())
	return resp
}

func (c *localClient) postJSON(t *testing.T, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp := c.Do(req)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func newE2E(t *testing.T) (*localClient, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:tentpost-e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.DriverSQLite, dsn, true)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	pipeline := service.NewPipeline(gdb, service.PipelineConfig{})
	accounts := service.NewAccountService(gdb, pipeline.Mentions())
	_, err = accounts.EnsureUser("admin", "e2e-secret", entityURI)
	require.NoError(t, err)

	engine := router.SetupRouter(handler.NewAPI(pipeline, accounts, nil), "test-session-secret", nil)
	client := newLocalClient(t, engine)

	status, body := client.postJSON(t, "/login", `{"username":"admin","password":"e2e-secret"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	return client, gdb
}

func TestE2E_AppAuthorization(t *testing.T) {
	client, gdb := newE2E(t)

	status, body := client.postJSON(t, "/posts", `{
		"type": "`+appType+`",
		"content": {
			"name": "Notes",
			"description": "note taking",
			"url": "https://notes.example.com",
			"redirect_uri": "https://notes.example.com/callback",
			"types": {"read": ["https://tent.io/types/status/v0"], "write": []},
			"scopes": ["permissions"]
		}
	}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var appPost service.Projection
	require.NoError(t, json.Unmarshal(body, &appPost))

	var app db.App
	require.NoError(t, gdb.Where("public_id = ?", appPost.ID).First(&app).Error)
	assert.Equal(t, "Notes", app.Name)
	assert.Empty(t, app.AuthCode)

	status, body = client.postJSON(t, "/posts", `{
		"type": "`+appAuthType+`",
		"content": {"active": true},
		"mentions": [{"entity": "`+entityURI+`", "post": "`+appPost.ID+`"}]
	}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	require.NoError(t, gdb.First(&app, app.ID).Error)
	assert.Len(t, app.AuthCode, 64)

	var credentials int64
	require.NoError(t, gdb.Model(&db.Post{}).Where("type = ?", service.TypeCredentials).Count(&credentials).Error)
	assert.Equal(t, int64(1), credentials)

	// 没有提及 app 的授权会整体回滚。
	status, body = client.postJSON(t, "/posts", `{"type": "`+appAuthType+`", "content": {}}`)
	assert.Equal(t, http.StatusInternalServerError, status, string(body))

	var authPosts int64
	require.NoError(t, gdb.Model(&db.Post{}).Where("type = ?", appAuthType).Count(&authPosts).Error)
	assert.Equal(t, int64(1), authPosts)
}

func TestE2E_VersionHistory(t *testing.T) {
	client, _ := newE2E(t)

	status, body := client.postJSON(t, "/posts", `{"type":"https://tent.io/types/status/v0#","content":{"text":"draft"},"permissions":{"public":false}}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var root service.Projection
	require.NoError(t, json.Unmarshal(body, &root))
	require.NotNil(t, root.Permissions)

	status, body = client.postJSON(t, "/posts/"+root.ID+"/versions", `{"content":{"text":"final"}}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var next service.Projection
	require.NoError(t, json.Unmarshal(body, &next))
	require.NotNil(t, next.Permissions, "new versions keep the post private")

	req, err := http.NewRequest(http.MethodGet, baseURL+"/posts/"+root.ID, nil)
	require.NoError(t, err)
	resp := client.Do(req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var latest service.Projection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, next.Version.ID, latest.Version.ID)
	assert.JSONEq(t, `{"text":"final"}`, string(latest.Content))
}
