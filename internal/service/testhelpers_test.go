package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
)

const (
	testStatusType  = "https://tent.io/types/status/v0#"
	testAppType     = "https://tent.io/types/app/v0#"
	testAppAuthType = "https://tent.io/types/app-auth/v0#"
	testEntity      = "https://alice.example.com"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tentpost-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.DriverSQLite, dsn, true)
	require.NoError(t, err, "open test database")
	require.NoError(t, db.Migrate(gdb), "migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username, entity string) CurrentUser {
	t.Helper()
	accounts := NewAccountService(gdb, NewMentionGraph(gdb))
	user, err := accounts.EnsureUser(username, "secret-password", entity)
	require.NoError(t, err)
	require.NotNil(t, user)
	return CurrentUserOf(user)
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func countRows(t *testing.T, gdb *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := gdb.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}
