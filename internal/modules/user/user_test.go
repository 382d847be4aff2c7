package user

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/database"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	jwtpkg "github.com/tidings-space/core/internal/pkg/jwt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.AppConfig{
		Site: config.SiteConfig{Name: "Tidings", BaseURL: "https://tidings.example.com"},
	}
	engine := watch.NewEngine(db, cfg)
	return NewService(db, engine), db
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	u, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22", Email: "zoe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "zoe", u.Name, "name defaults to username")
	assert.NotEqual(t, "hunter22", u.Password, "password must be hashed")

	token, logged, err := svc.Login("zoe", "hunter22", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	require.NotNil(t, logged.LastLoginTime)

	claims, err := jwtpkg.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22"})
	require.NoError(t, err)
	_, err = svc.Register(&RegisterDTO{Username: "zoe", Password: "other-pass"})
	assert.EqualError(t, err, "username already taken")
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)

	_, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22"})
	require.NoError(t, err)

	_, _, err = svc.Login("nobody", "hunter22", "")
	assert.EqualError(t, err, "user not found")

	_, _, err = svc.Login("zoe", "wrong", "")
	assert.EqualError(t, err, "wrong password")

	require.NoError(t, db.Model(&models.UserModel{}).Where("username = ?", "zoe").
		Update("is_active", false).Error)
	_, _, err = svc.Login("zoe", "hunter22", "")
	assert.EqualError(t, err, "user deactivated")
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	u, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22"})
	require.NoError(t, err)

	assert.EqualError(t, svc.ChangePassword(u.ID, "wrong", "new-pass-1"), "wrong password")
	require.NoError(t, svc.ChangePassword(u.ID, "hunter22", "new-pass-1"))

	_, _, err = svc.Login("zoe", "new-pass-1", "")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	u, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22"})
	require.NoError(t, err)

	name := "Zoe Q"
	email := "zoe@example.com"
	updated, err := svc.UpdateProfile(u.ID, &UpdateProfileDTO{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Zoe Q", updated.Name)
	assert.Equal(t, "zoe@example.com", updated.Email)

	missing, err := svc.UpdateProfile("missing", &UpdateProfileDTO{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeactivate_RemovesWatches(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)

	u, err := svc.Register(&RegisterDTO{Username: "zoe", Password: "hunter22", Email: "zoe@example.com"})
	require.NoError(t, err)

	w := models.WatchModel{EventType: "question:reply", ContentType: "question", UserID: &u.ID, Secret: "aaaaaaaaaa", IsActive: true}
	require.NoError(t, db.Create(&w).Error)

	require.NoError(t, svc.Deactivate(u.ID))

	got, err := svc.GetByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)

	var count int64
	require.NoError(t, db.Model(&models.WatchModel{}).Count(&count).Error)
	assert.Zero(t, count)
}
