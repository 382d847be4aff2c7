package kb

import (
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/database"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	pkgmail "github.com/tidings-space/core/internal/pkg/mail"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captureSender struct {
	mu   sync.Mutex
	sent []pkgmail.Message
}

func (s *captureSender) Send(msg pkgmail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) messages() []pkgmail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pkgmail.Message(nil), s.sent...)
}

func newTestService(t *testing.T) (*Service, *captureSender, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	sender := &captureSender{}
	cfg := &config.AppConfig{
		Site: config.SiteConfig{Name: "Tidings", BaseURL: "https://tidings.example.com"},
	}
	disabled := false
	cfg.Watch.ConfirmAnonymous = &disabled

	engine := watch.NewEngine(db, cfg, watch.WithSender(sender))
	events := NewEvents(db, cfg, engine)
	return NewService(db, engine, events), sender, db
}

func createKBUser(t *testing.T, db *gorm.DB, username, email string) *models.UserModel {
	t.Helper()
	u := &models.UserModel{Username: username, Name: username, Email: email, Password: "x", IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestCreateDocument_DefaultLocale(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	doc, err := svc.CreateDocument(&CreateDocumentDTO{Title: "Install Guide", Slug: "install-guide"})
	require.NoError(t, err)
	assert.Equal(t, "en-US", doc.Locale)

	doc, err = svc.CreateDocument(&CreateDocumentDTO{Title: "Anleitung", Slug: "anleitung", Locale: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de", doc.Locale)
}

func TestCreateRevision_NotifiesDocumentAndLocaleWatchers(t *testing.T) {
	t.Parallel()
	svc, sender, db := newTestService(t)
	author := createKBUser(t, db, "author", "author@example.com")

	_, err := svc.CreateDocument(&CreateDocumentDTO{Title: "Install Guide", Slug: "install-guide"})
	require.NoError(t, err)

	_, err = svc.WatchDocument("install-guide", watch.ForEmail("doc-watcher@example.com"))
	require.NoError(t, err)
	_, err = svc.WatchLocale("en-US", watch.ForEmail("en-reviewer@example.com"))
	require.NoError(t, err)
	_, err = svc.WatchLocale("de", watch.ForEmail("de-reviewer@example.com"))
	require.NoError(t, err)

	rev, err := svc.CreateRevision(t.Context(), "install-guide", &CreateRevisionDTO{Content: "new text"}, author.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rev.ID)

	var got []string
	for _, m := range sender.messages() {
		got = append(got, m.To...)
		assert.Contains(t, m.Subject, "Install Guide")
	}
	assert.ElementsMatch(t, []string{"doc-watcher@example.com", "en-reviewer@example.com"}, got,
		"the de reviewer's locale filter does not match")
}

func TestCreateRevision_ExcludesAuthor(t *testing.T) {
	t.Parallel()
	svc, sender, db := newTestService(t)
	author := createKBUser(t, db, "author", "author@example.com")

	_, err := svc.CreateDocument(&CreateDocumentDTO{Title: "Guide", Slug: "guide"})
	require.NoError(t, err)
	_, err = svc.WatchDocument("guide", watch.ForUser(author))
	require.NoError(t, err)

	_, err = svc.CreateRevision(t.Context(), "guide", &CreateRevisionDTO{Content: "v2"}, author.ID)
	require.NoError(t, err)
	assert.Empty(t, sender.messages())
}

func TestCreateRevision_DocumentNotFound(t *testing.T) {
	t.Parallel()
	svc, _, db := newTestService(t)
	author := createKBUser(t, db, "author", "author@example.com")

	_, err := svc.CreateRevision(t.Context(), "missing", &CreateRevisionDTO{Content: "x"}, author.ID)
	assert.ErrorIs(t, err, errDocumentNotFound)
}

func TestWatchLocale_Lifecycle(t *testing.T) {
	t.Parallel()
	svc, _, db := newTestService(t)
	reviewer := createKBUser(t, db, "reviewer", "reviewer@example.com")
	owner := watch.ForUser(reviewer)

	watching, err := svc.IsWatchingLocale("de", owner)
	require.NoError(t, err)
	assert.False(t, watching)

	_, err = svc.WatchLocale("de", owner)
	require.NoError(t, err)

	watching, err = svc.IsWatchingLocale("de", owner)
	require.NoError(t, err)
	assert.True(t, watching)

	// A watch on "de" is not a watch on "en-US".
	watching, err = svc.IsWatchingLocale("en-US", owner)
	require.NoError(t, err)
	assert.False(t, watching)

	require.NoError(t, svc.UnwatchLocale("de", owner))
	watching, err = svc.IsWatchingLocale("de", owner)
	require.NoError(t, err)
	assert.False(t, watching)
}

func TestGetDocumentBySlug(t *testing.T) {
	t.Parallel()
	svc, _, db := newTestService(t)
	author := createKBUser(t, db, "author", "author@example.com")

	_, err := svc.CreateDocument(&CreateDocumentDTO{Title: "Guide", Slug: "guide"})
	require.NoError(t, err)
	_, err = svc.CreateRevision(t.Context(), "guide", &CreateRevisionDTO{Content: "v1"}, author.ID)
	require.NoError(t, err)

	doc, err := svc.GetDocumentBySlug("guide")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.Revisions, 1)

	doc, err = svc.GetDocumentBySlug("missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}
