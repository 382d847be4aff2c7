package watch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/models"
	pkgmail "github.com/tidings-space/core/internal/pkg/mail"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// captureSender records outgoing messages instead of delivering them.
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

// failSender rejects every message.
type failSender struct{}

func (failSender) Send(pkgmail.Message) error { return errors.New("smtp unreachable") }

// testEvent is a minimal Event for engine tests.
type testEvent struct {
	kind    string
	ct      string
	subject *string
	values  map[string]any
	names   []string
}

func (e *testEvent) Descriptor() Descriptor {
	return Descriptor{
		Kind:        e.kind,
		ContentType: e.ct,
		Description: "a thing you watched",
		FilterNames: e.names,
	}
}

func (e *testEvent) SubjectID() *string           { return e.subject }
func (e *testEvent) FilterValues() map[string]any { return e.values }

func (e *testEvent) BuildMail(recipient Identity, watches []models.WatchModel) (pkgmail.Message, error) {
	return pkgmail.Message{
		To:      []string{recipient.Address()},
		Subject: "notification: " + e.kind,
		HTML:    "<p>something happened</p>",
	}, nil
}

func (e *testEvent) Payload() (json.RawMessage, error) {
	return json.Marshal(map[string]string{"kind": e.kind})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.UserModel{},
		&models.WatchModel{},
		&models.WatchFilterModel{},
	))
	return db
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	cfg := &config.AppConfig{
		Site: config.SiteConfig{Name: "Tidings", BaseURL: "https://tidings.example.com"},
	}
	e := NewEngine(newTestDB(t), cfg, append([]Option{WithSender(sender)}, opts...)...)
	return e, sender
}

func createUser(t *testing.T, db *gorm.DB, username, email string) *models.UserModel {
	t.Helper()
	u := &models.UserModel{Username: username, Name: username, Email: email, Password: "x", IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
