package watch

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/pkg/filterhash"
	pkgmail "github.com/tidings-space/core/internal/pkg/mail"
	"github.com/tidings-space/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Alphabet for watch secrets: letters and digits minus the visually
// confusable 0/O, 1/l/I.
const secretChars = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const secretLength = 10

// MailSender dispatches a single message. Satisfied by *mail.Sender.
type MailSender interface {
	Send(msg pkgmail.Message) error
}

// Engine implements the watch lifecycle and event fan-out.
type Engine struct {
	db     *gorm.DB
	cfg    *config.AppConfig
	sender MailSender
	queue  *taskqueue.Service
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSender sets the mail sender used for activation emails and fan-out.
func WithSender(s MailSender) Option { return func(e *Engine) { e.sender = s } }

// WithQueue enables delayed firing through the task queue.
func WithQueue(q *taskqueue.Service) Option { return func(e *Engine) { e.queue = q } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func NewEngine(db *gorm.DB, cfg *config.AppConfig, opts ...Option) *Engine {
	e := &Engine{db: db, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.sender == nil {
		e.sender = pkgmail.New(pkgmail.BuildMailConfig(cfg))
	}
	return e
}

// DB exposes the underlying handle for admin queries.
func (e *Engine) DB() *gorm.DB { return e.db }

// Notify registers the owner's interest in the event's scope and returns
// the existing or newly created watch.
//
// There is deliberately no lock between the existence check and the
// create: two concurrent callers may both create a watch. StopNotifying
// deletes every match and fan-out deduplicates by email, so duplicate rows
// are benign.
func (e *Engine) Notify(ev Event, owner Identity, filters map[string]any) (*models.WatchModel, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	desc := ev.Descriptor()
	hashed, err := hashFilters(desc, filters)
	if err != nil {
		return nil, err
	}

	var existing []models.WatchModel
	if err := e.exactMatchQuery(desc, ev.SubjectID(), owner, hashed).
		Limit(1).Find(&existing).Error; err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	w := models.WatchModel{
		EventType:   desc.Kind,
		ContentType: desc.ContentType,
		SubjectID:   ev.SubjectID(),
		Secret:      secret,
		IsActive:    owner.Authenticated() || !e.cfg.ConfirmAnonymousWatches(),
	}
	if owner.Authenticated() {
		w.UserID = &owner.User.ID
	} else {
		w.Email = owner.Email
	}
	for name, value := range hashed {
		w.Filters = append(w.Filters, models.WatchFilterModel{Name: name, Value: value})
	}
	if err := e.db.Create(&w).Error; err != nil {
		return nil, err
	}

	if !w.IsActive {
		if err := e.sendActivationEmail(&w, desc); err != nil {
			// Roll back: an inactive watch whose activation mail was never
			// delivered could never be activated.
			e.db.Where("watch_id = ?", w.ID).Delete(&models.WatchFilterModel{})
			e.db.Unscoped().Delete(&models.WatchModel{}, "id = ?", w.ID)
			return nil, &ActivationRequestFailed{Email: owner.Email, Err: err}
		}
	}
	return &w, nil
}

// StopNotifying deletes every watch matching the owner and the exact
// filter set, regardless of active state. Deleting nothing is not an
// error, and duplicates from racing Notify calls are all removed.
func (e *Engine) StopNotifying(ev Event, owner Identity, filters map[string]any) error {
	if owner.IsZero() {
		return nil
	}
	desc := ev.Descriptor()
	hashed, err := hashFilters(desc, filters)
	if err != nil {
		return err
	}

	var ids []string
	if err := e.exactMatchQuery(desc, ev.SubjectID(), owner, hashed).
		Pluck("watches.id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.db.Where("watch_id IN ?", ids).Delete(&models.WatchFilterModel{}).Error; err != nil {
		return err
	}
	return e.db.Delete(&models.WatchModel{}, "id IN ?", ids).Error
}

// IsNotifying reports whether the owner has a watch with the exact filter
// set. Always false for the unauthenticated sentinel identity.
func (e *Engine) IsNotifying(ev Event, owner Identity, filters map[string]any) (bool, error) {
	if owner.IsZero() {
		return false, nil
	}
	desc := ev.Descriptor()
	hashed, err := hashFilters(desc, filters)
	if err != nil {
		return false, err
	}
	var count int64
	if err := e.exactMatchQuery(desc, ev.SubjectID(), owner, hashed).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// secretMatch loads a watch by id and compares the secret byte for byte
// in Go. MySQL's default collation is case-insensitive, which would fold
// the mixed-case secret alphabet if the check ran in SQL.
func (e *Engine) secretMatch(watchID, secret string) (*models.WatchModel, error) {
	var w models.WatchModel
	err := e.db.Where("id = ?", watchID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w.Secret != secret {
		return nil, nil
	}
	return &w, nil
}

// Activate turns on a watch given its id and secret. Idempotent; a
// mismatched secret or unknown id is a silent no-op so the endpoint does
// not leak which watch ids exist.
func (e *Engine) Activate(watchID, secret string) error {
	if watchID == "" || secret == "" {
		return nil
	}
	w, err := e.secretMatch(watchID, secret)
	if err != nil || w == nil {
		return err
	}
	return e.db.Model(&models.WatchModel{}).
		Where("id = ?", w.ID).
		Update("is_active", true).Error
}

// Unwatch deletes a watch given its id and secret. Same no-op semantics as
// Activate.
func (e *Engine) Unwatch(watchID, secret string) error {
	if watchID == "" || secret == "" {
		return nil
	}
	w, err := e.secretMatch(watchID, secret)
	if err != nil || w == nil {
		return err
	}
	if err := e.db.Where("watch_id = ?", w.ID).Delete(&models.WatchFilterModel{}).Error; err != nil {
		return err
	}
	return e.db.Delete(&models.WatchModel{}, "id = ?", w.ID).Error
}

// DeleteForUser removes every watch owned by a registered user. Called
// when the account is deleted or deactivated, so resolution never has to
// join against user state.
func (e *Engine) DeleteForUser(userID string) error {
	if userID == "" {
		return nil
	}
	var ids []string
	if err := e.db.Model(&models.WatchModel{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.db.Where("watch_id IN ?", ids).Delete(&models.WatchFilterModel{}).Error; err != nil {
		return err
	}
	return e.db.Delete(&models.WatchModel{}, "id IN ?", ids).Error
}

// DeleteByEmails removes anonymous watches for the given addresses.
// Registered-owner watches store an empty email, so blank entries are
// dropped and the query is pinned to user_id IS NULL.
func (e *Engine) DeleteByEmails(emails []string) (int64, error) {
	addrs := make([]string, 0, len(emails))
	for _, email := range emails {
		if email != "" {
			addrs = append(addrs, email)
		}
	}
	if len(addrs) == 0 {
		return 0, nil
	}
	var ids []string
	if err := e.db.Model(&models.WatchModel{}).
		Where("user_id IS NULL AND email IN ?", addrs).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := e.db.Where("watch_id IN ?", ids).Delete(&models.WatchFilterModel{}).Error; err != nil {
		return 0, err
	}
	result := e.db.Delete(&models.WatchModel{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

// PurgeUnactivated hard-deletes anonymous watches that were never
// activated before the cutoff. Run from the cleanup cron job.
func (e *Engine) PurgeUnactivated(cutoff time.Time) (int64, error) {
	var ids []string
	if err := e.db.Model(&models.WatchModel{}).
		Where("is_active = ? AND user_id IS NULL AND created_at < ?", false, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := e.db.Where("watch_id IN ?", ids).Delete(&models.WatchFilterModel{}).Error; err != nil {
		return 0, err
	}
	result := e.db.Unscoped().Delete(&models.WatchModel{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

// exactMatchQuery builds the "same owner, same scope, exactly this filter
// set" query shared by Notify, StopNotifying and IsNotifying. Subset
// matches do not count: the attached filter row count must equal the call's.
func (e *Engine) exactMatchQuery(desc Descriptor, subjectID *string, owner Identity, hashed map[string]uint32) *gorm.DB {
	tx := e.db.Model(&models.WatchModel{}).
		Where("event_type = ?", desc.Kind).
		Where("content_type = ?", desc.ContentType)
	if subjectID != nil {
		tx = tx.Where("subject_id = ?", *subjectID)
	} else {
		tx = tx.Where("subject_id IS NULL")
	}
	if owner.Authenticated() {
		tx = tx.Where("user_id = ?", owner.User.ID)
	} else {
		tx = tx.Where("user_id IS NULL AND email = ?", owner.Email)
	}
	for name, value := range hashed {
		tx = tx.Where(
			"EXISTS (SELECT 1 FROM watch_filters wf WHERE wf.watch_id = watches.id AND wf.name = ? AND wf.value = ?)",
			name, value,
		)
	}
	return tx.Where(
		"(SELECT COUNT(*) FROM watch_filters wf WHERE wf.watch_id = watches.id) = ?",
		len(hashed),
	)
}

func (e *Engine) sendActivationEmail(w *models.WatchModel, desc Descriptor) error {
	activateURL, err := e.watchURL("activate", w)
	if err != nil {
		return err
	}
	msg, err := pkgmail.BuildWatchActivate(w.Email, pkgmail.WatchActivateData{
		SiteName:        e.cfg.Site.Name,
		WhatDescription: desc.Description,
		ActivateURL:     activateURL,
	})
	if err != nil {
		return err
	}
	return e.sender.Send(msg)
}

// watchURL builds the activation/unsubscribe link for a watch.
func (e *Engine) watchURL(action string, w *models.WatchModel) (string, error) {
	base := strings.TrimSpace(e.cfg.Site.BaseURL)
	if base == "" {
		return "", fmt.Errorf("site base_url is not configured")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid site base_url")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v2/watches/" + action
	q := u.Query()
	q.Set("watch", w.ID)
	q.Set("secret", w.Secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// UnsubscribeURL is the public link that deletes a watch without login.
func (e *Engine) UnsubscribeURL(w *models.WatchModel) string {
	u, err := e.watchURL("unsubscribe", w)
	if err != nil {
		return ""
	}
	return u
}

func checkOwner(owner Identity) error {
	if owner.IsZero() {
		return ErrUnsavedOwner
	}
	if owner.Authenticated() && owner.User.ID == "" {
		return ErrUnsavedOwner
	}
	return nil
}

// hashFilters validates filter names against the descriptor and hashes the
// values into the stored uint32 domain.
func hashFilters(desc Descriptor, filters map[string]any) (map[string]uint32, error) {
	hashed := make(map[string]uint32, len(filters))
	for name, value := range filters {
		if !desc.allowsFilter(name) {
			return nil, fmt.Errorf("%w: %q is not declared for event %q", ErrUnsupportedFilter, name, desc.Kind)
		}
		h, err := filterhash.Hash(value)
		if err != nil {
			return nil, err
		}
		hashed[name] = h
	}
	return hashed, nil
}

func newSecret() (string, error) {
	// Reject bytes past the largest multiple of the alphabet size so
	// every character is drawn with equal probability.
	const limit = 256 - 256%len(secretChars)
	out := make([]byte, 0, secretLength)
	buf := make([]byte, secretLength)
	for len(out) < secretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, secretChars[int(b)%len(secretChars)])
			if len(out) == secretLength {
				break
			}
		}
	}
	return string(out), nil
}
