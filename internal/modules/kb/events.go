package kb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	pkgmail "github.com/tidings-space/core/internal/pkg/mail"
	"gorm.io/gorm"
)

const (
	EventKindRevisionReady = "revision:ready"

	contentTypeDocument = "document"
	filterLocale        = "locale"
)

// Events builds and rebuilds the review event.
type Events struct {
	db     *gorm.DB
	cfg    *config.AppConfig
	engine *watch.Engine
}

func NewEvents(db *gorm.DB, cfg *config.AppConfig, engine *watch.Engine) *Events {
	return &Events{db: db, cfg: cfg, engine: engine}
}

func (e *Events) Register(r *watch.Registry) {
	r.Register(EventKindRevisionReady, func(payload json.RawMessage) (watch.Event, error) {
		var p revisionEventPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		var rev models.RevisionModel
		if err := e.db.First(&rev, "id = ?", p.RevisionID).Error; err != nil {
			return nil, fmt.Errorf("load revision %s: %w", p.RevisionID, err)
		}
		var doc models.DocumentModel
		if err := e.db.First(&doc, "id = ?", rev.DocumentID).Error; err != nil {
			return nil, fmt.Errorf("load document %s: %w", rev.DocumentID, err)
		}
		return &revisionReadyEvent{deps: e, doc: &doc, rev: &rev}, nil
	})
}

// Ready is the event fired when a revision awaits review. Watchers of the
// document (subject-scoped), of the locale (filter-scoped) and of all
// revisions (unscoped) all match.
func (e *Events) Ready(doc *models.DocumentModel, rev *models.RevisionModel) watch.Event {
	return &revisionReadyEvent{deps: e, doc: doc, rev: rev}
}

// DocumentRef returns an event bound to one document, for watch lifecycle
// calls scoped to it.
func (e *Events) DocumentRef(doc *models.DocumentModel) watch.Event {
	return &revisionReadyEvent{deps: e, doc: doc}
}

// LocaleRef returns an unbound event, for watch lifecycle calls scoped by
// the locale filter (or not scoped at all).
func (e *Events) LocaleRef() watch.Event {
	return &revisionReadyEvent{deps: e}
}

type revisionEventPayload struct {
	RevisionID string `json:"revision_id"`
}

type revisionReadyEvent struct {
	deps *Events
	doc  *models.DocumentModel
	rev  *models.RevisionModel
}

func (ev *revisionReadyEvent) Descriptor() watch.Descriptor {
	description := "revisions ready for review"
	if ev.doc != nil {
		description = fmt.Sprintf("revisions of %q ready for review", ev.doc.Title)
	}
	return watch.Descriptor{
		Kind:        EventKindRevisionReady,
		ContentType: contentTypeDocument,
		Description: description,
		FilterNames: []string{filterLocale},
	}
}

func (ev *revisionReadyEvent) SubjectID() *string {
	if ev.doc == nil {
		return nil
	}
	return &ev.doc.ID
}

func (ev *revisionReadyEvent) FilterValues() map[string]any {
	if ev.rev == nil || ev.doc == nil {
		return nil
	}
	return map[string]any{filterLocale: ev.doc.Locale}
}

func (ev *revisionReadyEvent) Payload() (json.RawMessage, error) {
	return json.Marshal(revisionEventPayload{RevisionID: ev.rev.ID})
}

func (ev *revisionReadyEvent) BuildMail(recipient watch.Identity, watches []models.WatchModel) (pkgmail.Message, error) {
	var author models.UserModel
	if err := ev.deps.db.First(&author, "id = ?", ev.rev.CreatorID).Error; err != nil {
		return pkgmail.Message{}, err
	}

	unsubscribe := ""
	if len(watches) > 0 {
		unsubscribe = ev.deps.engine.UnsubscribeURL(&watches[0])
	}
	base := strings.TrimRight(ev.deps.cfg.Site.BaseURL, "/")
	return pkgmail.BuildRevisionReady(recipient.Address(), pkgmail.RevisionReadyData{
		SiteName:       ev.deps.cfg.Site.Name,
		DocumentTitle:  ev.doc.Title,
		Author:         author.Username,
		Locale:         ev.doc.Locale,
		Comment:        ev.rev.Comment,
		ReviewURL:      fmt.Sprintf("%s/kb/%s/revisions/%s", base, ev.doc.Slug, ev.rev.ID),
		UnsubscribeURL: unsubscribe,
	})
}
