package kb

import (
	"context"
	"errors"

	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	"gorm.io/gorm"
)

var errDocumentNotFound = errors.New("document not found")

// Service implements the knowledge-base operations and fires the review
// event.
type Service struct {
	db     *gorm.DB
	engine *watch.Engine
	events *Events
}

func NewService(db *gorm.DB, engine *watch.Engine, events *Events) *Service {
	return &Service{db: db, engine: engine, events: events}
}

func (s *Service) CreateDocument(dto *CreateDocumentDTO) (*models.DocumentModel, error) {
	doc := models.DocumentModel{
		Title:  dto.Title,
		Slug:   dto.Slug,
		Locale: dto.Locale,
	}
	if doc.Locale == "" {
		doc.Locale = "en-US"
	}
	return &doc, s.db.Create(&doc).Error
}

func (s *Service) GetDocumentBySlug(slug string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	if err := s.db.Preload("Revisions").First(&doc, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Service) ListDocuments(locale string) ([]models.DocumentModel, error) {
	tx := s.db.Order("created_at DESC")
	if locale != "" {
		tx = tx.Where("locale = ?", locale)
	}
	var docs []models.DocumentModel
	return docs, tx.Find(&docs).Error
}

// CreateRevision stores the revision and fires the ready-for-review event
// to document watchers and locale reviewers, excluding the author.
func (s *Service) CreateRevision(ctx context.Context, slug string, dto *CreateRevisionDTO, creatorID string) (*models.RevisionModel, error) {
	doc, err := s.GetDocumentBySlug(slug)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errDocumentNotFound
	}

	rev := models.RevisionModel{
		DocumentID: doc.ID,
		CreatorID:  creatorID,
		Content:    dto.Content,
		Comment:    dto.Comment,
	}
	if err := s.db.Create(&rev).Error; err != nil {
		return nil, err
	}

	err = s.engine.Fire(ctx, s.events.Ready(doc, &rev), watch.FireOptions{
		Exclude: []string{creatorID},
		Delay:   true,
	})
	return &rev, err
}

// WatchDocument subscribes the owner to revisions of one document.
func (s *Service) WatchDocument(slug string, owner watch.Identity) (*models.WatchModel, error) {
	doc, err := s.GetDocumentBySlug(slug)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errDocumentNotFound
	}
	return s.engine.Notify(s.events.DocumentRef(doc), owner, nil)
}

// WatchLocale subscribes the owner to every revision in a locale.
func (s *Service) WatchLocale(locale string, owner watch.Identity) (*models.WatchModel, error) {
	return s.engine.Notify(s.events.LocaleRef(), owner, map[string]any{filterLocale: locale})
}

// UnwatchLocale removes the owner's locale-wide review watches.
func (s *Service) UnwatchLocale(locale string, owner watch.Identity) error {
	return s.engine.StopNotifying(s.events.LocaleRef(), owner, map[string]any{filterLocale: locale})
}

// IsWatchingLocale reports whether the owner reviews a locale.
func (s *Service) IsWatchingLocale(locale string, owner watch.Identity) (bool, error) {
	return s.engine.IsNotifying(s.events.LocaleRef(), owner, map[string]any{filterLocale: locale})
}
