package forum

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
	EventKindReply  = "question:reply"
	EventKindSolved = "question:solved"

	contentTypeQuestion = "question"
)

// Events builds and rebuilds forum event instances. One value is shared by
// the service (firing) and the worker registry (rebuilding).
type Events struct {
	db     *gorm.DB
	cfg    *config.AppConfig
	engine *watch.Engine
}

func NewEvents(db *gorm.DB, cfg *config.AppConfig, engine *watch.Engine) *Events {
	return &Events{db: db, cfg: cfg, engine: engine}
}

// Register wires the forum event kinds into the worker registry.
func (e *Events) Register(r *watch.Registry) {
	r.Register(EventKindReply, func(payload json.RawMessage) (watch.Event, error) {
		return e.rebuild(EventKindReply, payload)
	})
	r.Register(EventKindSolved, func(payload json.RawMessage) (watch.Event, error) {
		return e.rebuild(EventKindSolved, payload)
	})
}

// Reply is the event fired when a new answer is posted to a question.
func (e *Events) Reply(q *models.QuestionModel, a *models.AnswerModel) watch.Event {
	return &questionEvent{deps: e, kind: EventKindReply, question: q, answer: a}
}

// Solved is the event fired when an answer is marked as the solution.
func (e *Events) Solved(q *models.QuestionModel, a *models.AnswerModel) watch.Event {
	return &questionEvent{deps: e, kind: EventKindSolved, question: q, answer: a}
}

// WatchRef returns an event bound to a question but carrying no answer,
// for notify/stop/is_notifying calls against the question's watch scope.
func (e *Events) WatchRef(kind string, q *models.QuestionModel) watch.Event {
	return &questionEvent{deps: e, kind: kind, question: q}
}

func (e *Events) rebuild(kind string, payload json.RawMessage) (watch.Event, error) {
	var p questionEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	var q models.QuestionModel
	if err := e.db.First(&q, "id = ?", p.QuestionID).Error; err != nil {
		return nil, fmt.Errorf("load question %s: %w", p.QuestionID, err)
	}
	var a models.AnswerModel
	if err := e.db.First(&a, "id = ?", p.AnswerID).Error; err != nil {
		return nil, fmt.Errorf("load answer %s: %w", p.AnswerID, err)
	}
	return &questionEvent{deps: e, kind: kind, question: &q, answer: &a}, nil
}

type questionEventPayload struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

// questionEvent covers both forum kinds; they share scope and mail shape.
type questionEvent struct {
	deps     *Events
	kind     string
	question *models.QuestionModel
	answer   *models.AnswerModel
}

func (ev *questionEvent) Descriptor() watch.Descriptor {
	desc := watch.Descriptor{
		Kind:        ev.kind,
		ContentType: contentTypeQuestion,
		Description: fmt.Sprintf("new replies to %q", ev.question.Title),
	}
	if ev.kind == EventKindSolved {
		desc.Description = fmt.Sprintf("a solution to %q", ev.question.Title)
	}
	return desc
}

func (ev *questionEvent) SubjectID() *string { return &ev.question.ID }

func (ev *questionEvent) FilterValues() map[string]any { return nil }

func (ev *questionEvent) Payload() (json.RawMessage, error) {
	return json.Marshal(questionEventPayload{
		QuestionID: ev.question.ID,
		AnswerID:   ev.answer.ID,
	})
}

func (ev *questionEvent) BuildMail(recipient watch.Identity, watches []models.WatchModel) (pkgmail.Message, error) {
	var author models.UserModel
	if err := ev.deps.db.First(&author, "id = ?", ev.answer.CreatorID).Error; err != nil {
		return pkgmail.Message{}, err
	}

	unsubscribe := ""
	if len(watches) > 0 {
		unsubscribe = ev.deps.engine.UnsubscribeURL(&watches[0])
	}
	return pkgmail.BuildReplyNotify(recipient.Address(), pkgmail.ReplyNotifyData{
		SiteName:       ev.deps.cfg.Site.Name,
		QuestionTitle:  ev.question.Title,
		Author:         author.Username,
		Content:        ev.answer.Content,
		Solved:         ev.kind == EventKindSolved,
		DetailURL:      ev.detailURL(),
		UnsubscribeURL: unsubscribe,
	})
}

func (ev *questionEvent) detailURL() string {
	base := strings.TrimRight(ev.deps.cfg.Site.BaseURL, "/")
	return fmt.Sprintf("%s/questions/%s#answer-%s", base, ev.question.ID, ev.answer.ID)
}
