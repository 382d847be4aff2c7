package forum

import (
	"context"
	"errors"

	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	"gorm.io/gorm"
)

var (
	errQuestionNotFound = errors.New("question not found")
	errAnswerNotFound   = errors.New("answer not found")
	errAnswerMismatch   = errors.New("answer does not belong to this question")
)

// Service implements the Q&A operations and fires the forum events.
type Service struct {
	db     *gorm.DB
	engine *watch.Engine
	events *Events
}

func NewService(db *gorm.DB, engine *watch.Engine, events *Events) *Service {
	return &Service{db: db, engine: engine, events: events}
}

func (s *Service) CreateQuestion(dto *CreateQuestionDTO, creatorID string) (*models.QuestionModel, error) {
	q := models.QuestionModel{
		Title:     dto.Title,
		Content:   dto.Content,
		CreatorID: creatorID,
	}
	return &q, s.db.Create(&q).Error
}

func (s *Service) GetQuestion(id string) (*models.QuestionModel, error) {
	var q models.QuestionModel
	if err := s.db.Preload("Answers").First(&q, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

func (s *Service) ListQuestions() ([]models.QuestionModel, error) {
	var questions []models.QuestionModel
	return questions, s.db.Order("created_at DESC").Find(&questions).Error
}

// CreateAnswer stores the answer, auto-subscribes its author to the
// question and fires the reply event, excluding the author.
func (s *Service) CreateAnswer(ctx context.Context, questionID string, dto *CreateAnswerDTO, creator *models.UserModel) (*models.AnswerModel, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errQuestionNotFound
	}

	a := models.AnswerModel{
		QuestionID: q.ID,
		CreatorID:  creator.ID,
		Content:    dto.Content,
	}
	if err := s.db.Create(&a).Error; err != nil {
		return nil, err
	}

	// Replying implies interest in later replies.
	if _, err := s.engine.Notify(s.events.WatchRef(EventKindReply, q), watch.ForUser(creator), nil); err != nil {
		return nil, err
	}

	err = s.engine.Fire(ctx, s.events.Reply(q, &a), watch.FireOptions{
		Exclude: []string{creator.ID},
		Delay:   true,
	})
	return &a, err
}

// Solve marks an answer as the question's solution and fires the solved
// and reply events as a union, so an identity watching both kinds gets a
// single mail.
func (s *Service) Solve(ctx context.Context, questionID, answerID string, actorID string) (*models.QuestionModel, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errQuestionNotFound
	}
	var a models.AnswerModel
	if err := s.db.First(&a, "id = ?", answerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errAnswerNotFound
		}
		return nil, err
	}
	if a.QuestionID != q.ID {
		return nil, errAnswerMismatch
	}

	if err := s.db.Model(q).Updates(map[string]interface{}{
		"is_solved":   true,
		"solution_id": a.ID,
	}).Error; err != nil {
		return nil, err
	}

	err = s.engine.FireUnion(ctx,
		[]watch.Event{s.events.Solved(q, &a), s.events.Reply(q, &a)},
		watch.FireOptions{Exclude: []string{actorID}, Delay: true},
	)
	return q, err
}

// WatchQuestion subscribes the owner to new replies on a question.
func (s *Service) WatchQuestion(questionID string, owner watch.Identity) (*models.WatchModel, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errQuestionNotFound
	}
	return s.engine.Notify(s.events.WatchRef(EventKindReply, q), owner, nil)
}

// UnwatchQuestion removes the owner's reply watches on a question.
func (s *Service) UnwatchQuestion(questionID string, owner watch.Identity) error {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return err
	}
	if q == nil {
		return errQuestionNotFound
	}
	return s.engine.StopNotifying(s.events.WatchRef(EventKindReply, q), owner, nil)
}

// IsWatchingQuestion reports whether the owner watches replies on a question.
func (s *Service) IsWatchingQuestion(questionID string, owner watch.Identity) (bool, error) {
	q, err := s.GetQuestion(questionID)
	if err != nil {
		return false, err
	}
	if q == nil {
		return false, errQuestionNotFound
	}
	return s.engine.IsNotifying(s.events.WatchRef(EventKindReply, q), owner, nil)
}
