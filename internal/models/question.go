package models

// QuestionModel is a support question watchers can subscribe to.
type QuestionModel struct {
	Base
	Title      string  `json:"title"    gorm:"not null"`
	Content    string  `json:"content"  gorm:"type:longtext"`
	CreatorID  string  `json:"creator_id" gorm:"index;type:char(36);not null"`
	IsSolved   bool    `json:"is_solved"  gorm:"default:false"`
	SolutionID *string `json:"solution_id" gorm:"type:char(36)"`

	Answers []AnswerModel `json:"answers,omitempty" gorm:"foreignKey:QuestionID"`
}

func (QuestionModel) TableName() string { return "questions" }

// AnswerModel is a reply to a question.
type AnswerModel struct {
	Base
	QuestionID string `json:"question_id" gorm:"index;type:char(36);not null"`
	CreatorID  string `json:"creator_id"  gorm:"index;type:char(36);not null"`
	Content    string `json:"content"     gorm:"type:longtext;not null"`
}

func (AnswerModel) TableName() string { return "answers" }
