package forum

// CreateQuestionDTO is the body for posting a question.
type CreateQuestionDTO struct {
	Title   string `json:"title"   binding:"required"`
	Content string `json:"content" binding:"required"`
}

// CreateAnswerDTO is the body for posting an answer.
type CreateAnswerDTO struct {
	Content string `json:"content" binding:"required"`
}

// WatchQuestionDTO is the body for subscribing to a question. Email is
// required only for anonymous watchers.
type WatchQuestionDTO struct {
	Email string `json:"email" binding:"omitempty,email"`
}
