package forum

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tidings-space/core/internal/middleware"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/modules/watch"
	"github.com/tidings-space/core/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	g := rg.Group("/questions")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", authMW, h.create)
	g.POST("/:id/answers", authMW, h.answer)
	g.PUT("/:id/solution/:answerId", authMW, h.solve)
	g.GET("/:id/watch", optionalAuthMW, h.isWatching)
	g.POST("/:id/watch", optionalAuthMW, h.watch)
	g.DELETE("/:id/watch", optionalAuthMW, h.unwatch)
}

func (h *Handler) list(c *gin.Context) {
	questions, err := h.svc.ListQuestions()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": questions})
}

func (h *Handler) get(c *gin.Context) {
	q, err := h.svc.GetQuestion(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if q == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, q)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateQuestionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q, err := h.svc.CreateQuestion(&dto, middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, q)
}

func (h *Handler) answer(c *gin.Context) {
	var dto CreateAnswerDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	var creator models.UserModel
	if err := h.db.First(&creator, "id = ?", middleware.CurrentUserID(c)).Error; err != nil {
		response.Unauthorized(c)
		return
	}
	a, err := h.svc.CreateAnswer(c.Request.Context(), c.Param("id"), &dto, &creator)
	if err != nil {
		if errors.Is(err, errQuestionNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, a)
}

func (h *Handler) solve(c *gin.Context) {
	q, err := h.svc.Solve(c.Request.Context(), c.Param("id"), c.Param("answerId"), middleware.CurrentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, errQuestionNotFound), errors.Is(err, errAnswerNotFound):
			response.NotFoundMsg(c, err.Error())
		case errors.Is(err, errAnswerMismatch):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, q)
}

// ownerIdentity resolves the watch owner from the request: the logged-in
// user if present, otherwise the email in the body.
func (h *Handler) ownerIdentity(c *gin.Context) (watch.Identity, bool) {
	if userID := middleware.CurrentUserID(c); userID != "" {
		var user models.UserModel
		if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
			return watch.ForUser(&user), true
		}
	}
	if email := c.Query("email"); email != "" {
		return watch.ForEmail(email), true
	}
	var dto WatchQuestionDTO
	if err := c.ShouldBindJSON(&dto); err == nil && dto.Email != "" {
		return watch.ForEmail(dto.Email), true
	}
	return watch.Identity{}, false
}

func (h *Handler) watch(c *gin.Context) {
	owner, ok := h.ownerIdentity(c)
	if !ok {
		response.BadRequest(c, "login or email required")
		return
	}
	w, err := h.svc.WatchQuestion(c.Param("id"), owner)
	if err != nil {
		var actFailed *watch.ActivationRequestFailed
		switch {
		case errors.Is(err, errQuestionNotFound):
			response.NotFoundMsg(c, err.Error())
		case errors.As(err, &actFailed):
			response.UnprocessableEntity(c, actFailed.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, gin.H{"id": w.ID, "is_active": w.IsActive})
}

func (h *Handler) unwatch(c *gin.Context) {
	owner, ok := h.ownerIdentity(c)
	if !ok {
		response.BadRequest(c, "login or email required")
		return
	}
	if err := h.svc.UnwatchQuestion(c.Param("id"), owner); err != nil {
		if errors.Is(err, errQuestionNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) isWatching(c *gin.Context) {
	owner, _ := h.ownerIdentity(c)
	watching, err := h.svc.IsWatchingQuestion(c.Param("id"), owner)
	if err != nil {
		if errors.Is(err, errQuestionNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"watching": watching})
}
