package kb

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
	g := rg.Group("/kb")
	g.GET("", h.list)
	g.GET("/:slug", h.get)
	g.POST("", authMW, h.create)
	g.POST("/:slug/revisions", authMW, h.createRevision)
	g.POST("/:slug/watch", optionalAuthMW, h.watchDocument)

	l := rg.Group("/locales")
	l.GET("/:locale/watch", optionalAuthMW, h.isWatchingLocale)
	l.POST("/:locale/watch", optionalAuthMW, h.watchLocale)
	l.DELETE("/:locale/watch", optionalAuthMW, h.unwatchLocale)
}

func (h *Handler) list(c *gin.Context) {
	docs, err := h.svc.ListDocuments(c.Query("locale"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": docs})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.svc.GetDocumentBySlug(c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if doc == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, doc)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDocumentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	doc, err := h.svc.CreateDocument(&dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, doc)
}

func (h *Handler) createRevision(c *gin.Context) {
	var dto CreateRevisionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rev, err := h.svc.CreateRevision(c.Request.Context(), c.Param("slug"), &dto, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, errDocumentNotFound) {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, rev)
}

func (h *Handler) ownerIdentity(c *gin.Context, email string) (watch.Identity, bool) {
	if userID := middleware.CurrentUserID(c); userID != "" {
		var user models.UserModel
		if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
			return watch.ForUser(&user), true
		}
	}
	if email == "" {
		email = c.Query("email")
	}
	if email != "" {
		return watch.ForEmail(email), true
	}
	return watch.Identity{}, false
}

func (h *Handler) watchDocument(c *gin.Context) {
	var dto WatchLocaleDTO
	_ = c.ShouldBindJSON(&dto)
	owner, ok := h.ownerIdentity(c, dto.Email)
	if !ok {
		response.BadRequest(c, "login or email required")
		return
	}
	w, err := h.svc.WatchDocument(c.Param("slug"), owner)
	if err != nil {
		var actFailed *watch.ActivationRequestFailed
		switch {
		case errors.Is(err, errDocumentNotFound):
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

func (h *Handler) watchLocale(c *gin.Context) {
	var dto WatchLocaleDTO
	_ = c.ShouldBindJSON(&dto)
	owner, ok := h.ownerIdentity(c, dto.Email)
	if !ok {
		response.BadRequest(c, "login or email required")
		return
	}
	w, err := h.svc.WatchLocale(c.Param("locale"), owner)
	if err != nil {
		var actFailed *watch.ActivationRequestFailed
		if errors.As(err, &actFailed) {
			response.UnprocessableEntity(c, actFailed.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, gin.H{"id": w.ID, "is_active": w.IsActive})
}

func (h *Handler) unwatchLocale(c *gin.Context) {
	owner, ok := h.ownerIdentity(c, "")
	if !ok {
		response.BadRequest(c, "login or email required")
		return
	}
	if err := h.svc.UnwatchLocale(c.Param("locale"), owner); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) isWatchingLocale(c *gin.Context) {
	owner, _ := h.ownerIdentity(c, "")
	watching, err := h.svc.IsWatchingLocale(c.Param("locale"), owner)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"watching": watching})
}
