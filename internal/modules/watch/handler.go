package watch

import (
	"github.com/gin-gonic/gin"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/pkg/response"
)

// Handler exposes the activation/unsubscribe surface and admin queries.
// Watch creation happens in the content modules (forum, kb) because the
// event kind decides the scope.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/watches")
	g.GET("/activate", h.activate)       // ?watch=...&secret=...
	g.GET("/unsubscribe", h.unsubscribe) // ?watch=...&secret=...
	g.GET("", authMW, h.list)
	g.DELETE("/unsubscribe/batch", authMW, h.unsubscribeBatch)
}

func (h *Handler) activate(c *gin.Context) {
	id := c.Query("watch")
	secret := c.Query("secret")
	if id == "" || secret == "" {
		response.BadRequest(c, "missing watch or secret")
		return
	}
	if err := h.engine.Activate(id, secret); err != nil {
		response.InternalError(c, err)
		return
	}
	// Deliberately identical response whether or not anything matched.
	response.OK(c, gin.H{"message": "subscription confirmed"})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	id := c.Query("watch")
	secret := c.Query("secret")
	if id == "" || secret == "" {
		response.BadRequest(c, "missing watch or secret")
		return
	}
	if err := h.engine.Unwatch(id, secret); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "unsubscribed"})
}

func (h *Handler) list(c *gin.Context) {
	var watches []models.WatchModel
	tx := h.engine.DB().Preload("Filters").Order("created_at DESC")
	if et := c.Query("event_type"); et != "" {
		tx = tx.Where("event_type = ?", et)
	}
	if err := tx.Find(&watches).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": watches})
}

func (h *Handler) unsubscribeBatch(c *gin.Context) {
	var body struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	deleted, err := h.engine.DeleteByEmails(body.Emails)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deletedCount": deleted})
}
