package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidings-space/core/internal/middleware"
	"github.com/tidings-space/core/internal/modules/forum"
	"github.com/tidings-space/core/internal/modules/kb"
	"github.com/tidings-space/core/internal/modules/user"
	"github.com/tidings-space/core/internal/modules/watch"
	"github.com/tidings-space/core/internal/pkg/response"
	"github.com/tidings-space/core/internal/pkg/taskqueue"
)

func (a *App) registerRoutes() {
	r := a.router
	db := a.db
	authMW := middleware.Auth(db)
	optionalAuthMW := middleware.OptionalAuth(db)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    a.cfg.Site.Name,
		"version": "1.0.0",
	}

	api := r.Group("/api/v2")

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"timestamp": time.Since(processStart).Milliseconds()})
	})
	api.GET("/cron", authMW, func(c *gin.Context) {
		response.OK(c, gin.H{"data": a.sched.List()})
	})
	api.GET("/tasks", authMW, func(c *gin.Context) {
		var taskType *string
		var status *taskqueue.TaskStatus
		if v := c.Query("type"); v != "" {
			taskType = &v
		}
		if v := c.Query("status"); v != "" {
			s := taskqueue.TaskStatus(v)
			status = &s
		}
		tasks, err := a.queue.List(c.Request.Context(), taskType, status)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, gin.H{"data": tasks})
	})

	forumEvents := forum.NewEvents(db, a.cfg, a.engine)
	forumEvents.Register(a.registry)
	kbEvents := kb.NewEvents(db, a.cfg, a.engine)
	kbEvents.Register(a.registry)

	watch.NewHandler(a.engine).RegisterRoutes(api, authMW)
	user.NewHandler(user.NewService(db, a.engine)).RegisterRoutes(api, authMW)
	forum.NewHandler(forum.NewService(db, a.engine, forumEvents), db).RegisterRoutes(api, authMW, optionalAuthMW)
	kb.NewHandler(kb.NewService(db, a.engine, kbEvents), db).RegisterRoutes(api, authMW, optionalAuthMW)
}

var processStart = time.Now()
