package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/database"
	"github.com/tidings-space/core/internal/modules/forum"
	"github.com/tidings-space/core/internal/modules/kb"
	"github.com/tidings-space/core/internal/modules/watch"
	jwtpkg "github.com/tidings-space/core/internal/pkg/jwt"
	"github.com/tidings-space/core/internal/pkg/logging"
	pkgredis "github.com/tidings-space/core/internal/pkg/redis"
	"github.com/tidings-space/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const dequeueTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	}

	db, err := database.Connect(cfg, false)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	queue := taskqueue.NewService(rc)
	engine := watch.NewEngine(db, cfg,
		watch.WithQueue(queue),
		watch.WithLogger(logger.Named("watch")),
	)

	registry := watch.NewRegistry()
	forum.NewEvents(db, cfg, engine).Register(registry)
	kb.NewEvents(db, cfg, engine).Register(registry)

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down worker...")
		cancel()
	}()

	logger.Info("worker started")
	for {
		task, err := queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logger.Warn("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		runTask(ctx, logger, queue, engine, registry, task)
	}
	logger.Info("worker exited")
}

func runTask(ctx context.Context, logger *zap.Logger, queue *taskqueue.Service, engine *watch.Engine, registry *watch.Registry, task *taskqueue.Task) {
	log := logger.With(zap.String("task_id", task.ID), zap.String("type", task.Type))

	switch task.Type {
	case watch.TaskTypeFireEvent:
		report, err := engine.RunFireTask(registry, task.Payload)
		if err != nil {
			log.Warn("task failed", zap.Error(err))
			_ = queue.UpdateStatus(ctx, task.ID, taskqueue.TaskFailed, err.Error())
			return
		}
		log.Info("mails sent",
			zap.Int("matched", report.Matched),
			zap.Int("sent", report.Sent),
			zap.Int("failed", len(report.Failures)))
		_ = queue.UpdateStatus(ctx, task.ID, taskqueue.TaskCompleted, "")
	default:
		log.Warn("unknown task type")
		_ = queue.UpdateStatus(ctx, task.ID, taskqueue.TaskFailed, "unknown task type")
	}
}
