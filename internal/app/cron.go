package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tidings-space/core/internal/config"
	"github.com/tidings-space/core/internal/modules/watch"
	pkgcron "github.com/tidings-space/core/internal/pkg/cron"
	"github.com/tidings-space/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, engine *watch.Engine, queue *taskqueue.Service, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:        "purge_unactivated_watches",
		Description: "Remove anonymous watches that were never confirmed",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -cfg.Watch.UnactivatedTTLDays)
			n, err := engine.PurgeUnactivated(cutoff)
			if err != nil {
				cronLogger.Warn("purging unactivated watches failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("purged %d unactivated watches", n))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "cleanup_finished_tasks",
		Description: "Drop completed and failed queue tasks older than a day",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			if err := queue.DeleteFinished(ctx, time.Now().Add(-24*time.Hour)); err != nil {
				cronLogger.Warn("cleaning finished tasks failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
