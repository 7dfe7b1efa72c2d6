package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/modules/analysis/results"
	"github.com/tubelens/core/internal/modules/gateway/gateway"
	pkgcron "github.com/tubelens/core/internal/pkg/cron"
	"github.com/tubelens/core/internal/pkg/prettylog"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs. Only the main
// cluster instance runs them.
func (a *App) registerCronJobs() {
	cronLogger := a.logger.Named("CronService")

	a.sched.Register(pkgcron.Job{
		Name:        "purge_stale_results",
		Description: "Drop analysis results and logs older than 90 days",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			records, err := a.resultsSvc.PurgeStale(results.DefaultRetention)
			if err != nil {
				cronLogger.Warn("purging stale results failed", zap.Error(err))
				return err
			}
			logs, err := a.statsSvc.CleanOld(results.DefaultRetention)
			if err != nil {
				cronLogger.Warn("purging stale analysis logs failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("purged %d stale results and %d log rows", records, logs), prettylog.SuccessField())
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "remote_health_probe",
		Description: "Probe the analysis agent and alert on reachability flips",
		Interval:    5 * time.Minute,
		Fn: func(ctx context.Context) error {
			current, err := a.settingsSvc.Get()
			if err != nil {
				return err
			}
			detail := ""
			status, err := a.remote.Health(ctx, current)
			healthy := err == nil
			if err != nil {
				detail = err.Error()
			} else if status != nil && status.Message != "" {
				detail = status.Message
			}
			flipped := a.notifySvc.ObserveHealth(current.APIURL, healthy, detail)
			if flipped && a.hub != nil {
				a.hub.BroadcastAdmin(gateway.EventHealthChange, gin.H{
					"endpoint":  current.APIURL,
					"healthy":   healthy,
					"detail":    detail,
					"checkedAt": time.Now().UTC(),
				})
			}
			// An unreachable agent is expected state, not a job failure.
			return nil
		},
	})

	if a.cfg.Backup.Enable {
		interval := time.Duration(a.cfg.Backup.IntervalHours) * time.Hour
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		a.sched.Register(pkgcron.Job{
			Name:        "auto_backup",
			Description: "Export the database to a local archive (and S3 when configured)",
			Interval:    interval,
			Fn: func(ctx context.Context) error {
				cronLogger.Info("backing up database...")
				res, err := a.backupH.Run(ctx)
				if res != nil {
					a.notifySvc.OnBackupCompleted(res.Filename, res.Size, res.Uploaded, err)
				} else {
					a.notifySvc.OnBackupCompleted("", 0, false, err)
				}
				if err != nil {
					cronLogger.Warn("backup failed", zap.Error(err))
					return err
				}
				cronLogger.Info(fmt.Sprintf("backup written: %s (%d bytes)", res.Filename, res.Size), prettylog.SuccessField())
				return nil
			},
		})
	}
}
