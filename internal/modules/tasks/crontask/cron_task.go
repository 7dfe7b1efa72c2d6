package crontask

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pkgcron "github.com/tubelens/core/internal/pkg/cron"
	"github.com/tubelens/core/internal/pkg/pagination"
	"github.com/tubelens/core/internal/pkg/response"
	"github.com/tubelens/core/internal/pkg/taskqueue"
)

// runTaskType tags manually triggered job executions in the run history.
const runTaskType = "cron:manual-run"

// runTimeout bounds a manually triggered execution. The stale-result purge
// and a full backup both finish well inside this.
const runTimeout = 30 * time.Minute

// Handler exposes the job scheduler over HTTP. Scheduled executions happen
// inside the scheduler itself; this surface lets an operator inspect jobs,
// trigger one ahead of schedule and audit the triggered runs afterwards.
type Handler struct {
	sched  *pkgcron.Scheduler
	runs   *taskqueue.Service
	logger *zap.Logger
}

func NewHandler(sched *pkgcron.Scheduler, runs *taskqueue.Service, logger *zap.Logger) *Handler {
	return &Handler{sched: sched, runs: runs, logger: logger.Named("CronTask")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/cron-task", authMW)
	g.GET("", h.list)
	g.GET("/:name", h.get)
	g.POST("/:name/run", h.run)

	runs := g.Group("/runs")
	runs.GET("", h.listRuns)
	runs.GET("/:runId", h.getRun)
	runs.POST("/:runId/cancel", h.cancelRun)
	runs.DELETE("/:runId", h.deleteRun)
	runs.DELETE("", h.deleteRuns)
}

// GET /cron-task
func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// GET /cron-task/:name
func (h *Handler) get(c *gin.Context) {
	result, err := h.sched.GetTask(c.Param("name"))
	if err != nil {
		response.NotFoundMsg(c, "no such job")
		return
	}
	response.OK(c, result)
}

type runPayload struct {
	Job         string    `json:"job"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// POST /cron-task/:name/run triggers a job now. The run is recorded in the
// history so its outcome can be polled. Triggering a job that already has a
// live run returns that run instead of starting another.
func (h *Handler) run(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.sched.GetTask(name); err != nil {
		response.NotFoundMsg(c, "no such job")
		return
	}

	payload := runPayload{Job: name, TriggeredAt: time.Now().UTC()}
	run, created, err := h.runs.Enqueue(c.Request.Context(), runTaskType, payload, name, name)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !created {
		response.OK(c, run)
		return
	}

	go h.executeRun(run.ID, name)
	response.Created(c, run)
}

// executeRun drives a triggered job to completion and records the outcome.
// It runs detached from the request, so a closed client connection does not
// abort the job.
func (h *Handler) executeRun(runID, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := h.runs.UpdateStatus(ctx, runID, taskqueue.TaskRunning, nil, ""); err != nil {
		h.logger.Warn("failed to mark run as running", zap.String("job", name), zap.Error(err))
	}

	if err := h.sched.RunWait(ctx, name); err != nil {
		h.runs.UpdateStatus(ctx, runID, taskqueue.TaskFailed, nil, err.Error())
		h.logger.Warn("triggered job failed", zap.String("job", name), zap.Error(err))
		return
	}
	h.runs.UpdateStatus(ctx, runID, taskqueue.TaskCompleted, gin.H{"job": name}, "")
	h.logger.Info("triggered job finished", zap.String("job", name))
}

// GET /cron-task/runs?type=...&status=...
func (h *Handler) listRuns(c *gin.Context) {
	q := pagination.FromContext(c)

	taskType := runTaskType
	var statusPtr *taskqueue.TaskStatus
	if s := c.Query("status"); s != "" {
		status := taskqueue.TaskStatus(s)
		statusPtr = &status
	}

	runs, total, err := h.runs.List(c.Request.Context(), q.Page, q.Size, &taskType, statusPtr)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	totalPages := int((total + int64(q.Size) - 1) / int64(q.Size))
	response.Paged(c, runs, response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPages,
		Size:        q.Size,
		HasNextPage: q.Page < totalPages,
	})
}

// GET /cron-task/runs/:runId
func (h *Handler) getRun(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("runId"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if run == nil {
		response.NotFoundMsg(c, "no such run")
		return
	}
	response.OK(c, run)
}

// POST /cron-task/runs/:runId/cancel withdraws a run that has not started
// yet. A run that is already executing cannot be cancelled.
func (h *Handler) cancelRun(c *gin.Context) {
	if err := h.runs.Cancel(c.Request.Context(), c.Param("runId")); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.NoContent(c)
}

// DELETE /cron-task/runs/:runId
func (h *Handler) deleteRun(c *gin.Context) {
	if err := h.runs.DeleteByID(c.Request.Context(), c.Param("runId")); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.NoContent(c)
}

// DELETE /cron-task/runs?before=<unix_ms> clears finished runs from the
// history, optionally only those created before the given timestamp.
func (h *Handler) deleteRuns(c *gin.Context) {
	var before int64
	if v := c.Query("before"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "before expects a unix millisecond timestamp")
			return
		}
		before = parsed
	}
	if err := h.runs.DeleteCompleted(c.Request.Context(), before); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
