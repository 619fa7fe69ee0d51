package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/admitflow/internal/apperr"
	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/sweeper"
	"gorm.io/gorm"
)

type handlers struct {
	db      *gorm.DB
	engine  *automation.Engine
	sweeper *sweeper.Sweeper
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.GET("/summary", h.summary)

	api.GET("/workflows", h.listWorkflows)
	api.POST("/workflows", h.createWorkflow)
	api.GET("/workflows/:id", h.getWorkflow)
	api.PUT("/workflows/:id", h.updateWorkflow)
	api.DELETE("/workflows/:id", h.deleteWorkflow)

	api.POST("/events/:trigger", h.fireEvent)

	api.GET("/runs", h.listRuns)
	api.POST("/runs/:id/replay", h.replayRun)

	api.POST("/sweep", h.sweep)
}

// writeError renders err with the status its kind maps to.
func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, apperr.Validation("invalid id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

func (h *handlers) health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) summary(c *gin.Context) {
	s, err := PipelineSummary(h.db)
	if err != nil {
		writeError(c, apperr.Persistence("dashboard: summary", err))
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) listWorkflows(c *gin.Context) {
	filters := automation.ListFilters{Trigger: c.Query("trigger")}
	filters.ActiveOnly, _ = strconv.ParseBool(c.Query("active"))
	wfs, err := h.engine.Registry().List(filters)
	if err != nil {
		writeError(c, err)
		return
	}
	rows := make([]WorkflowRow, len(wfs))
	for i := range wfs {
		rows[i] = newWorkflowRow(&wfs[i])
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) createWorkflow(c *gin.Context) {
	var def automation.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		writeError(c, apperr.Validation("decode workflow: %v", err))
		return
	}
	wf, err := h.engine.Registry().Create(def)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWorkflowRow(wf))
}

func (h *handlers) getWorkflow(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	wf, err := h.engine.Registry().Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkflowRow(wf))
}

func (h *handlers) updateWorkflow(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var p automation.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, apperr.Validation("decode patch: %v", err))
		return
	}
	wf, err := h.engine.Registry().Update(id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkflowRow(wf))
}

func (h *handlers) deleteWorkflow(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.engine.Registry().Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) fireEvent(c *gin.Context) {
	evt := automation.Context{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&evt); err != nil {
			writeError(c, apperr.Validation("decode event context: %v", err))
			return
		}
	}
	res, err := h.engine.Fire(c.Request.Context(), c.Param("trigger"), evt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFiringRow(res))
}

func (h *handlers) listRuns(c *gin.Context) {
	filters := automation.RunFilters{
		FiringID: c.Query("firing_id"),
		Outcome:  c.Query("outcome"),
		Limit:    100,
	}
	if v := c.Query("workflow_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(c, apperr.Validation("invalid workflow_id %q", v))
			return
		}
		filters.WorkflowID = uint(id)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(c, apperr.Validation("invalid limit %q", v))
			return
		}
		filters.Limit = n
	}
	runs, err := automation.Runs(h.db, filters)
	if err != nil {
		writeError(c, err)
		return
	}
	rows := make([]RunRow, len(runs))
	for i := range runs {
		rows[i] = newRunRow(&runs[i])
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) replayRun(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.engine.Replay(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFiringRow(res))
}

func (h *handlers) sweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweeper is not configured"})
		return
	}
	res, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SweepRow{
		Scanned:      res.Scanned,
		Created:      res.Created,
		Skipped:      res.Skipped,
		Failed:       res.Failed,
		OverdueFired: res.OverdueFired,
	})
}
