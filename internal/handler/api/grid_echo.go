package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"MicroGrid/internal/domain/models"
	domrepo "MicroGrid/internal/domain/repository"
	"MicroGrid/internal/service/metrics"
	xhttp "MicroGrid/pkg/http"
	xlogger "MicroGrid/pkg/logger"
)

// HealthChecker is a backend the health endpoint probes.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// GridEchoHandler serves the loop status over HTTP.
type GridEchoHandler struct {
	logger    *xlogger.Logger
	snapshots domrepo.SnapshotStore
	history   domrepo.RecordHistory
	storage   domrepo.Storage
	runTag    string
	checks    map[string]HealthChecker
}

func NewGridEchoHandler(logger *xlogger.Logger, snapshots domrepo.SnapshotStore, history domrepo.RecordHistory) *GridEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &GridEchoHandler{
		logger:    logger,
		snapshots: snapshots,
		history:   history,
		checks:    make(map[string]HealthChecker),
	}
}

// AddHealthCheck registers a named backend probe. Nil checkers are ignored.
func (h *GridEchoHandler) AddHealthCheck(name string, c HealthChecker) {
	if c != nil {
		h.checks[name] = c
	}
}

// SetStorage enables /api/history over the queryable store of runTag.
func (h *GridEchoHandler) SetStorage(s domrepo.Storage, runTag string) {
	h.storage = s
	h.runTag = runTag
	h.AddHealthCheck("storage", s)
}

func (h *GridEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/records", h.Records)
	g.GET("/health", h.Health)
	g.GET("/history", h.History)
}

// State returns the latest snapshot, including the halt reason once halted.
func (h *GridEchoHandler) State(c echo.Context) error {
	defer observe("state", time.Now())

	snap, err := h.snapshots.Latest(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues("state").Inc()
		h.logger.Error("load snapshot", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BackendError("snapshot store", err))
	}
	if snap == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no iteration has completed yet"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, snap)
}

// Records returns up to limit of the most recent records, oldest first.
func (h *GridEchoHandler) Records(c echo.Context) error {
	defer observe("records", time.Now())

	req := &models.RecordsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("records").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.history == nil {
		return xhttp.ListResponse(c, []models.Record{}, 0)
	}
	rows := h.history.Recent(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

type historyResponse struct {
	RunTag string           `json:"run_tag"`
	Range  xhttp.TimeRange  `json:"range"`
	Rows   []*models.Record `json:"rows"`
	Total  int64            `json:"total"`
}

// History reads stored records of a run, newest first.
func (h *GridEchoHandler) History(c echo.Context) error {
	defer observe("history", time.Now())

	if h.storage == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no queryable telemetry backend configured"))
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("history").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.RunTag == "" {
		req.RunTag = h.runTag
	}
	from := xhttp.ParseTimeDefault(req.From, time.Unix(0, 0))
	to := xhttp.ParseTimeDefault(req.To, time.Now())
	window := xhttp.NewTimeRange(from, to)
	if !window.Valid() {
		return xhttp.AppErrorResponse(c, xhttp.RangeError(from, to))
	}

	rows, err := h.storage.Query(c.Request().Context(), req.RunTag, from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("history").Inc()
		h.logger.Error("query history", xlogger.String("run_tag", req.RunTag), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BackendError("telemetry storage", err))
	}
	if rows == nil {
		rows = []*models.Record{}
	}
	return xhttp.SuccessResponse(c, historyResponse{
		RunTag: req.RunTag,
		Range:  window,
		Rows:   rows,
		Total:  int64(len(rows)),
	})
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health probes every registered backend.
func (h *GridEchoHandler) Health(c echo.Context) error {
	defer observe("health", time.Now())

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	res := healthStatus{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, chk := range h.checks {
		if err := chk.Health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("backend", name), xlogger.Error(err))
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}
	if res.Status != "ok" {
		metrics.APIErrors.WithLabelValues("health").Inc()
	}
	return xhttp.SuccessResponse(c, res)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
