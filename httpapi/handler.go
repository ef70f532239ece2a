package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/curatorhq/batchjobs"
	"github.com/curatorhq/batchjobs/pkg/core"
)

// Handler wires the orchestrator's operations into echo routes.
type Handler struct {
	orch     *batchjobs.Orchestrator
	validate *validator.Validate
}

// New creates the HTTP handler for an orchestrator.
func New(orch *batchjobs.Orchestrator) *Handler {
	return &Handler{
		orch:     orch,
		validate: validator.New(),
	}
}

// Register mounts the job routes and the shared error handler.
func (h *Handler) Register(e *echo.Echo) {
	e.HTTPErrorHandler = HTTPErrorHandler

	g := e.Group("/jobs")
	g.POST("", h.submit)
	g.GET("", h.list)
	g.GET("/summary", h.summary)
	g.GET("/:id", h.status)
	g.DELETE("/:id", h.cancel)
}

type submitItem struct {
	ID      string `json:"id" validate:"required"`
	Payload any    `json:"payload"`
}

type submitRequest struct {
	Kind     string         `json:"kind" validate:"required"`
	Items    []submitItem   `json:"items" validate:"required,min=1,dive"`
	Metadata map[string]any `json:"metadata"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// submit accepts a batch and returns 202 once the job record exists; the
// work itself runs detached.
func (h *Handler) submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return err
	}

	items := make([]core.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.Item{ID: it.ID, Payload: it.Payload}
	}

	var opts []batchjobs.SubmitOption
	if len(req.Metadata) > 0 {
		opts = append(opts, batchjobs.WithMetadata(req.Metadata))
	}

	id, err := h.orch.Submit(c.Request().Context(), core.Kind(req.Kind), items, opts...)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusAccepted, submitResponse{JobID: id})
}

func (h *Handler) status(c echo.Context) error {
	job, err := h.orch.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, job)
}

// list supports ?status= and ?kind= filters for dashboards.
func (h *Handler) list(c echo.Context) error {
	var filter core.Filter
	if s := c.QueryParam("status"); s != "" {
		status := core.Status(s)
		filter.Status = &status
	}
	if k := c.QueryParam("kind"); k != "" {
		kind := core.Kind(k)
		filter.Kind = &kind
	}

	jobs, err := h.orch.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, jobs)
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (h *Handler) cancel(c echo.Context) error {
	if err := h.orch.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, cancelResponse{Cancelled: true})
}

// summary combines per-status counts with the active flag so a dashboard can
// decide in one round trip whether to keep polling.
func (h *Handler) summary(c echo.Context) error {
	stats, err := h.orch.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, stats)
}
