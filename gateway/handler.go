package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/correlation"
	"github.com/skillsenselab/dreamflow/dataset"
	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/node"
	"github.com/skillsenselab/dreamflow/observability"
	"github.com/skillsenselab/dreamflow/util"
	"github.com/skillsenselab/dreamflow/validation"
	"github.com/skillsenselab/dreamflow/version"
)

// DreamRequest is the inbound prompt request.
type DreamRequest struct {
	Prompt string `json:"prompt"`
}

// DreamResponse wraps a fulfilled pipeline result.
type DreamResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Result        json.RawMessage `json:"result"`
}

// API bridges HTTP requests to the pipeline: it keys each request with
// a fresh correlation id, appends it to the entry dataset, and awaits
// resolution through the correlation cache.
type API struct {
	entry      *dataset.Dataset
	cache      *correlation.Cache
	components *component.Registry
	timeout    time.Duration
	maxPrompt  int
	lg         *logger.Logger
}

// NewAPI creates the handler set. The component registry backs the
// health endpoint; nil disables per-component health detail.
func NewAPI(entry *dataset.Dataset, cache *correlation.Cache, components *component.Registry, cfg Config, log *logger.Logger) *API {
	return &API{
		entry:      entry,
		cache:      cache,
		components: components,
		timeout:    cfg.RequestTimeout,
		maxPrompt:  cfg.MaxPromptLength,
		lg:         log.WithComponent("gateway.api"),
	}
}

// Register mounts the API routes on the engine.
func (a *API) Register(engine *gin.Engine) {
	engine.POST("/v1/dream", a.handleDream)
	engine.GET("/healthz", a.handleHealth)
	engine.GET("/version", a.handleVersion)
}

func (a *API) handleDream(c *gin.Context) {
	var req DreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput("body", "must be valid JSON"))
		return
	}
	req.Prompt = util.SanitizeString(req.Prompt)
	v := validation.New().
		Required("prompt", req.Prompt).
		MaxLength("prompt", req.Prompt, a.maxPrompt)
	if err := v.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ctx, span := observability.StartSpan(c.Request.Context(), "gateway.dream")
	defer span.End()
	id := uuid.NewString()
	observability.SetSpanAttribute(ctx, observability.AttrCorrelationID, id)
	lg := a.lg.WithCorrelation(id)

	a.cache.Register(id)
	offset, err := a.entry.AppendJSON(ctx, id, req)
	if err != nil {
		lg.WithError(err).Error("admitting request to entry dataset")
		respondError(c, err)
		return
	}
	lg.Debug("request admitted", map[string]any{
		"dataset": a.entry.Name(),
		"offset":  offset,
	})

	out, err := a.cache.Await(ctx, id, a.timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away. The sweep reclaims the entry later.
			lg.Debug("client disconnected before resolution")
			c.Abort()
			return
		}
		lg.WithError(err).Warn("request did not resolve")
		respondError(c, err)
		return
	}

	switch out.Status {
	case correlation.StatusFulfilled:
		c.JSON(http.StatusOK, DreamResponse{
			CorrelationID: id,
			Result:        json.RawMessage(out.Payload),
		})
	default:
		respondError(c, failureToError(id, out.Payload))
	}
}

// failureToError maps an error-dataset payload to a coded response.
func failureToError(id string, payload []byte) error {
	var event node.ErrorEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.Message == "" {
		return apperrors.Internal(errors.New("pipeline failed without detail")).
			WithDetail("correlation_id", id)
	}
	appErr := apperrors.Processing(event.Stage, event.Message).
		WithDetail("correlation_id", id)
	if event.Cause != "" {
		appErr = appErr.WithDetail("cause", event.Cause)
	}
	return appErr
}

func (a *API) handleHealth(c *gin.Context) {
	if a.components == nil {
		c.JSON(http.StatusOK, gin.H{"status": component.StatusHealthy})
		return
	}

	healths := a.components.HealthAll(c.Request.Context())
	overall := component.StatusHealthy
	status := http.StatusOK
	for _, h := range healths {
		switch h.Status {
		case component.StatusUnhealthy:
			overall = component.StatusUnhealthy
			status = http.StatusServiceUnavailable
		case component.StatusDegraded:
			if overall == component.StatusHealthy {
				overall = component.StatusDegraded
			}
		}
	}
	c.JSON(status, gin.H{"status": overall, "components": healths})
}

func (a *API) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetVersionInfo())
}
