package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"creator_sync/internal/domain"
	"creator_sync/internal/service"
)

// Handlers binds the HTTP surface to the services. The webhook endpoint is
// reachable by the job platform; everything under /internal is operator-only.
type Handlers struct {
	ingest *service.IngestService
	fleet  *service.FleetService
	health *service.HealthService
	costs  *service.CostService
	logger *slog.Logger
}

func NewHandlers(
	ingest *service.IngestService,
	fleet *service.FleetService,
	health *service.HealthService,
	costs *service.CostService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		ingest: ingest,
		fleet:  fleet,
		health: health,
		costs:  costs,
		logger: logger.With("component", "http"),
	}
}

func (h *Handlers) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Webhook receives run-completion callbacks. Routing context rides in the
// query string because the job platform echoes the callback URL verbatim.
func (h *Handlers) Webhook(ctx *gin.Context) {
	platform := domain.Platform(ctx.Param("platform"))
	if !platform.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	mode := domain.SyncMode(ctx.Query("mode"))
	if !mode.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode"})
		return
	}

	handle := ctx.Query("handle")
	if handle == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "handle is required"})
		return
	}

	creatorID, err := strconv.ParseInt(ctx.Query("creatorId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid creatorId"})
		return
	}

	req := service.CallbackRequest{
		Platform:    platform,
		Handle:      handle,
		Mode:        mode,
		CreatorID:   creatorID,
		Secret:      ctx.Query("secret"),
		ForceAvatar: ctx.Query("force") == "true",
	}
	if err := ctx.ShouldBindJSON(&req.Payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.ingest.HandleCallback(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case errors.Is(err, service.ErrModeMismatch):
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Error("callback processing failed",
				"platform", platform,
				"handle", handle,
				"error", err,
			)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "callback processing failed"})
		}
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *Handlers) RunFleet(ctx *gin.Context) {
	summary, err := h.fleet.RunCycle(ctx.Request.Context(), time.Now())
	if err != nil {
		h.logger.Error("fleet cycle failed", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "fleet cycle failed"})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

func (h *Handlers) HealthCheck(ctx *gin.Context) {
	h.runHealth(ctx, false)
}

func (h *Handlers) Remediate(ctx *gin.Context) {
	h.runHealth(ctx, true)
}

func (h *Handlers) runHealth(ctx *gin.Context, remediate bool) {
	opts := service.HealthOptions{Remediate: remediate}
	for _, raw := range ctx.QueryArray("status") {
		opts.Statuses = append(opts.Statuses, domain.CreatorStatus(raw))
	}

	report, err := h.health.Check(ctx.Request.Context(), opts)
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *Handlers) CostReport(ctx *gin.Context) {
	report, err := h.costs.Report(ctx.Request.Context())
	if err != nil {
		h.logger.Error("cost report failed", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "cost report failed"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *Handlers) Resync(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid creator id"})
		return
	}

	summary, err := h.fleet.ResyncCreator(ctx.Request.Context(), id)
	if err != nil {
		h.logger.Error("resync failed", "creator_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "resync failed"})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
