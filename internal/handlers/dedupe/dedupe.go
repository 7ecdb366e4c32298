// internal/handlers/dedupe/dedupe.go
package dedupe

import (
	"net/http"

	"dedupe-service/internal/domain/dedupe"
	"dedupe-service/internal/middleware"
	"dedupe-service/internal/pkg/response"
	service "dedupe-service/internal/service/dedupe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DedupeHandler struct {
	dedupeService *service.DedupeService
	logger        *zap.Logger
}

func NewDedupeHandler(dedupeService *service.DedupeService, logger *zap.Logger) *DedupeHandler {
	return &DedupeHandler{
		dedupeService: dedupeService,
		logger:        logger,
	}
}

// FindDuplicates scans all records and returns the duplicate groups
func (h *DedupeHandler) FindDuplicates(c *gin.Context) {
	result, err := h.dedupeService.FindDuplicates(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to find duplicates", err)
		return
	}

	response.Success(c, http.StatusOK, "duplicates found", result)
}

// Merge folds the listed records into the primary
func (h *DedupeHandler) Merge(c *gin.Context) {
	var req dedupe.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	result, err := h.dedupeService.Merge(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("merge failed",
			zap.String("operator_id", operatorID(c)),
			zap.String("group_id", req.GroupID),
			zap.Int64("primary_id", req.PrimaryID),
			zap.Error(err),
		)
		if result != nil {
			// Primary was updated but some secondaries were not.
			response.Error(c, http.StatusInternalServerError, "merge partially applied", err, result)
			return
		}
		response.FromError(c, "failed to merge records", err)
		return
	}

	h.logger.Info("records merged",
		zap.String("operator_id", operatorID(c)),
		zap.String("group_id", req.GroupID),
		zap.Int64("primary_id", req.PrimaryID),
		zap.Int("absorbed", len(result.AbsorbedIDs)),
	)
	response.Success(c, http.StatusOK, "records merged", result)
}

// MergeBatch applies several merges; each group succeeds or fails on its own
func (h *DedupeHandler) MergeBatch(c *gin.Context) {
	var req dedupe.BatchMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	result, err := h.dedupeService.MergeBatch(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "invalid batch", err)
		return
	}

	h.logger.Info("batch merge processed",
		zap.String("operator_id", operatorID(c)),
		zap.Int("groups", result.TotalProcessed),
		zap.Int("failed", result.FailureCount),
	)
	response.Success(c, http.StatusOK, "batch processed", result)
}

func operatorID(c *gin.Context) string {
	id, _ := middleware.GetOperatorID(c)
	return id
}
