package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/seo-audit/internal/audit"
	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/domain"
	"github.com/jonesrussell/seo-audit/internal/logger"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// AuditService defines the orchestrator operations the handlers expose.
type AuditService interface {
	StartAudit(ctx context.Context, isScheduled bool) (int64, error)
	UpdateTable(ctx context.Context, runFromCron bool) (moreWork bool, err error)
	Status(ctx context.Context) (*audit.Status, error)
	IncludePosts(ctx context.Context, postIDs []int64) error
	ExcludePosts(ctx context.Context, postIDs []int64) error
	Pause(ctx context.Context, reason string) error
	Resume(ctx context.Context) error
}

// AuditHandler handles audit-related HTTP requests.
type AuditHandler struct {
	audit     AuditService
	snapshots database.SnapshotRepositoryInterface
	items     database.ItemRepositoryInterface
	log       logger.Interface
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(
	auditService AuditService,
	snapshots database.SnapshotRepositoryInterface,
	items database.ItemRepositoryInterface,
	log logger.Interface,
) *AuditHandler {
	return &AuditHandler{
		audit:     auditService,
		snapshots: snapshots,
		items:     items,
		log:       log.WithComponent("api"),
	}
}

// Status handles GET /api/v1/audit/status
func (h *AuditHandler) Status(c *gin.Context) {
	status, err := h.audit.Status(c.Request.Context())
	if err != nil {
		h.log.Error("failed to read audit status", "error", err)
		respondInternalError(c, "failed to read audit status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Start handles POST /api/v1/audit/start
func (h *AuditHandler) Start(c *gin.Context) {
	id, err := h.audit.StartAudit(c.Request.Context(), false)
	if err != nil {
		h.log.Error("failed to start audit", "error", err)
		respondInternalError(c, "failed to start audit")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"snapshot_id": id})
}

// Step handles POST /api/v1/audit/step. It drives one bounded slice of the
// update loop, so a frontend can make progress without the poller.
func (h *AuditHandler) Step(c *gin.Context) {
	moreWork, err := h.audit.UpdateTable(c.Request.Context(), false)
	if err != nil {
		h.log.Error("audit step failed", "error", err)
		respondInternalError(c, "audit step failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"more_work": moreWork})
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

// Pause handles POST /api/v1/audit/pause
func (h *AuditHandler) Pause(c *gin.Context) {
	var req pauseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request payload")
			return
		}
	}
	if err := h.audit.Pause(c.Request.Context(), req.Reason); err != nil {
		respondInternalError(c, "failed to pause audit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Resume handles POST /api/v1/audit/resume
func (h *AuditHandler) Resume(c *gin.Context) {
	if err := h.audit.Resume(c.Request.Context()); err != nil {
		respondInternalError(c, "failed to resume audit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

type postsRequest struct {
	PostIDs []int64 `json:"post_ids" binding:"required"`
}

// IncludePosts handles POST /api/v1/audit/posts/include
func (h *AuditHandler) IncludePosts(c *gin.Context) {
	h.markPosts(c, h.audit.IncludePosts)
}

// ExcludePosts handles POST /api/v1/audit/posts/exclude
func (h *AuditHandler) ExcludePosts(c *gin.Context) {
	h.markPosts(c, h.audit.ExcludePosts)
}

func (h *AuditHandler) markPosts(c *gin.Context, mark func(ctx context.Context, postIDs []int64) error) {
	var req postsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "post_ids is required")
		return
	}
	if len(req.PostIDs) == 0 {
		respondBadRequest(c, "post_ids must not be empty")
		return
	}

	if err := mark(c.Request.Context(), req.PostIDs); err != nil {
		h.log.Error("failed to update post scope", "error", err)
		respondInternalError(c, "failed to update post scope")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.PostIDs)})
}

// ListItems handles GET /api/v1/audit/items. It lists the current snapshot's
// items, optionally filtered by action.
func (h *AuditHandler) ListItems(c *gin.Context) {
	action := domain.Action(c.Query("action"))
	if action != "" && !action.Valid() {
		respondBadRequest(c, "unknown action "+action.String())
		return
	}
	limit, offset := parseLimitOffset(c, defaultLimit, defaultOffset)

	snap, err := h.snapshots.GetCurrent(c.Request.Context())
	if err != nil {
		if errors.Is(err, database.ErrSnapshotNotFound) {
			c.JSON(http.StatusOK, gin.H{"items": []any{}, "total": 0})
			return
		}
		h.log.Error("failed to look up current snapshot", "error", err)
		respondInternalError(c, "failed to look up current snapshot")
		return
	}

	items, err := h.items.List(c.Request.Context(), snap.ID, action, limit, offset)
	if err != nil {
		h.log.Error("failed to list items", "error", err)
		respondInternalError(c, "failed to list items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": snap.ID,
		"items":       items,
		"total":       len(items),
	})
}
