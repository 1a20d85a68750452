package syncserver

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shiftscheduler/internal/model"
	"shiftscheduler/internal/remote"
	"shiftscheduler/pkg/jwt"
	"shiftscheduler/pkg/response"
)

// Failure codes carried in the response envelope.
const (
	codeBadRequest   = 10001
	codeUnauthorized = 10002
	codeRateLimited  = 10004
	codeNotFound     = 40401
	codeInternal     = 50000
)

// Handler serves the sync protocol over the uniform JSON envelope.
type Handler struct {
	storage *Storage
	jwt     *jwt.Manager
	logger  *zap.Logger
}

// NewHandler wires the handler set.
func NewHandler(storage *Storage, jwtMgr *jwt.Manager, logger *zap.Logger) *Handler {
	return &Handler{storage: storage, jwt: jwtMgr, logger: logger}
}

// Token exchanges the passphrase for a bearer token.
func (h *Handler) Token(c *gin.Context) {
	var req struct {
		Passphrase string `json:"passphrase" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "passphrase is required")
		return
	}

	accountID, err := h.storage.VerifyPassphrase(req.Passphrase)
	if err != nil {
		if errors.Is(err, ErrBadPassphrase) {
			response.Unauthorized(c, codeUnauthorized, "invalid passphrase")
			return
		}
		h.logger.Error("passphrase verification failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	token, err := h.jwt.GenerateToken(accountID)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"token": token})
}

// Upload applies a record batch and reports, per record, the new revision or
// a parked conflict.
func (h *Handler) Upload(c *gin.Context) {
	var req struct {
		Records []remote.Record `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "records are required")
		return
	}

	results, err := h.storage.Apply(req.Records)
	if err != nil {
		h.logger.Error("upload failed", zap.Int("records", len(req.Records)), zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"results": results})
}

// Download returns every record past the client's cursor.
func (h *Handler) Download(c *gin.Context) {
	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		response.BadRequest(c, codeBadRequest, "after must be a non-negative integer")
		return
	}

	records, cursor, err := h.storage.ListSince(after)
	if err != nil {
		h.logger.Error("download failed", zap.Int64("after", after), zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"records": records, "cursor": cursor})
}

// Conflicts lists every parked divergence.
func (h *Handler) Conflicts(c *gin.Context) {
	conflicts, err := h.storage.PendingConflicts()
	if err != nil {
		h.logger.Error("conflict listing failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"conflicts": conflicts})
}

// ResolveConflict closes one conflict with the chosen side and returns the
// winning record at its new revision.
func (h *Handler) ResolveConflict(c *gin.Context) {
	conflictID := c.Param("id")
	var req struct {
		Resolution model.Resolution `json:"resolution" binding:"required"`
		Payload    json.RawMessage  `json:"payload,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "resolution is required")
		return
	}

	record, err := h.storage.Resolve(conflictID, req.Resolution, req.Payload)
	switch {
	case errors.Is(err, ErrConflictNotFound):
		response.NotFound(c, codeNotFound, "conflict not found")
	case errors.Is(err, ErrMergedPayloadMissing):
		response.BadRequest(c, codeBadRequest, "merged resolution needs a payload")
	case err != nil:
		h.logger.Error("conflict resolution failed", zap.String("conflict", conflictID), zap.Error(err))
		response.InternalError(c)
	default:
		response.OK(c, gin.H{"record": record})
	}
}

// Reset drops every pending conflict.
func (h *Handler) Reset(c *gin.Context) {
	if err := h.storage.Reset(); err != nil {
		h.logger.Error("reset failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}
