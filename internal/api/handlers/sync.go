package handlers

import (
	"errors"
	"net/http"

	"storelens/internal/api/middleware"
	"storelens/internal/logger"
	"storelens/internal/models"
	"storelens/internal/repository"
	"storelens/internal/services/syncer"
	"storelens/internal/worker"

	"github.com/gin-gonic/gin"
)

// SyncGate reports whether a connection already has a sync running.
// *syncer.Synchronizer implements it.
type SyncGate interface {
	InProgress(conn *models.Connection) bool
}

type SyncHandler struct {
	connections ConnectionStore
	gate        SyncGate
	reporter    *syncer.Reporter
	dispatcher  worker.Dispatcher
	logger      *logger.Logger
}

func NewSyncHandler(connections ConnectionStore, gate SyncGate, reporter *syncer.Reporter, dispatcher worker.Dispatcher, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		connections: connections,
		gate:        gate,
		reporter:    reporter,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Start queues a full sync. The synchronizer's tenant lock still decides;
// this check only spares the caller a request that would be dropped.
func (h *SyncHandler) Start(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	ctx := c.Request.Context()

	conn, err := h.connections.GetConnection(ctx, tenantID)
	if errors.Is(err, repository.ErrConnectionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start sync"})
		return
	}

	if h.gate.InProgress(conn) {
		c.JSON(http.StatusConflict, gin.H{"error": syncer.ErrSyncInProgress.Error()})
		return
	}

	if err := h.dispatcher.DispatchSync(ctx, tenantID, "manual"); err != nil {
		h.logger.Error("Failed to dispatch sync for tenant %s: %v", tenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start sync"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Sync started"})
}

func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.reporter.Status(c.Request.Context(), middleware.TenantID(c))
	if errors.Is(err, repository.ErrConnectionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to build sync status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
