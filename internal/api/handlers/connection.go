package handlers

import (
	"context"
	"errors"
	"net/http"

	"storelens/internal/api/middleware"
	"storelens/internal/logger"
	"storelens/internal/models"
	"storelens/internal/repository"

	"github.com/gin-gonic/gin"
)

type ConnectionStore interface {
	GetConnection(ctx context.Context, tenantID string) (*models.Connection, error)
	DeleteConnection(ctx context.Context, tenantID string) error
}

type ConnectionHandler struct {
	store  ConnectionStore
	logger *logger.Logger
}

func NewConnectionHandler(store ConnectionStore, logger *logger.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		store:  store,
		logger: logger,
	}
}

func (h *ConnectionHandler) Get(c *gin.Context) {
	conn, err := h.store.GetConnection(c.Request.Context(), middleware.TenantID(c))
	if errors.Is(err, repository.ErrConnectionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": conn})
}

// Delete disconnects the storefront. Synced catalog data is kept.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	err := h.store.DeleteConnection(c.Request.Context(), middleware.TenantID(c))
	if errors.Is(err, repository.ErrConnectionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}

	c.Status(http.StatusNoContent)
}
