package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/hockey-sim/internal/cache"
)

// CacheHandler exposes explicit cache invalidation, called by the ingest
// pipeline after new game data lands.
type CacheHandler struct {
	profiles *cache.ProfileCacheService
}

func NewCacheHandler(profiles *cache.ProfileCacheService) *CacheHandler {
	return &CacheHandler{profiles: profiles}
}

// InvalidateEntity drops every cached profile for one entity.
func (h *CacheHandler) InvalidateEntity(c *gin.Context) {
	entityID, err := strconv.ParseInt(c.Param("entity_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity ID"})
		return
	}
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache disabled"})
		return
	}
	if err := h.profiles.InvalidateEntity(c.Request.Context(), entityID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "invalidated": true})
}
