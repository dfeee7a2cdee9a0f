package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/models"
	internalsettings "github.com/router-for-me/APIConsole/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, errDB := h.db.DB()
	if errDB == nil {
		errDB = sqlDB.PingContext(c.Request.Context())
	}
	if errDB != nil {
		log.WithError(errDB).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SiteHandler exposes public site metadata.
type SiteHandler struct {
	db *gorm.DB
}

// NewSiteHandler constructs a SiteHandler.
func NewSiteHandler(db *gorm.DB) *SiteHandler {
	return &SiteHandler{db: db}
}

// Get returns the configured site name.
func (h *SiteHandler) Get(c *gin.Context) {
	siteName := internalsettings.DefaultSiteName
	var setting models.Setting
	errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", internalsettings.SiteNameKey).First(&setting).Error
	switch {
	case errFind == nil:
		var stored string
		if errUnmarshal := json.Unmarshal(setting.Value, &stored); errUnmarshal == nil && strings.TrimSpace(stored) != "" {
			siteName = strings.TrimSpace(stored)
		}
	case !errors.Is(errFind, gorm.ErrRecordNotFound):
		log.WithError(errFind).Error("load site name failed")
	}
	c.JSON(http.StatusOK, gin.H{"site_name": siteName})
}
