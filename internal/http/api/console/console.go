// Package console registers the JSON API served under /api.
package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	handlers "github.com/router-for-me/APIConsole/internal/http/api/console/handlers"
	"github.com/router-for-me/APIConsole/internal/logging"
	"github.com/router-for-me/APIConsole/internal/registry"
	"github.com/router-for-me/APIConsole/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps holds the collaborators shared by the API handlers.
type Deps struct {
	DB        *gorm.DB
	Authority *session.Authority
	Registry  *registry.Registry
	Executor  handlers.Executor
}

// NewEngine builds a gin engine with the standard middleware stack and all routes.
func NewEngine(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger())
	engine.Use(RecoveryMiddleware())
	engine.Use(CORSMiddleware())
	RegisterRoutes(engine, deps)
	return engine
}

// RegisterRoutes registers public and session-protected routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Authority == nil {
		return
	}
	reg := deps.Registry
	if reg == nil {
		reg = registry.New(deps.DB)
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api")

	siteHandler := handlers.NewSiteHandler(deps.DB)
	api.GET("/site", siteHandler.Get)

	authHandler := handlers.NewAuthHandler(deps.Authority)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/verify", authHandler.Verify)
	api.POST("/auth/logout", authHandler.Logout)

	authed := api.Group("")
	authed.Use(sessionAuthMiddleware(deps.Authority))

	authed.GET("/auth/me", authHandler.Me)

	platformHandler := handlers.NewPlatformHandler(reg)
	authed.GET("/platforms", platformHandler.List)
	authed.POST("/platforms", platformHandler.Create)
	authed.GET("/platforms/:id", platformHandler.Get)
	authed.PUT("/platforms/:id", platformHandler.Update)
	authed.DELETE("/platforms/:id", platformHandler.Delete)

	agentHandler := handlers.NewAgentHandler(reg)
	authed.GET("/agents", agentHandler.List)
	authed.POST("/agents", agentHandler.Create)
	authed.GET("/agents/:id", agentHandler.Get)
	authed.PUT("/agents/:id", agentHandler.Update)
	authed.DELETE("/agents/:id", agentHandler.Delete)

	if deps.Executor != nil {
		testHandler := handlers.NewTestHandler(reg, deps.Executor)
		authed.POST("/tests/command", testHandler.Command)
		authed.POST("/tests/agent-vars", testHandler.AgentVars)
		authed.POST("/tests/execute", testHandler.Execute)
	}
}

// sessionAuthMiddleware verifies the bearer session and loads the caller identity.
func sessionAuthMiddleware(authority *session.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := handlers.BearerToken(c.GetHeader("Authorization"))
		identity, errVerify := authority.Verify(c.Request.Context(), token)
		switch {
		case errors.Is(errVerify, session.ErrSessionMissing):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": session.ErrSessionMissing.Error()})
			return
		case errors.Is(errVerify, session.ErrSessionInvalid):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": session.ErrSessionInvalid.Error()})
			return
		case errVerify != nil:
			log.WithError(errVerify).Error("session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		handlers.SetIdentity(c, identity)
		c.Next()
	}
}

// RecoveryMiddleware converts panics into a generic 500 response.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithField("panic", recovered).Error("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// CORSMiddleware enables permissive CORS.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
