package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/executor"
	"github.com/router-for-me/APIConsole/internal/models"
	"github.com/router-for-me/APIConsole/internal/registry"
	"github.com/router-for-me/APIConsole/internal/resolver"
	"github.com/router-for-me/APIConsole/internal/session"
	log "github.com/sirupsen/logrus"
)

// Executor performs one outbound test call.
type Executor interface {
	Execute(ctx context.Context, target resolver.Target) executor.Result
}

// TestHandler composes and runs test calls with the caller's credentials.
type TestHandler struct {
	registry *registry.Registry
	executor Executor
}

// NewTestHandler constructs a TestHandler.
func NewTestHandler(reg *registry.Registry, exec Executor) *TestHandler {
	return &TestHandler{registry: reg, executor: exec}
}

// testRequest is shared by the test endpoints; agentId is only read by AgentVars.
type testRequest struct {
	PlatformID flexID `json:"platformId"`
	Model      string `json:"model"`
	AgentID    flexID `json:"agentId"`
}

const errMissingParams = "missing required parameters"

// testCall is a decoded test request with the caller's platform loaded.
type testCall struct {
	testRequest
	identity session.Identity
	platform *models.Platform
}

func (t testCall) target() resolver.Target {
	return resolver.TargetFor(t.platform, t.Model)
}

// bindTest decodes the request and loads the caller's platform.
func (h *TestHandler) bindTest(c *gin.Context, needAgent bool) (testCall, bool) {
	identity, ok := identityFrom(c)
	if !ok {
		return testCall{}, false
	}
	var body testRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingParams})
		return testCall{}, false
	}
	body.Model = strings.TrimSpace(body.Model)
	if body.PlatformID == 0 || body.Model == "" || (needAgent && body.AgentID == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingParams})
		return testCall{}, false
	}
	platform, errGet := h.registry.Platforms(identity).Get(c.Request.Context(), uint64(body.PlatformID))
	if errGet != nil {
		writeRegistryError(c, errGet, "platform", "get")
		return testCall{}, false
	}
	return testCall{testRequest: body, identity: identity, platform: platform}, true
}

// Command renders the curl command for a platform and model.
func (h *TestHandler) Command(c *gin.Context) {
	call, ok := h.bindTest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": resolver.Command(call.target())})
}

// AgentVars resolves an agent's env var templates against a platform and model.
func (h *TestHandler) AgentVars(c *gin.Context) {
	call, ok := h.bindTest(c, true)
	if !ok {
		return
	}
	agent, errGet := h.registry.Agents(call.identity).Get(c.Request.Context(), uint64(call.AgentID))
	if errGet != nil {
		writeRegistryError(c, errGet, "agent", "get")
		return
	}
	resolved := resolver.ResolveVars(call.target(), agent.EnvVars)
	c.JSON(http.StatusOK, gin.H{
		"resolvedVars": resolved,
		"originalVars": agent.EnvVars,
	})
}

// Execute sends the greeting request and reports the normalized outcome.
func (h *TestHandler) Execute(c *gin.Context) {
	call, ok := h.bindTest(c, false)
	if !ok {
		return
	}
	result := h.executor.Execute(c.Request.Context(), call.target())
	if !result.Success {
		log.WithFields(log.Fields{
			"platform_id": call.platform.ID,
			"model":       call.Model,
		}).Warnf("test call failed: %s", result.Error)
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
