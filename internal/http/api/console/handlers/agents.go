package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/registry"
)

// AgentHandler manages the caller's agents.
type AgentHandler struct {
	registry *registry.Registry
}

// NewAgentHandler constructs an AgentHandler.
func NewAgentHandler(reg *registry.Registry) *AgentHandler {
	return &AgentHandler{registry: reg}
}

// agentRequest is the create/update payload. Both envVars and env_vars are accepted.
type agentRequest struct {
	Name         string          `json:"name"`
	EnvVars      json.RawMessage `json:"envVars"`
	EnvVarsSnake json.RawMessage `json:"env_vars"`
}

func (r agentRequest) input() registry.AgentInput {
	vars := r.EnvVars
	if len(vars) == 0 {
		vars = r.EnvVarsSnake
	}
	return registry.AgentInput{Name: r.Name, EnvVars: vars}
}

// List returns the caller's agents, newest first.
func (h *AgentHandler) List(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	rows, errList := h.registry.Agents(identity).List(c.Request.Context())
	if errList != nil {
		writeRegistryError(c, errList, "agent", "list")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Get returns one agent.
func (h *AgentHandler) Get(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	agent, errGet := h.registry.Agents(identity).Get(c.Request.Context(), id)
	if errGet != nil {
		writeRegistryError(c, errGet, "agent", "get")
		return
	}
	c.JSON(http.StatusOK, agent)
}

// Create stores a new agent.
func (h *AgentHandler) Create(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var body agentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id, errCreate := h.registry.Agents(identity).Create(c.Request.Context(), body.input())
	if errCreate != nil {
		writeRegistryError(c, errCreate, "agent", "create")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "agent created"})
}

// Update replaces an agent's name and env vars.
func (h *AgentHandler) Update(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body agentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errUpdate := h.registry.Agents(identity).Update(c.Request.Context(), id, body.input()); errUpdate != nil {
		writeRegistryError(c, errUpdate, "agent", "update")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent updated", "id": id})
}

// Delete removes an agent.
func (h *AgentHandler) Delete(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.registry.Agents(identity).Delete(c.Request.Context(), id); errDelete != nil {
		writeRegistryError(c, errDelete, "agent", "delete")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent deleted"})
}
