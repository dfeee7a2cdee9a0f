package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/models"
	"github.com/router-for-me/APIConsole/internal/registry"
)

// PlatformHandler manages the caller's platforms.
type PlatformHandler struct {
	registry *registry.Registry
}

// NewPlatformHandler constructs a PlatformHandler.
func NewPlatformHandler(reg *registry.Registry) *PlatformHandler {
	return &PlatformHandler{registry: reg}
}

// platformRequest is the create/update payload.
type platformRequest struct {
	Name       string  `json:"name"`
	APIBaseURL string  `json:"api_base_url"`
	APIKey     string  `json:"api_key"`
	Models     string  `json:"models"`
	AdminURL   *string `json:"admin_url"`
}

func (r platformRequest) input() registry.PlatformInput {
	in := registry.PlatformInput{
		Name:       r.Name,
		APIBaseURL: r.APIBaseURL,
		APIKey:     r.APIKey,
		Models:     r.Models,
	}
	if r.AdminURL != nil {
		in.AdminURL = *r.AdminURL
	}
	return in
}

// platformView adds the parsed model list to the stored row.
type platformView struct {
	models.Platform
	ModelList []string `json:"model_list"`
}

func newPlatformView(p *models.Platform) platformView {
	return platformView{Platform: *p, ModelList: p.ModelList()}
}

// List returns the caller's platforms, newest first.
func (h *PlatformHandler) List(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	rows, errList := h.registry.Platforms(identity).List(c.Request.Context())
	if errList != nil {
		writeRegistryError(c, errList, "platform", "list")
		return
	}
	out := make([]platformView, 0, len(rows))
	for i := range rows {
		out = append(out, newPlatformView(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one platform.
func (h *PlatformHandler) Get(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, errGet := h.registry.Platforms(identity).Get(c.Request.Context(), id)
	if errGet != nil {
		writeRegistryError(c, errGet, "platform", "get")
		return
	}
	c.JSON(http.StatusOK, newPlatformView(row))
}

// Create stores a new platform.
func (h *PlatformHandler) Create(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var body platformRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id, errCreate := h.registry.Platforms(identity).Create(c.Request.Context(), body.input())
	if errCreate != nil {
		writeRegistryError(c, errCreate, "platform", "create")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "platform created"})
}

// Update replaces a platform's fields.
func (h *PlatformHandler) Update(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body platformRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errUpdate := h.registry.Platforms(identity).Update(c.Request.Context(), id, body.input()); errUpdate != nil {
		writeRegistryError(c, errUpdate, "platform", "update")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "platform updated", "id": id})
}

// Delete removes a platform.
func (h *PlatformHandler) Delete(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.registry.Platforms(identity).Delete(c.Request.Context(), id); errDelete != nil {
		writeRegistryError(c, errDelete, "platform", "delete")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "platform deleted"})
}
