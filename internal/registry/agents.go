package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/envvars"
	"github.com/router-for-me/APIConsole/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Agent is an agent row with its env vars decoded.
type Agent struct {
	ID        uint64      `json:"id"`
	UserID    uint64      `json:"user_id"`
	Name      string      `json:"name"`
	EnvVars   envvars.Map `json:"env_vars"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AgentInput holds the writable agent fields. EnvVars is the raw JSON supplied by the caller.
type AgentInput struct {
	Name    string
	EnvVars json.RawMessage
}

func (in AgentInput) normalize() (string, envvars.Map, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, &ValidationError{Message: "missing required fields: name"}
	}
	vars, errParse := envvars.Parse(in.EnvVars)
	if errParse != nil {
		return "", nil, &ValidationError{Message: envvars.ErrNotObject.Error()}
	}
	return name, vars, nil
}

// AgentRepo is the agent repository of one owner.
type AgentRepo struct {
	owned
}

// List returns the owner's agents, newest first.
func (r *AgentRepo) List(ctx context.Context) ([]Agent, error) {
	var rows []models.Agent
	if errFind := r.scoped(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("registry: list agents: %w", errFind)
	}
	out := make([]Agent, 0, len(rows))
	for i := range rows {
		out = append(out, decodeAgent(&rows[i]))
	}
	return out, nil
}

// Get returns one agent of the owner.
func (r *AgentRepo) Get(ctx context.Context, id uint64) (*Agent, error) {
	var row models.Agent
	errFind := r.scoped(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if errFind != nil {
		return nil, fmt.Errorf("registry: get agent: %w", errFind)
	}
	agent := decodeAgent(&row)
	return &agent, nil
}

// Create inserts an agent and returns its ID.
func (r *AgentRepo) Create(ctx context.Context, in AgentInput) (uint64, error) {
	name, vars, errValidate := in.normalize()
	if errValidate != nil {
		return 0, errValidate
	}
	encoded, errEncode := envvars.Encode(vars)
	if errEncode != nil {
		return 0, errEncode
	}
	now := r.clock()
	row := models.Agent{
		UserID:    r.ownerID,
		Name:      name,
		EnvVars:   datatypes.JSON(encoded),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("registry: create agent: %w", errCreate)
	}
	return row.ID, nil
}

// Update replaces the name and env vars of an owned agent.
func (r *AgentRepo) Update(ctx context.Context, id uint64, in AgentInput) error {
	name, vars, errValidate := in.normalize()
	if errValidate != nil {
		return errValidate
	}
	encoded, errEncode := envvars.Encode(vars)
	if errEncode != nil {
		return errEncode
	}
	if _, errGet := r.Get(ctx, id); errGet != nil {
		return errGet
	}

	res := r.scoped(ctx).Model(&models.Agent{}).Where("id = ?", id).Updates(map[string]any{
		"name":       name,
		"env_vars":   datatypes.JSON(encoded),
		"updated_at": r.clock(),
	})
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			return ErrNameTaken
		}
		return fmt.Errorf("registry: update agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned agent.
func (r *AgentRepo) Delete(ctx context.Context, id uint64) error {
	res := r.scoped(ctx).Where("id = ?", id).Delete(&models.Agent{})
	if res.Error != nil {
		return fmt.Errorf("registry: delete agent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeAgent(row *models.Agent) Agent {
	vars, errParse := envvars.Parse(row.EnvVars)
	if errParse != nil {
		log.WithError(errParse).WithField("agent_id", row.ID).Warn("registry: stored env_vars unreadable")
		vars = envvars.Map{}
	}
	return Agent{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		EnvVars:   vars,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
