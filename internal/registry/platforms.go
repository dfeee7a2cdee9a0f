package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbutil "github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/models"
	"gorm.io/gorm"
)

// PlatformInput holds the writable platform fields.
type PlatformInput struct {
	Name       string
	APIBaseURL string
	APIKey     string
	Models     string
	AdminURL   string
}

// normalize trims the input and checks mandatory fields.
func (in PlatformInput) normalize() (PlatformInput, error) {
	out := PlatformInput{
		Name:       strings.TrimSpace(in.Name),
		APIBaseURL: strings.TrimSpace(in.APIBaseURL),
		APIKey:     strings.TrimSpace(in.APIKey),
		Models:     strings.TrimSpace(in.Models),
		AdminURL:   strings.TrimSpace(in.AdminURL),
	}
	if errMissing := missingFields(map[string]string{
		"name":         out.Name,
		"api_base_url": out.APIBaseURL,
		"api_key":      out.APIKey,
		"models":       out.Models,
	}); errMissing != nil {
		return out, errMissing
	}
	return out, nil
}

func (in PlatformInput) adminURL() *string {
	if in.AdminURL == "" {
		return nil
	}
	v := in.AdminURL
	return &v
}

// PlatformRepo is the platform repository of one owner.
type PlatformRepo struct {
	owned
}

// List returns the owner's platforms, newest first.
func (r *PlatformRepo) List(ctx context.Context) ([]models.Platform, error) {
	rows := make([]models.Platform, 0)
	if errFind := r.scoped(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("registry: list platforms: %w", errFind)
	}
	return rows, nil
}

// Get returns one platform of the owner.
func (r *PlatformRepo) Get(ctx context.Context, id uint64) (*models.Platform, error) {
	var row models.Platform
	errFind := r.scoped(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if errFind != nil {
		return nil, fmt.Errorf("registry: get platform: %w", errFind)
	}
	return &row, nil
}

// Create inserts a platform and returns its ID.
func (r *PlatformRepo) Create(ctx context.Context, in PlatformInput) (uint64, error) {
	in, errValidate := in.normalize()
	if errValidate != nil {
		return 0, errValidate
	}
	now := r.clock()
	row := models.Platform{
		UserID:     r.ownerID,
		Name:       in.Name,
		APIBaseURL: in.APIBaseURL,
		APIKey:     in.APIKey,
		Models:     in.Models,
		AdminURL:   in.adminURL(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("registry: create platform: %w", errCreate)
	}
	return row.ID, nil
}

// Update replaces the writable fields of an owned platform.
func (r *PlatformRepo) Update(ctx context.Context, id uint64, in PlatformInput) error {
	in, errValidate := in.normalize()
	if errValidate != nil {
		return errValidate
	}
	if _, errGet := r.Get(ctx, id); errGet != nil {
		return errGet
	}

	res := r.scoped(ctx).Model(&models.Platform{}).Where("id = ?", id).Updates(map[string]any{
		"name":         in.Name,
		"api_base_url": in.APIBaseURL,
		"api_key":      in.APIKey,
		"models":       in.Models,
		"admin_url":    in.adminURL(),
		"updated_at":   r.clock(),
	})
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			return ErrNameTaken
		}
		return fmt.Errorf("registry: update platform: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned platform.
func (r *PlatformRepo) Delete(ctx context.Context, id uint64) error {
	res := r.scoped(ctx).Where("id = ?", id).Delete(&models.Platform{})
	if res.Error != nil {
		return fmt.Errorf("registry: delete platform: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
