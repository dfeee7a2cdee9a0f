// Package registry provides owner-scoped CRUD over platforms and agents.
//
// Repositories are bound to one owner at construction; every query they issue
// carries the owner predicate, so a row belonging to someone else behaves
// exactly like a row that does not exist.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/router-for-me/APIConsole/internal/session"
	"gorm.io/gorm"
)

// ErrNotFound indicates the row is absent or owned by another user.
var ErrNotFound = errors.New("not found")

// ValidationError describes rejected input. Details, when set, reports which
// mandatory fields were present.
type ValidationError struct {
	Message string
	Details map[string]bool
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNameTaken indicates a name collision within the owner's namespace.
var ErrNameTaken = &ValidationError{Message: "name already exists"}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Registry hands out owner-bound repositories.
type Registry struct {
	db  *gorm.DB
	now func() time.Time
}

// New constructs a Registry.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

// Platforms returns the platform repository for owner.
func (r *Registry) Platforms(owner session.Identity) *PlatformRepo {
	return &PlatformRepo{owned: r.bind(owner)}
}

// Agents returns the agent repository for owner.
func (r *Registry) Agents(owner session.Identity) *AgentRepo {
	return &AgentRepo{owned: r.bind(owner)}
}

func (r *Registry) bind(owner session.Identity) owned {
	return owned{db: r.db, ownerID: owner.UserID, now: r.now}
}

// owned carries the owner predicate shared by all repositories.
type owned struct {
	db      *gorm.DB
	ownerID uint64
	now     func() time.Time
}

// scoped starts a query restricted to the owner's rows.
func (o owned) scoped(ctx context.Context) *gorm.DB {
	return o.db.WithContext(ctx).Where("user_id = ?", o.ownerID)
}

func (o owned) clock() time.Time {
	if o.now == nil {
		return time.Now().UTC()
	}
	return o.now().UTC()
}

// missingFields builds a ValidationError when any required field is blank.
// fields maps field name to its trimmed value.
func missingFields(fields map[string]string) *ValidationError {
	details := make(map[string]bool, len(fields))
	var missing []string
	for name, value := range fields {
		present := value != ""
		details[name] = present
		if !present {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{
		Message: "missing required fields: " + strings.Join(missing, ", "),
		Details: details,
	}
}
