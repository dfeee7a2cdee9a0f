// Package session issues, verifies and revokes database-backed login sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/models"
	"github.com/router-for-me/APIConsole/internal/security"
	"gorm.io/gorm"
)

// DefaultTTL is the lifetime of a freshly issued session.
const DefaultTTL = 24 * time.Hour

var (
	// ErrMissingCredentials indicates an empty username or password.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrUsernameTaken indicates registration with an existing username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionMissing indicates no token was presented.
	ErrSessionMissing = errors.New("unauthorized")
	// ErrSessionInvalid indicates an unknown, revoked or expired token.
	ErrSessionInvalid = errors.New("session expired")
)

// Identity is the authenticated caller attached to a verified session.
type Identity struct {
	UserID   uint64
	Username string
}

// Issued describes a session created by Login.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// Authority owns the session lifecycle.
type Authority struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewAuthority constructs an Authority; ttl <= 0 selects DefaultTTL.
func NewAuthority(db *gorm.DB, ttl time.Duration) *Authority {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authority{db: db, ttl: ttl, now: time.Now}
}

// Register creates a user account with a bcrypt password hash.
func (a *Authority) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingCredentials
	}

	var count int64
	if errCount := a.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("session: lookup username: %w", errCount)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, errHash
	}
	now := a.clock()
	user := models.User{
		Username:  username,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := a.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("session: create user: %w", errCreate)
	}
	return &user, nil
}

// Login checks credentials and persists a new session valid for the configured TTL.
func (a *Authority) Login(ctx context.Context, username, password string) (*Issued, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var user models.User
	errFind := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		security.BurnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	case errFind != nil:
		return nil, fmt.Errorf("session: lookup user: %w", errFind)
	}
	if !security.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	token, errToken := security.NewSessionToken()
	if errToken != nil {
		return nil, errToken
	}
	now := a.clock()
	row := models.Session{
		ID:        token,
		UserID:    user.ID,
		ExpiresAt: now.Add(a.ttl),
		CreatedAt: now,
	}
	if errCreate := a.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("session: create session: %w", errCreate)
	}
	return &Issued{
		Token:     token,
		ExpiresAt: row.ExpiresAt,
		Identity:  Identity{UserID: user.ID, Username: user.Username},
	}, nil
}

// sessionRow is the joined session/user projection read by Verify.
type sessionRow struct {
	UserID    uint64
	Username  string
	ExpiresAt time.Time
}

// Verify resolves a token to its identity. Expired rows are treated as absent;
// expiry is never extended.
func (a *Authority) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrSessionMissing
	}

	var row sessionRow
	errFind := a.db.WithContext(ctx).
		Table("sessions").
		Select("sessions.user_id AS user_id, users.username AS username, sessions.expires_at AS expires_at").
		Joins("JOIN users ON users.id = sessions.user_id").
		Where("sessions.id = ?", token).
		Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return Identity{}, ErrSessionInvalid
	}
	if errFind != nil {
		return Identity{}, fmt.Errorf("session: lookup session: %w", errFind)
	}
	if !a.clock().Before(row.ExpiresAt) {
		return Identity{}, ErrSessionInvalid
	}
	return Identity{UserID: row.UserID, Username: row.Username}, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (a *Authority) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if errDelete := a.db.WithContext(ctx).Where("id = ?", token).Delete(&models.Session{}).Error; errDelete != nil {
		return fmt.Errorf("session: delete session: %w", errDelete)
	}
	return nil
}

// PurgeExpired removes sessions whose expiry has passed and returns how many were deleted.
func (a *Authority) PurgeExpired(ctx context.Context) (int64, error) {
	res := a.db.WithContext(ctx).Where("expires_at <= ?", a.clock()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("session: purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (a *Authority) clock() time.Time {
	if a.now == nil {
		return time.Now().UTC()
	}
	return a.now().UTC()
}
