package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/registry"
	"github.com/router-for-me/APIConsole/internal/session"
	log "github.com/sirupsen/logrus"
)

// Context keys set by the session middleware.
const (
	ContextUserIDKey   = "userID"
	ContextUsernameKey = "username"
)

// SetIdentity stores the verified caller on the request context.
func SetIdentity(c *gin.Context, identity session.Identity) {
	c.Set(ContextUserIDKey, identity.UserID)
	c.Set(ContextUsernameKey, identity.Username)
}

// identityFrom loads the caller stored by SetIdentity and writes 401 when absent.
func identityFrom(c *gin.Context) (session.Identity, bool) {
	rawID, okID := c.Get(ContextUserIDKey)
	userID, okCast := rawID.(uint64)
	if !okID || !okCast || userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrSessionMissing.Error()})
		return session.Identity{}, false
	}
	return session.Identity{UserID: userID, Username: c.GetString(ContextUsernameKey)}, true
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// parseID reads the :id path parameter and writes 400 when it is not a positive integer.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeRegistryError maps registry errors onto HTTP responses. Unexpected
// errors are logged and reported without detail.
func writeRegistryError(c *gin.Context, err error, resource, op string) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Message}
		if len(verr.Details) > 0 {
			body["details"] = verr.Details
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
	default:
		log.WithError(err).Errorf("%s %s failed", op, resource)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " " + resource + " failed"})
	}
}

// flexID accepts a row ID sent either as a JSON number or a numeric string.
type flexID uint64

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		trimmed = []byte(s)
	}
	v, errParse := strconv.ParseUint(string(trimmed), 10, 64)
	if errParse != nil {
		return errParse
	}
	*f = flexID(v)
	return nil
}
