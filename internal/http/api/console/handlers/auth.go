package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/session"
	log "github.com/sirupsen/logrus"
)

// AuthHandler serves account registration and the session lifecycle.
type AuthHandler struct {
	authority *session.Authority
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authority *session.Authority) *AuthHandler {
	return &AuthHandler{authority: authority}
}

// credentialsRequest is the register/login payload.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionRequest carries a session token in the body.
type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

// Register creates an account.
func (h *AuthHandler) Register(c *gin.Context) {
	var body credentialsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	user, errRegister := h.authority.Register(c.Request.Context(), body.Username, body.Password)
	if errRegister != nil {
		if errors.Is(errRegister, session.ErrMissingCredentials) || errors.Is(errRegister, session.ErrUsernameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errRegister.Error()})
			return
		}
		log.WithError(errRegister).Error("register failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "registration failed"})
		return
	}
	log.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userId":  user.ID,
		"message": "registration successful",
	})
}

// Login issues a new session.
func (h *AuthHandler) Login(c *gin.Context) {
	var body credentialsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	issued, errLogin := h.authority.Login(c.Request.Context(), body.Username, body.Password)
	switch {
	case errors.Is(errLogin, session.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errLogin.Error()})
		return
	case errors.Is(errLogin, session.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": errLogin.Error()})
		return
	case errLogin != nil:
		log.WithError(errLogin).Error("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": issued.Token,
		"userId":    issued.Identity.UserID,
		"username":  issued.Identity.Username,
		"expiresAt": issued.ExpiresAt,
		"message":   "login successful",
	})
}

// Verify reports whether a session token is still valid.
func (h *AuthHandler) Verify(c *gin.Context) {
	var body sessionRequest
	_ = c.ShouldBindJSON(&body)
	token := body.SessionID
	if token == "" {
		token = BearerToken(c.GetHeader("Authorization"))
	}
	identity, errVerify := h.authority.Verify(c.Request.Context(), token)
	if errVerify != nil {
		if !errors.Is(errVerify, session.ErrSessionMissing) && !errors.Is(errVerify, session.ErrSessionInvalid) {
			log.WithError(errVerify).Error("verify session failed")
			c.JSON(http.StatusInternalServerError, gin.H{"valid": false})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"userId":   identity.UserID,
		"username": identity.Username,
	})
}

// Logout revokes a session. Unknown or empty tokens still succeed.
func (h *AuthHandler) Logout(c *gin.Context) {
	var body sessionRequest
	_ = c.ShouldBindJSON(&body)
	token := body.SessionID
	if token == "" {
		token = BearerToken(c.GetHeader("Authorization"))
	}
	if errLogout := h.authority.Logout(c.Request.Context(), token); errLogout != nil {
		log.WithError(errLogout).Error("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the caller attached to the current session.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   identity.UserID,
		"username": identity.Username,
	})
}
