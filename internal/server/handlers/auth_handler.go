package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/service/auth"
)

const (
	sessionKey = "session"

	// persistentCookieAge keeps the cookie across browser restarts when
	// sessions never expire.
	persistentCookieAge = 365 * 24 * time.Hour
)

// Sessions issues and checks seller sessions.
type Sessions interface {
	Login(pin string) (string, auth.Session, error)
	Authenticate(token string) (auth.Session, error)
	Logout(session auth.Session)
}

// AuthHandler exposes login, logout and the session guard.
type AuthHandler struct {
	sessions   Sessions
	cookieName string
	ttl        time.Duration
	logger     *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(sessions Sessions, cfg config.AuthConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		sessions:   sessions,
		cookieName: cfg.CookieName,
		ttl:        cfg.SessionTTL,
		logger:     logger,
	}
}

type loginRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// Login checks the PIN and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pin is required")
		return
	}

	token, session, err := h.sessions.Login(req.PIN)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setCookie(c, token, h.cookieMaxAge())
	c.JSON(http.StatusOK, gin.H{"token": token, "session": session})
}

// Logout revokes the current session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if session, ok := SessionFrom(c); ok {
		h.sessions.Logout(session)
	}
	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// Session returns the current session.
func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		respondError(c, h.logger, auth.ErrInvalidSession)
		return
	}
	c.JSON(http.StatusOK, session)
}

// RequireSession rejects requests without a valid bearer token or session cookie.
func (h *AuthHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := h.sessions.Authenticate(h.token(c))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func (h *AuthHandler) token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	token, err := c.Cookie(h.cookieName)
	if err != nil {
		return ""
	}
	return token
}

func (h *AuthHandler) cookieMaxAge() int {
	if h.ttl <= 0 {
		return int(persistentCookieAge / time.Second)
	}
	return int(h.ttl / time.Second)
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, value, maxAge, "/", "", c.Request.TLS != nil, true)
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c *gin.Context) (auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	session, ok := v.(auth.Session)
	return session, ok
}
