package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/kurban/internal/config"
)

var (
	// ErrInvalidPIN is returned for a wrong login PIN.
	ErrInvalidPIN = errors.New("invalid pin")
	// ErrInvalidSession is returned for a missing, forged, expired or logged out token.
	ErrInvalidSession = errors.New("invalid session")
)

const issuer = "kurban"

// Session is an authenticated seller device. There is one shared identity;
// sessions only differ by id.
type Session struct {
	ID        string     `json:"id"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Manager checks the shared PIN and issues and revokes session tokens.
type Manager struct {
	pin     string
	pinHash []byte
	secret  []byte
	ttl     time.Duration

	mu      sync.RWMutex
	revoked map[string]time.Time

	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates a session manager from the auth configuration.
func NewManager(cfg config.AuthConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pin:     cfg.PIN,
		pinHash: []byte(cfg.PINHash),
		secret:  []byte(cfg.TokenSecret),
		ttl:     cfg.SessionTTL,
		revoked: make(map[string]time.Time),
		now:     time.Now,
		logger:  logger,
	}
}

// Login exchanges the shared PIN for a signed session token.
func (m *Manager) Login(pin string) (string, Session, error) {
	if !m.checkPIN(pin) {
		m.logger.Warn("login rejected")
		return "", Session{}, ErrInvalidPIN
	}

	now := m.now().UTC().Truncate(time.Second)
	session := Session{ID: uuid.NewString(), IssuedAt: now}
	claims := jwt.RegisteredClaims{
		ID:       session.ID,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if m.ttl > 0 {
		exp := now.Add(m.ttl)
		session.ExpiresAt = &exp
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session token: %w", err)
	}

	m.logger.Info("session started", zap.String("session_id", session.ID))
	return token, session, nil
}

// Authenticate verifies a token and returns its session.
func (m *Manager) Authenticate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return Session{}, ErrInvalidSession
	}

	m.mu.RLock()
	_, revoked := m.revoked[claims.ID]
	m.mu.RUnlock()
	if revoked {
		return Session{}, ErrInvalidSession
	}

	session := Session{ID: claims.ID}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		session.ExpiresAt = &exp
	}
	return session, nil
}

// Logout revokes the session so its token stops working.
func (m *Manager) Logout(session Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var until time.Time
	if session.ExpiresAt != nil {
		until = *session.ExpiresAt
	}
	m.revoked[session.ID] = until

	// expired tokens fail verification anyway
	now := m.now()
	for id, exp := range m.revoked {
		if !exp.IsZero() && exp.Before(now) {
			delete(m.revoked, id)
		}
	}

	m.logger.Info("session ended", zap.String("session_id", session.ID))
}

func (m *Manager) checkPIN(pin string) bool {
	if len(m.pinHash) > 0 {
		return bcrypt.CompareHashAndPassword(m.pinHash, []byte(pin)) == nil
	}
	if m.pin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(m.pin)) == 1
}
