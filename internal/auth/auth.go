package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tradewind-labs/tradepost/pkg/models"
	"github.com/tradewind-labs/tradepost/pkg/problem"
)

// Context keys set by Middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Manager signs and verifies session tokens. Identity itself comes from an
// external provider (Discord OAuth upstream); this layer only carries the
// established identity across requests.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a token manager with a 7 day session lifetime.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret), ttl: 7 * 24 * time.Hour}
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed session token for a user.
func (m *Manager) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(tokenString string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware authenticates the request from its Bearer token and stores the
// user id and role in the gin context.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortProblem(c, problem.NewUnauthorized("Missing or malformed Authorization header", c.Request.URL.Path))
			return
		}

		claims, err := m.parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortProblem(c, problem.NewUnauthorized("Invalid or expired session token", c.Request.URL.Path))
			return
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortProblem(c, problem.NewUnauthorized("Invalid session subject", c.Request.URL.Path))
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin rejects requests whose session role is not admin. Must run
// after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(ContextRole); role != "admin" {
			abortProblem(c, problem.NewForbidden("Administrator access required", c.Request.URL.Path))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the gin context.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortProblem(c *gin.Context, p *problem.Details) {
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(p.Status, p)
}
