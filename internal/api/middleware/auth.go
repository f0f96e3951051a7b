package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
)

const (
	ctxSubjectID = "subject_id"
	ctxRole      = "role"
)

// Claims is the token payload the core trusts: a subject and a role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for the given identity.
func GenerateToken(subjectID uuid.UUID, role rider.Role, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token string and extracts the identity.
func ParseToken(tokenString, secret string) (uuid.UUID, rider.Role, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", jwt.ErrTokenUnverifiable
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}

	role := rider.Role(claims.Role)
	if !role.IsValid() {
		return uuid.Nil, "", jwt.ErrTokenInvalidClaims
	}

	return subjectID, role, nil
}

// RequireAuth authenticates the bearer token and places (subject, role) in
// the request context.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		subjectID, role, err := ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxSubjectID, subjectID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// RequireAdmin gates a route to admin identities. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleOf(c) != rider.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// SubjectID returns the authenticated caller's identity.
func SubjectID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ctxSubjectID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// RoleOf returns the authenticated caller's role claim.
func RoleOf(c *gin.Context) rider.Role {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(rider.Role); ok {
			return role
		}
	}
	return ""
}
