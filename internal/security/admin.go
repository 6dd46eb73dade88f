package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/shrixloki/lokiai-biometrics/internal/errors"
)

// AdminRole is the role claim value required on operator tokens.
const AdminRole = "admin"

// AdminClaims are the claims carried by an operator token.
type AdminClaims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth guards the administrative endpoints with an HS256 bearer token.
// An empty secret disables the admin surface entirely rather than leaving it
// open.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			appErr := apierrors.NewUnauthorizedError("admin API is disabled")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			appErr := apierrors.NewUnauthorizedError("missing bearer token")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		claims := &AdminClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))

		if err != nil || !parsed.Valid {
			appErr := apierrors.NewUnauthorizedError("invalid or expired token")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		if claims.Role != AdminRole {
			appErr := apierrors.NewUnauthorizedError("token lacks admin role")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}

// NewAdminToken mints an operator token. Used by the bootstrap tooling and
// tests.
func NewAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Subject: subject,
		Role:    AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "lokiai-biometrics",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
