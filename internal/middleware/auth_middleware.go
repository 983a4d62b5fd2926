package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/util"
)

// Context keys for owner information
const (
	CustomerIDKey = "customer_id"
	UserEmailKey  = "user_email"
	UserRoleKey   = "user_role"
	SessionKeyKey = "session_key"
)

// SessionHeader carries the opaque key of an anonymous cart.
const SessionHeader = "X-Session-Key"

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *util.Claims) {
	c.Set(CustomerIDKey, claims.CustomerID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, claims.Role)
}

// Authenticate validates the bearer token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		if c.GetHeader("Authorization") == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "authorization header is required")
			c.Abort()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "authorization header must be a bearer token")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if err == util.ErrExpiredToken {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "token has expired")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "invalid token")
			}
			c.Abort()
			return
		}

		setClaims(c, claims)

		log.Debug("Customer authenticated", map[string]interface{}{
			"customer_id": claims.CustomerID,
			"role":        claims.Role,
		})

		c.Next()
	}
}

// ResolveCartOwner identifies the cart owner: a valid bearer token wins,
// otherwise the X-Session-Key header names a guest cart. A request with
// neither is rejected. An invalid token is rejected rather than silently
// downgraded to a guest.
func (m *AuthMiddleware) ResolveCartOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		if c.GetHeader("Authorization") != "" {
			m.Authenticate()(c)
			return
		}

		sessionKey := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionKey == "" {
			errors.Unauthorized(c, "a bearer token or "+SessionHeader+" header is required")
			c.Abort()
			return
		}
		if !util.ValidSessionKey(sessionKey) {
			log.Warn("Invalid session key", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.BadRequest(c, errors.ValidationInvalidInput, "malformed "+SessionHeader+" header")
			c.Abort()
			return
		}

		c.Set(SessionKeyKey, strings.ToLower(sessionKey))
		c.Next()
	}
}

// RequireRole checks that the authenticated customer has one of roles.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, exists := GetUserRole(c)
		if !exists {
			log.Warn("Role information not found in context", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Forbidden(c, "role information not found")
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		customerID, _ := GetCustomerID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"customer_id":    customerID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		errors.Forbidden(c, "")
		c.Abort()
	}
}

// GetCustomerID extracts the authenticated customer id from context
func GetCustomerID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(CustomerIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	return email.(string), true
}

func GetUserRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	return role.(string), true
}

func GetSessionKey(c *gin.Context) (string, bool) {
	key, exists := c.Get(SessionKeyKey)
	if !exists {
		return "", false
	}
	return key.(string), true
}

// GetCartOwner returns the owner set by ResolveCartOwner.
func GetCartOwner(c *gin.Context) (service.CartOwner, bool) {
	if customerID, ok := GetCustomerID(c); ok {
		return service.UserOwner(customerID), true
	}
	if sessionKey, ok := GetSessionKey(c); ok {
		return service.SessionOwner(sessionKey), true
	}
	return service.CartOwner{}, false
}
