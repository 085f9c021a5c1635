package middleware

import (
	"net/http"
	"strings"
	"time"

	"ticketing/internal/shared/config"
	"ticketing/internal/shared/utils/response"
	"ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	ContextBuyerID  = "user_id"
	ContextUserRole = "user_role"

	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// parseToken validates an HS256 bearer token and returns its claims
func parseToken(authHeader, secret string) (jwt.MapClaims, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	// identity is issued elsewhere; only refresh tokens are refused here
	if tokenType, present := claims["type"]; present && tokenType != "access" {
		return nil, false
	}
	return claims, true
}

// buyerFromClaims reads user_id, falling back to the standard subject claim
func buyerFromClaims(claims jwt.MapClaims) string {
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "missing authorization header", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, response.ErrorCode("UNAUTHORIZED"))
			c.Abort()
			return
		}

		claims, ok := parseToken(authHeader, cfg.JWT.Secret)
		if !ok {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid token", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, response.ErrorCode("UNAUTHORIZED"))
			c.Abort()
			return
		}

		buyerID := buyerFromClaims(claims)
		if buyerID == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "token carries no buyer id", nil, response.ErrorCode("UNAUTHORIZED"))
			c.Abort()
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = RoleBuyer
		}

		c.Set(ContextBuyerID, buyerID)
		c.Set(ContextUserRole, role)
		c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ContextUserRole)
		if userRole == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, response.ErrorCode("UNAUTHORIZED"))
			c.Abort()
			return
		}

		if userRole != requiredRole {
			response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, response.ErrorCode("FORBIDDEN"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// GetBuyerID returns the authenticated buyer, or false when the request carried none
func GetBuyerID(c *gin.Context) (string, bool) {
	buyerID := c.GetString(ContextBuyerID)
	return buyerID, buyerID != ""
}

// RequestLogger logs every request once it has been served
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.GetDefault()
		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			log = log.WithRequestID(requestID)
		}
		if buyerID, ok := GetBuyerID(c); ok {
			log = log.WithUserID(buyerID)
		}
		if len(c.Errors) > 0 {
			log.LogHTTPError(c, c.Errors.Last(), c.Writer.Status())
			return
		}
		log.LogHTTPRequest(c, time.Now().Sub(start))
	}
}
