package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/service"
	"go.uber.org/zap"
)

const (
	callerIDKey  = "callerId"
	jwtSecretKey = "jwtSecret"
	requestIDKey = "requestId"

	// RequestIDHeader carries the request id in both directions
	RequestIDHeader = "X-Request-ID"
)

// JWTSecretMiddleware makes the signing secret available to AuthMiddleware
func JWTSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(jwtSecretKey, []byte(secret))
		c.Next()
	}
}

// AuthMiddleware returns a Gin middleware for authentication. With
// requiredScope set only tokens carrying that scope are accepted; without it
// only caller tokens are.
func AuthMiddleware(requiredScope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		// Check if the Authorization header starts with "Bearer "
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid token format")
			return
		}

		tokenString := parts[1]

		// Parse the JWT token
		jwtSecret := c.MustGet(jwtSecretKey).([]byte)
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return jwtSecret, nil
		})

		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid token")
			return
		}

		// Extract claims from the token
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		scope, _ := claims["scope"].(string)
		if scope != requiredScope {
			abortUnauthorized(c, "Token not valid for this route")
			return
		}

		// Get caller ID from the token claims
		callerID, ok := claims["sub"].(string)
		if !ok || callerID == "" {
			abortUnauthorized(c, "Invalid caller ID in token")
			return
		}

		// Set caller ID in the context
		c.Set(callerIDKey, callerID)
		c.Next()
	}
}

// HostAuthMiddleware accepts only host bridge tokens
func HostAuthMiddleware() gin.HandlerFunc {
	return AuthMiddleware(service.ScopeHost)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Status:  "error",
		Code:    "unauthorized",
		Message: message,
	})
}

// RequestIDMiddleware tags every request with an id, reusing the client's
// when it sends one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware logs one line per request
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if callerID := c.GetString(callerIDKey); callerID != "" {
			fields = append(fields, zap.String("caller_id", callerID))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case len(c.Errors) > 0:
			logger.Warn("request completed with errors", append(fields, zap.String("errors", c.Errors.String()))...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
