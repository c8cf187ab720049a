package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	tokenKey        = "token"
)

// TokenValidator authenticates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.Token, error)
}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		}
		if t := currentToken(c); t != nil {
			args = append(args, "user", t.Username)
		}
		ctx := c.Request.Context()
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			l.Error(ctx, "request failed", append(args, "error", c.Errors.String())...)
		case len(c.Errors) > 0:
			l.Warn(ctx, "request rejected", append(args, "error", c.Errors.String())...)
		default:
			l.Info(ctx, "request", args...)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	abortWithError(c, http.StatusUnauthorized, msg)
}

// BearerAuth rejects requests without a currently valid token. Record store
// failures are reported as such rather than as 401.
func BearerAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			unauthorized(c, "missing or malformed bearer token")
			return
		}

		t, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				_ = c.Error(err)
				unauthorized(c, "invalid authentication credentials")
				return
			}
			fail(c, err)
			return
		}

		c.Set(tokenKey, t)
		c.Next()
	}
}

// currentToken returns the token BearerAuth stored on the context.
func currentToken(c *gin.Context) *models.Token {
	v, ok := c.Get(tokenKey)
	if !ok {
		return nil
	}
	t, _ := v.(*models.Token)
	return t
}
