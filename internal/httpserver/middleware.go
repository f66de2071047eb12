package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/internal/auth"
	"storefront/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"
	identityKey     = "identity"
	requestIDKey    = "request_id"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if id, ok := identityFrom(c); ok {
			entry = entry.WithField("user_id", id.UserID)
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func recoveryHandler(logger logrus.FieldLogger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.WithField("request_id", c.GetString(requestIDKey)).
			WithField("panic", recovered).Error("handler panic")
		abortError(c, http.StatusInternalServerError, domain.KindInternal, "internal error")
	}
}

// authenticate resolves a bearer token when one is sent. Requests without a
// token continue anonymously; a bad token is rejected.
func authenticate(users authenticator, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			abortError(c, http.StatusUnauthorized, domain.KindUnauthorized, "authorization header must be a bearer token")
			return
		}
		id, err := users.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, logger, err)
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := identityFrom(c); !ok {
			abortError(c, http.StatusUnauthorized, domain.KindUnauthorized, "authentication required")
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, _ := identityFrom(c); !id.IsAdmin() {
			abortError(c, http.StatusForbidden, domain.KindForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

// requireOwner allows the user named by the path parameter, or an admin.
func requireOwner(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		if !auth.AuthorizeIdentity(id, c.Param(param)) {
			abortError(c, http.StatusForbidden, domain.KindForbidden, "not allowed to access this resource")
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
