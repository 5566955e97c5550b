package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) requestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		}

		switch {
		case status >= http.StatusInternalServerError:
			s.log.Errorw("http request failed", fields...)
		default:
			s.log.Debugw("http request", fields...)
		}
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	if len(s.cfg.APIKeys) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="codexd"`)
			writeError(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}
		if _, tokenOK := s.cfg.APIKeys[token]; !tokenOK {
			c.Header("WWW-Authenticate", `Bearer realm="codexd"`)
			writeError(c, http.StatusUnauthorized, "invalid api key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(headerValue string) (string, bool) {
	v := strings.TrimSpace(headerValue)
	if v == "" {
		return "", false
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
		return "", false
	}

	token := strings.TrimSpace(v[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
