package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bruwbird/codex/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	Workspace string
	APIKeys   map[string]struct{} // if empty, auth is disabled
}

// Server exposes the session commands over JSON HTTP.
type Server struct {
	cfg  Config
	cmds *session.Commands
	docs *documentCache
	log  *zap.SugaredLogger

	router *gin.Engine
}

func New(cfg Config, cmds *session.Commands, logger *zap.SugaredLogger) (*Server, error) {
	if cmds == nil {
		return nil, errors.New("session commands are required")
	}
	if strings.TrimSpace(cfg.Workspace) == "" {
		return nil, errors.New("workspace is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	docs, err := newDocumentCache(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:  cfg,
		cmds: cmds,
		docs: docs,
		log:  logger.With("component", "httpapi"),
	}
	s.router = s.newRouter()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the document cache.
func (s *Server) Close() {
	s.docs.Close()
}

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(s.requestLoggerMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.HEAD("/healthz", s.handleHealthz)

	v1 := r.Group("/v1")
	v1.Use(s.authMiddleware())
	v1.POST("/session", s.handleStartSession)
	v1.DELETE("/session", s.handleEndSession)
	v1.POST("/completions", s.handleCompletions)
	v1.GET("/settings", s.handleGetSettings)
	v1.PUT("/settings/:name", s.handlePutSetting)
	v1.POST("/settings/reset", s.handleResetSettings)
	v1.PUT("/key", s.handlePutKey)

	return r
}
