package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bruwbird/codex/internal/document"
	"github.com/gin-gonic/gin"
)

type startSessionRequest struct {
	Model  string `json:"model"`
	APIKey string `json:"api_key"`
}

type sessionResponse struct {
	Activated bool `json:"activated"`
	Verified  bool `json:"verified"`
}

type completionRequest struct {
	Path      string          `json:"path"`
	Selection *document.Range `json:"selection,omitempty"`
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

type keyRequest struct {
	APIKey string `json:"api_key"`
}

type keyResponse struct {
	Verified bool `json:"verified"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if c.Request.Method == http.MethodHead {
		return
	}
	_, _ = c.Writer.Write([]byte("ok\n"))
}

func (s *Server) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if !decodeJSONRequest(c, &req) {
		return
	}

	verified, err := s.cmds.Activate(c.Request.Context(), req.Model, req.APIKey)
	if err != nil {
		writeCommandError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessionResponse{
		Activated: s.cmds.State().Activated(),
		Verified:  verified,
	})
}

func (s *Server) handleEndSession(c *gin.Context) {
	s.cmds.Deactivate()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCompletions(c *gin.Context) {
	var req completionRequest
	if !decodeJSONRequest(c, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(c, http.StatusBadRequest, "path is required")
		return
	}
	if req.Selection != nil && req.Selection.End.Before(req.Selection.Start) {
		writeError(c, http.StatusBadRequest, document.ErrInvalidRange.Error())
		return
	}

	doc, err := s.docs.Open(req.Path)
	if err != nil {
		writeCommandError(c, err)
		return
	}

	// A client disconnect must not abandon an edit half way; the request
	// still ends on the transport timeout.
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := s.cmds.Generate(ctx, doc, req.Selection)
	if err != nil {
		s.log.Warnw("generation failed",
			"document", doc.Name(),
			"request_id", c.GetString(ctxRequestID),
			"err", err,
		)
		writeCommandError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.cmds.Settings())
}

func (s *Server) handlePutSetting(c *gin.Context) {
	var req settingRequest
	if !decodeJSONRequest(c, &req) {
		return
	}
	raw, err := settingValue(req.Value)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cmds.UpdateSetting(c.Param("name"), raw); err != nil {
		writeCommandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleResetSettings(c *gin.Context) {
	if err := s.cmds.ResetSettings(c.Request.Context()); err != nil {
		writeCommandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePutKey(c *gin.Context) {
	var req keyRequest
	if !decodeJSONRequest(c, &req) {
		return
	}
	verified, err := s.cmds.SetAPIKey(c.Request.Context(), req.APIKey)
	if err != nil {
		writeCommandError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, keyResponse{Verified: verified})
}

// settingValue accepts the value as a JSON string or a bare JSON number.
func settingValue(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", errors.New("value is required")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.New("value must be a string or a number")
	}
	return n.String(), nil
}
