package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/bruwbird/codex/internal/completion"
	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/session"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	"github.com/gin-gonic/gin"
)

const maxRequestBodyBytes int64 = 1 << 20

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, message string) {
	writeJSON(c, status, errorResponse{Error: errorDetail{Message: message}})
}

func writeCommandError(c *gin.Context, err error) {
	writeError(c, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrGenerationRunning):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotActivated):
		return http.StatusPreconditionFailed
	case errors.Is(err, completion.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, completion.ErrEditFailed),
		errors.Is(err, document.ErrInvalidPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transport.ErrTransport),
		errors.Is(err, transport.ErrResponseTooLarge),
		errors.Is(err, completion.ErrMalformedResponse),
		errors.Is(err, completion.ErrEmptyCompletion):
		return http.StatusBadGateway
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, session.ErrMissingCredential),
		errors.Is(err, document.ErrInvalidRange),
		errors.Is(err, settings.ErrUnknownSetting),
		errors.Is(err, settings.ErrNotANumber),
		errors.Is(err, settings.ErrNotAnInteger),
		errors.Is(err, settings.ErrOutOfRange),
		errors.Is(err, settings.ErrEmptyValue),
		errors.Is(err, errOutsideWorkspace),
		errors.Is(err, errStatePath),
		errors.Is(err, document.ErrNotRegularFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONRequest decodes the body into dst. An empty body leaves dst at its
// zero value.
func decodeJSONRequest(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(c, http.StatusBadRequest, err.Error())
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "json: "))
		return false
	}
	return true
}
