package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bruwbird/codex/internal/admission"
	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/notify"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	openai "github.com/openai/openai-go"
	"go.uber.org/zap"
)

var (
	ErrNotAdmitted       = errors.New("document is not admitted")
	ErrUnauthenticated   = errors.New("API key invalid or expired")
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrEmptyCompletion   = errors.New("completion has no choices")
	ErrEditFailed        = errors.New("document edit failed")
)

type Config struct {
	Store     settings.Store
	Sender    transport.Sender
	Admission *admission.Controller
	Notifier  notify.Notifier
	Logger    *zap.SugaredLogger
}

// Requester sends one completion request per admitted document and splices
// the first choice into it.
type Requester struct {
	store     settings.Store
	sender    transport.Sender
	admission *admission.Controller
	notifier  notify.Notifier
	logger    *zap.SugaredLogger
}

func NewRequester(cfg Config) (*Requester, error) {
	if cfg.Store == nil {
		return nil, errors.New("settings store is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("sender is required")
	}
	if cfg.Admission == nil {
		return nil, errors.New("admission controller is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Requester{
		store:     cfg.Store,
		sender:    cfg.Sender,
		admission: cfg.Admission,
		notifier:  notifier,
		logger:    logger.With("component", "completion"),
	}, nil
}

// Result describes an applied completion.
type Result struct {
	Document string            `json:"document"`
	Text     string            `json:"text"`
	At       document.Position `json:"at"`
}

// Complete requests a completion for prompt and inserts it into doc at at.
// doc must have been admitted by the shared admission controller; its marker
// is released exactly once when Complete returns, whatever the outcome.
// Exactly one success or failure notification is emitted.
func (r *Requester) Complete(
	ctx context.Context,
	doc document.Document,
	prompt string,
	at document.Position,
) (Result, error) {
	id := doc.ID()
	if !r.admission.InFlight(id) {
		return Result{}, fmt.Errorf("%w: %s", ErrNotAdmitted, id)
	}
	defer r.admission.Release(id)

	params := settings.LoadParams(r.store)
	path := settings.Model(r.store)
	apiKey := settings.APIKey(r.store)

	body, err := json.Marshal(NewRequest(prompt, params))
	if err != nil {
		r.notifier.Error("Code generation failed: " + err.Error())
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	progress := r.notifier.Progress("Generating code for " + doc.Name())
	stop := notify.CompletionSchedule.Start(progress)
	defer stop()

	var text string
	err = r.sender.Send(ctx, transport.Request{Path: path, APIKey: apiKey, Body: body}, func(resp *http.Response) error {
		choice, handleErr := decodeCompletion(resp)
		if handleErr != nil {
			return handleErr
		}
		if editErr := doc.Insert(at, choice); editErr != nil {
			return fmt.Errorf("%w: %w", ErrEditFailed, editErr)
		}
		text = choice
		return nil
	})

	stop()
	progress.Done()

	if err != nil {
		r.logger.Warnw(
			"completion failed",
			"document", id,
			"path", path,
			"err", err,
		)
		r.notifier.Error(failureMessage(doc, err))
		return Result{}, err
	}

	r.logger.Infow(
		"completion inserted",
		"document", id,
		"at", at.String(),
		"bytes", len(text),
	)
	r.notifier.Info("The code is added in " + doc.Name())
	return Result{Document: id, Text: text, At: at}, nil
}

func decodeCompletion(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", fmt.Errorf("%w: http %d", ErrUnauthenticated, resp.StatusCode)
	}

	raw, err := transport.ReadBody(resp)
	if err != nil {
		return "", err
	}

	var parsed openai.Completion
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Text, nil
}

func failureMessage(doc document.Document, err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "API key invalid or expired"
	case errors.Is(err, ErrEditFailed):
		return "Could not insert the code in " + doc.Name()
	case errors.Is(err, ErrEmptyCompletion):
		return "The API returned no completion"
	case errors.Is(err, ErrMalformedResponse):
		return "Code generation failed: the API response could not be parsed"
	default:
		return "Code generation failed: " + err.Error()
	}
}
