// Package keyverify checks an API key with a one-token probe request.
package keyverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bruwbird/codex/internal/completion"
	"github.com/bruwbird/codex/internal/notify"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	"go.uber.org/zap"
)

const (
	MessageVerified = "The key has been verified!"
	MessageRejected = "The key verification failed!"
)

var ErrEmptyKey = errors.New("api key is empty")

type Config struct {
	Store    settings.Store
	Sender   transport.Sender
	Notifier notify.Notifier
	Logger   *zap.SugaredLogger
}

type Verifier struct {
	store    settings.Store
	sender   transport.Sender
	notifier notify.Notifier
	logger   *zap.SugaredLogger
}

func New(cfg Config) (*Verifier, error) {
	if cfg.Store == nil {
		return nil, errors.New("settings store is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("sender is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Verifier{
		store:    cfg.Store,
		sender:   cfg.Sender,
		notifier: notifier,
		logger:   logger.With("component", "keyverify"),
	}, nil
}

// Verify probes the configured endpoint with key and records the outcome in
// the verified flag. HTTP 200 means valid; any other status means invalid.
// A transport failure also records false and is returned to the caller.
func (v *Verifier) Verify(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		v.record(false)
		v.notifier.Error(MessageRejected)
		return false, ErrEmptyKey
	}

	body, err := json.Marshal(completion.ProbeRequest())
	if err != nil {
		return false, fmt.Errorf("encode probe: %w", err)
	}
	path := settings.Model(v.store)

	progress := v.notifier.Progress("Verifying the API key")
	stop := notify.VerifySchedule.Start(progress)

	var status int
	err = v.sender.Send(ctx, transport.Request{Path: path, APIKey: key, Body: body}, func(resp *http.Response) error {
		status = resp.StatusCode
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	})

	stop()
	progress.Done()

	if err != nil {
		v.logger.Warnw("key verification request failed", "path", path, "err", err)
		v.record(false)
		v.notifier.Error(MessageRejected)
		return false, err
	}

	ok := status == http.StatusOK
	v.logger.Infow("key verification finished", "path", path, "status", status, "verified", ok)
	v.record(ok)
	if ok {
		v.notifier.Info(MessageVerified)
	} else {
		v.notifier.Error(MessageRejected)
	}
	return ok, nil
}

func (v *Verifier) record(verified bool) {
	if err := v.store.Set(settings.KeyVerified, verified); err != nil {
		v.logger.Errorw("persist verification flag", "err", err)
	}
}
