package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bruwbird/codex/internal/completion"
	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/keyverify"
	"github.com/bruwbird/codex/internal/notify"
	"github.com/bruwbird/codex/internal/prompt"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/settingsview"
	"github.com/bruwbird/codex/internal/transport"
	"go.uber.org/zap"
)

const (
	MessageNotActivated      = "The session is not activated"
	MessageActivated         = "The session is activated"
	MessageGenerationRunning = "Code generation is already running."
	MessageInvalidKey        = "The key entered is empty or invalid, please try again.."
	MessageKeyAccepted       = "Key accepted, Verifying..."
	MessageSettingsReset     = "The settings have been reset to their defaults"
)

var (
	ErrNotActivated      = errors.New("session is not activated")
	ErrGenerationRunning = errors.New("code generation is already running")
	ErrMissingCredential = errors.New("api key is empty or invalid")
	ErrNotInteractive    = errors.New("interactive input is not available")
)

type Config struct {
	State    *State
	Store    settings.Store
	Sender   transport.Sender
	Notifier notify.Notifier
	// Prompter is optional. Without it only the non-interactive commands work.
	Prompter prompt.Prompter
	Logger   *zap.SugaredLogger
}

// Commands implements the user-facing commands over one session.
type Commands struct {
	state     *State
	store     settings.Store
	requester *completion.Requester
	verifier  *keyverify.Verifier
	notifier  notify.Notifier
	prompter  prompt.Prompter
	logger    *zap.SugaredLogger
}

func NewCommands(cfg Config) (*Commands, error) {
	if cfg.State == nil {
		return nil, errors.New("session state is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("settings store is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	requester, err := completion.NewRequester(completion.Config{
		Store:     cfg.Store,
		Sender:    cfg.Sender,
		Admission: cfg.State.Admission(),
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := keyverify.New(keyverify.Config{
		Store:    cfg.Store,
		Sender:   cfg.Sender,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &Commands{
		state:     cfg.State,
		store:     cfg.Store,
		requester: requester,
		verifier:  verifier,
		notifier:  notifier,
		prompter:  cfg.Prompter,
		logger:    logger.With("component", "session"),
	}, nil
}

func (c *Commands) State() *State {
	return c.state
}

// StartSession activates the session and asks for the model endpoint. A
// stored verified key is verified again; otherwise the API key is prompted
// for and verified.
func (c *Commands) StartSession(ctx context.Context) error {
	if c.prompter == nil {
		return ErrNotInteractive
	}
	c.state.Activate()

	current := settings.Model(c.store)
	model, ok, err := c.prompter.Input(ctx, prompt.Input{
		Title:       "Enter the model endpoint",
		Placeholder: settings.DefaultModel,
		Value:       current,
	})
	if err != nil {
		c.state.Deactivate()
		return err
	}
	if ok && model != "" && model != current {
		if err := c.store.Set(settings.KeyModel, model); err != nil {
			c.state.Deactivate()
			return err
		}
	}

	if stored := settings.APIKey(c.store); stored != "" && settings.Bool(c.store, settings.KeyVerified, false) {
		c.notifier.Info(MessageActivated)
		_, err = c.verifier.Verify(ctx, stored)
		return err
	}

	key, ok, err := c.prompter.Input(ctx, prompt.Input{
		Title:    "Enter your API key",
		Password: true,
	})
	if err != nil {
		c.state.Deactivate()
		return err
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		c.state.Deactivate()
		c.notifier.Error(MessageInvalidKey)
		return ErrMissingCredential
	}

	_, err = c.SetAPIKey(ctx, key)
	return err
}

// Activate is the non-interactive form of StartSession. An empty model keeps
// the stored endpoint; an empty key reuses the stored key. The key is verified
// unless it is already stored and verified.
func (c *Commands) Activate(ctx context.Context, model, key string) (bool, error) {
	c.state.Activate()

	if model = strings.TrimSpace(model); model != "" {
		if err := c.store.Set(settings.KeyModel, model); err != nil {
			c.state.Deactivate()
			return false, err
		}
	}

	stored := settings.APIKey(c.store)
	key = strings.TrimSpace(key)
	if key == "" {
		key = stored
	}
	if key == "" {
		c.state.Deactivate()
		c.notifier.Error(MessageInvalidKey)
		return false, ErrMissingCredential
	}
	if key == stored && settings.Bool(c.store, settings.KeyVerified, false) {
		c.notifier.Info(MessageActivated)
		return true, nil
	}
	return c.SetAPIKey(ctx, key)
}

func (c *Commands) Deactivate() {
	c.state.Deactivate()
	c.logger.Infow("session deactivated", "in_flight", c.state.Admission().Len())
}

// Generate sends the selection, or the whole document when the selection is
// nil or empty, and inserts the completion after it.
func (c *Commands) Generate(ctx context.Context, doc document.Document, selection *document.Range) (completion.Result, error) {
	if !c.state.Activated() {
		c.notifier.Error(MessageNotActivated)
		if c.prompter == nil {
			return completion.Result{}, ErrNotActivated
		}
		if err := c.StartSession(ctx); err != nil {
			return completion.Result{}, fmt.Errorf("%w: %w", ErrNotActivated, err)
		}
		if !c.state.Activated() {
			return completion.Result{}, ErrNotActivated
		}
	}

	id := doc.ID()
	admission := c.state.Admission()
	if !admission.TryAdmit(id) {
		c.notifier.Error(MessageGenerationRunning)
		return completion.Result{}, fmt.Errorf("%w: %s", ErrGenerationRunning, id)
	}

	text, at, err := promptFor(doc, selection)
	if err != nil {
		admission.Release(id)
		c.notifier.Error("Could not read " + doc.Name() + ": " + err.Error())
		return completion.Result{}, err
	}

	c.logger.Debugw("generation admitted", "document", id, "at", at.String(), "prompt_bytes", len(text))
	return c.requester.Complete(ctx, doc, text, at)
}

func promptFor(doc document.Document, selection *document.Range) (string, document.Position, error) {
	if selection == nil || selection.IsEmpty() {
		text, err := doc.Text()
		if err != nil {
			return "", document.Position{}, err
		}
		end, err := doc.End()
		if err != nil {
			return "", document.Position{}, err
		}
		return text, end, nil
	}
	text, err := doc.TextIn(*selection)
	if err != nil {
		return "", document.Position{}, err
	}
	return text, selection.End, nil
}

// ChangeAPIKey asks for a new key and verifies it.
func (c *Commands) ChangeAPIKey(ctx context.Context) (bool, error) {
	if c.prompter == nil {
		return false, ErrNotInteractive
	}
	key, ok, err := c.prompter.Input(ctx, prompt.Input{
		Title:    "Enter your API key",
		Password: true,
	})
	if err != nil {
		return false, err
	}
	if !ok || strings.TrimSpace(key) == "" {
		c.notifier.Error(MessageInvalidKey)
		return false, ErrMissingCredential
	}
	return c.SetAPIKey(ctx, key)
}

// SetAPIKey stores key and verifies it.
func (c *Commands) SetAPIKey(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		c.notifier.Error(MessageInvalidKey)
		return false, ErrMissingCredential
	}
	if err := c.store.Set(settings.KeyAPIKey, key); err != nil {
		return false, err
	}
	if err := c.store.Set(settings.KeyVerified, false); err != nil {
		return false, err
	}
	c.notifier.Info(MessageKeyAccepted)
	return c.verifier.Verify(ctx, key)
}

// ChangeSetting lets the user pick a setting and enter a new value for it.
// Dismissing either prompt leaves the settings unchanged.
func (c *Commands) ChangeSetting(ctx context.Context) error {
	if c.prompter == nil {
		return ErrNotInteractive
	}

	items := make([]string, 0, len(settings.Names))
	for _, n := range settings.Names {
		items = append(items, string(n))
	}
	name, ok, err := c.prompter.Pick(ctx, "Select the setting to change", items)
	if err != nil || !ok {
		return err
	}

	spec, err := settings.Lookup(name)
	if err != nil {
		return err
	}
	raw, ok, err := c.prompter.Input(ctx, prompt.Input{
		Title:       spec.Title(),
		Placeholder: spec.Prompt,
		Value:       c.currentValue(spec),
		Validate:    spec.Validate,
	})
	if err != nil || !ok {
		return err
	}
	return c.UpdateSetting(name, raw)
}

// UpdateSetting validates and stores one setting. Invalid input is reported
// as a warning and the previous value is kept.
func (c *Commands) UpdateSetting(name, raw string) error {
	if err := settings.Apply(c.store, name, raw); err != nil {
		c.notifier.Warn(err.Error())
		return err
	}
	c.logger.Infow("setting updated", "name", name)
	c.notifier.Info(fmt.Sprintf("%s updated to %s", name, strings.TrimSpace(raw)))
	return nil
}

func (c *Commands) currentValue(spec settings.Spec) string {
	if !spec.Numeric {
		return settings.Model(c.store)
	}
	def, _ := strconv.ParseFloat(spec.Default, 64)
	return strconv.FormatFloat(settings.Float64(c.store, spec.Key, def), 'f', -1, 64)
}

func (c *Commands) ResetSettings(context.Context) error {
	if err := settings.Reset(c.store); err != nil {
		return err
	}
	c.notifier.Info(MessageSettingsReset)
	return nil
}

func (c *Commands) Settings() settingsview.Snapshot {
	return settingsview.Load(c.store)
}

func (c *Commands) ShowSettings(w io.Writer) error {
	return settingsview.Render(w, c.Settings())
}
