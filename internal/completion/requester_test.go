package completion_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bruwbird/codex/internal/admission"
	"github.com/bruwbird/codex/internal/completion"
	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/notify/notifytest"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

type countingDoc struct {
	*document.Buffer

	mu      sync.Mutex
	inserts int
}

func (d *countingDoc) Insert(at document.Position, text string) error {
	d.mu.Lock()
	d.inserts++
	d.mu.Unlock()
	return d.Buffer.Insert(at, text)
}

func (d *countingDoc) Inserts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inserts
}

// panickingDoc fails the edit by panicking instead of returning an error.
type panickingDoc struct {
	*document.Buffer
}

func (d *panickingDoc) Insert(document.Position, string) error {
	panic("boom")
}

type apiCall struct {
	Path          string
	Authorization string
	Body          completion.Request
}

type fixture struct {
	store     *settings.Memory
	admission *admission.Controller
	notifier  *notifytest.Recorder
	requester *completion.Requester
	calls     chan apiCall
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()

	f := &fixture{
		store:     settings.NewMemory(),
		admission: admission.New(),
		notifier:  &notifytest.Recorder{},
		calls:     make(chan apiCall, 4),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body completion.Request
		_ = json.Unmarshal(raw, &body)
		f.calls <- apiCall{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	if err := f.store.Set(settings.KeyAPIKey, "sk-test"); err != nil {
		t.Fatalf("Set key: %v", err)
	}

	logger := zaptest.NewLogger(t).Sugar()
	requester, err := completion.NewRequester(completion.Config{
		Store:     f.store,
		Sender:    transport.New(transport.Config{BaseURL: srv.URL, Logger: logger}),
		Admission: f.admission,
		Notifier:  f.notifier,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewRequester: %v", err)
	}
	f.requester = requester
	return f
}

func (f *fixture) admit(t *testing.T, doc document.Document) {
	t.Helper()
	if !f.admission.TryAdmit(doc.ID()) {
		t.Fatalf("TryAdmit(%s) = false", doc.ID())
	}
}

func (f *fixture) assertReleased(t *testing.T, doc document.Document) {
	t.Helper()
	if !f.admission.TryAdmit(doc.ID()) {
		t.Fatalf("admission marker for %s was not released", doc.ID())
	}
	f.admission.Release(doc.ID())
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestComplete_InsertsFirstChoiceAtPosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t, writeJSON(`{"choices":[{"text":"hello"},{"text":"ignored"}]}`))
	doc := &countingDoc{Buffer: document.NewBuffer("/ws/main.py", "foo\nbar")}
	at := document.Position{Line: 0, Character: 3}

	f.admit(t, doc)
	res, err := f.requester.Complete(context.Background(), doc, "foo", at)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	wantRes := completion.Result{Document: "/ws/main.py", Text: "hello", At: at}
	if diff := cmp.Diff(wantRes, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	text, _ := doc.Text()
	if diff := cmp.Diff("foohello\nbar", text); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, doc.Inserts()); diff != "" {
		t.Fatalf("insert count mismatch (-want +got):\n%s", diff)
	}

	wantCall := apiCall{
		Path:          settings.DefaultModel,
		Authorization: "Bearer sk-test",
		Body: completion.Request{
			Prompt:    "foo",
			MaxTokens: 128,
			TopP:      1,
		},
	}
	if diff := cmp.Diff(wantCall, <-f.calls); diff != "" {
		t.Fatalf("api call mismatch (-want +got):\n%s", diff)
	}

	wantMsgs := []notifytest.Message{{Level: notifytest.LevelInfo, Text: "The code is added in main.py"}}
	if diff := cmp.Diff(wantMsgs, f.notifier.Messages()); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, f.notifier.ProgressDone()); diff != "" {
		t.Fatalf("progress done mismatch (-want +got):\n%s", diff)
	}
	f.assertReleased(t, doc)
}

func TestComplete_UsesSettingsReadAtDispatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, writeJSON(`{"choices":[{"text":"x"}]}`))
	for name, raw := range map[string]string{
		"temperature":       "0.7",
		"max_tokens":        "64",
		"top_p":             "0.5",
		"frequency_penalty": "1.5",
		"presence_penalty":  "2",
		"model":             "/v1/engines/cushman-codex/completions",
	} {
		if err := settings.Apply(f.store, name, raw); err != nil {
			t.Fatalf("Apply(%s): %v", name, err)
		}
	}

	doc := document.NewBuffer("/ws/a.go", "")
	f.admit(t, doc)
	if _, err := f.requester.Complete(context.Background(), doc, "package a", document.Position{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	want := apiCall{
		Path:          "/v1/engines/cushman-codex/completions",
		Authorization: "Bearer sk-test",
		Body: completion.Request{
			Prompt:           "package a",
			Temperature:      0.7,
			MaxTokens:        64,
			TopP:             0.5,
			FrequencyPenalty: 1.5,
			PresencePenalty:  2,
		},
	}
	if diff := cmp.Diff(want, <-f.calls); diff != "" {
		t.Fatalf("api call mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_Non200PerformsNoEdit(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"bad key"}}`, status)
			})
			doc := &countingDoc{Buffer: document.NewBuffer("/ws/main.py", "foo")}

			f.admit(t, doc)
			_, err := f.requester.Complete(context.Background(), doc, "foo", document.Position{Line: 0, Character: 3})
			if !errors.Is(err, completion.ErrUnauthenticated) {
				t.Fatalf("Complete error: got %v want %v", err, completion.ErrUnauthenticated)
			}

			if diff := cmp.Diff(0, doc.Inserts()); diff != "" {
				t.Fatalf("insert count mismatch (-want +got):\n%s", diff)
			}
			wantMsgs := []notifytest.Message{{Level: notifytest.LevelError, Text: "API key invalid or expired"}}
			if diff := cmp.Diff(wantMsgs, f.notifier.Messages()); diff != "" {
				t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
			}
			f.assertReleased(t, doc)
		})
	}
}

func TestComplete_FailuresReleaseAndNotifyOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		at      document.Position
		wantErr error
	}{
		{
			name:    "malformed json",
			handler: writeJSON(`{"choices":[`),
			wantErr: completion.ErrMalformedResponse,
		},
		{
			name:    "no choices",
			handler: writeJSON(`{"choices":[]}`),
			wantErr: completion.ErrEmptyCompletion,
		},
		{
			name:    "position gone",
			handler: writeJSON(`{"choices":[{"text":"hello"}]}`),
			at:      document.Position{Line: 9, Character: 0},
			wantErr: completion.ErrEditFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.handler)
			doc := document.NewBuffer("/ws/main.py", "foo")

			f.admit(t, doc)
			_, err := f.requester.Complete(context.Background(), doc, "foo", tt.at)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Complete error: got %v want %v", err, tt.wantErr)
			}

			text, _ := doc.Text()
			if diff := cmp.Diff("foo", text); diff != "" {
				t.Fatalf("document mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(1, f.notifier.Count(notifytest.LevelError)); diff != "" {
				t.Fatalf("error notifications mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(0, f.notifier.Count(notifytest.LevelInfo)); diff != "" {
				t.Fatalf("info notifications mismatch (-want +got):\n%s", diff)
			}
			f.assertReleased(t, doc)
		})
	}
}

func TestComplete_TransportFailureReleases(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	store := settings.NewMemory()
	ctrl := admission.New()
	rec := &notifytest.Recorder{}
	requester, err := completion.NewRequester(completion.Config{
		Store:     store,
		Sender:    transport.New(transport.Config{BaseURL: baseURL}),
		Admission: ctrl,
		Notifier:  rec,
	})
	if err != nil {
		t.Fatalf("NewRequester: %v", err)
	}

	doc := document.NewBuffer("/ws/main.py", "foo")
	if !ctrl.TryAdmit(doc.ID()) {
		t.Fatalf("TryAdmit = false")
	}
	_, err = requester.Complete(context.Background(), doc, "foo", document.Position{})
	if !errors.Is(err, transport.ErrTransport) {
		t.Fatalf("Complete error: got %v want %v", err, transport.ErrTransport)
	}
	if ctrl.InFlight(doc.ID()) {
		t.Fatalf("admission marker was not released")
	}
	if diff := cmp.Diff(1, rec.Count(notifytest.LevelError)); diff != "" {
		t.Fatalf("error notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_RequiresAdmission(t *testing.T) {
	t.Parallel()

	f := newFixture(t, writeJSON(`{"choices":[{"text":"hello"}]}`))
	doc := document.NewBuffer("/ws/main.py", "foo")

	_, err := f.requester.Complete(context.Background(), doc, "foo", document.Position{})
	if !errors.Is(err, completion.ErrNotAdmitted) {
		t.Fatalf("Complete error: got %v want %v", err, completion.ErrNotAdmitted)
	}
	if got := len(f.calls); got != 0 {
		t.Fatalf("unexpected api calls: %d", got)
	}
}

func TestComplete_ReleasesWhenInsertPanics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, writeJSON(`{"choices":[{"text":"x"}]}`))
	doc := &panickingDoc{Buffer: document.NewBuffer("/ws/main.py", "foo")}

	f.admit(t, doc)
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_, _ = f.requester.Complete(context.Background(), doc, "foo", document.Position{Line: 0, Character: 3})
	}()

	if diff := cmp.Diff(any("boom"), recovered); diff != "" {
		t.Fatalf("recovered value mismatch (-want +got):\n%s", diff)
	}
	if f.admission.InFlight(doc.ID()) {
		t.Fatalf("%s still in flight after panic", doc.ID())
	}
	f.assertReleased(t, doc)
}
