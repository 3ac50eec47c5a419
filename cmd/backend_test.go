package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/pdfdoc/pdfdoctest"
	"github.com/nzsystems/rezume/internal/session"
	"github.com/nzsystems/rezume/internal/toast"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "analytical-engine"
	cookieName   = "access_token"
)

// fakeBackend is an in-memory reZume API with switches to break it.
type fakeBackend struct {
	mu          sync.Mutex
	token       string
	down        bool
	offline     bool
	nextID      int64
	user        map[string]any
	collections map[string][]map[string]any
	requests    []string
	generations []string
	report      string
	// revokeOn ends the session right before serving this route.
	revokeOn string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()

	b := &fakeBackend{
		nextID:      100,
		user:        map[string]any{"email": testEmail, "language": "en", "theme": "light"},
		collections: map[string][]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]string{"message": "Welcome"})
	})
	mux.HandleFunc("POST "+session.LoginPath, b.login)
	mux.HandleFunc("POST "+session.LogoutPath, func(w http.ResponseWriter, _ *http.Request) {
		b.token = ""
		reply(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	})
	mux.HandleFunc("GET /api/profile/me", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, b.user)
	}))
	mux.HandleFunc("PUT /api/profile/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var upd map[string]any
		_ = json.NewDecoder(r.Body).Decode(&upd)
		for k, v := range upd {
			b.user[k] = v
		}
		reply(w, http.StatusOK, b.user)
	}))
	mux.HandleFunc("GET /api/profile/{kind}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		items := b.collections[r.PathValue("kind")]
		if items == nil {
			items = []map[string]any{}
		}
		reply(w, http.StatusOK, items)
	}))
	mux.HandleFunc("POST /api/profile/{kind}", b.authed(b.create))
	mux.HandleFunc("PUT /api/profile/{kind}/{id}", b.authed(b.update))
	mux.HandleFunc("DELETE /api/profile/{kind}/{id}", b.authed(b.delete))
	mux.HandleFunc("POST /api/profile/upload-cv", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{
			"message": "CV processed",
			"data": map[string]any{
				"title":     "Data Engineer",
				"education": []map[string]any{{"institution": "EPFL", "degree": "MSc"}},
				"skills":    []string{"Go"},
			},
		})
	}))
	mux.HandleFunc("POST /api/analyze", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{
			"score":       80,
			"summary":     "Good match",
			"skills":      []string{"Go"},
			"raw_matches": []map[string]any{{"title": "Backend Developer", "company": "Acme"}},
		})
	}))
	mux.HandleFunc("POST /api/generate-cv", b.authed(b.generate))
	mux.HandleFunc("GET /api/templates", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, []map[string]string{
			{"id": "modern", "name": "Moderne"},
			{"id": "classic", "name": "Classique"},
		})
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		route := r.Method + " " + r.URL.Path
		b.requests = append(b.requests, route)
		if route == b.revokeOn {
			b.token = ""
			b.revokeOn = ""
		}
		if b.down {
			reply(w, http.StatusServiceUnavailable, map[string]string{"detail": "maintenance"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return b, srv
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var cr map[string]string
	_ = json.NewDecoder(r.Body).Decode(&cr)
	if cr["email"] != testEmail || cr["password"] != testPassword {
		reply(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		return
	}

	b.token = strconv.FormatInt(time.Now().UnixNano(), 36)
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: b.token, Path: "/", HttpOnly: true})
	reply(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (b *fakeBackend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(cookieName)
		if err != nil || b.token == "" || c.Value != b.token {
			reply(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		h(w, r)
	}
}

// dropIfOffline closes the connection without an answer.
func (b *fakeBackend) dropIfOffline(w http.ResponseWriter) bool {
	if !b.offline {
		return false
	}
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		conn.Close()
	}
	return true
}

func (b *fakeBackend) create(w http.ResponseWriter, r *http.Request) {
	if b.dropIfOffline(w) {
		return
	}

	var item map[string]any
	_ = json.NewDecoder(r.Body).Decode(&item)
	if _, ok := item["id"]; ok {
		reply(w, http.StatusUnprocessableEntity, map[string]string{"detail": "id is read-only"})
		return
	}

	b.nextID++
	item["id"] = b.nextID
	kind := r.PathValue("kind")
	b.collections[kind] = append(b.collections[kind], item)
	reply(w, http.StatusOK, item)
}

func (b *fakeBackend) update(w http.ResponseWriter, r *http.Request) {
	if b.dropIfOffline(w) {
		return
	}

	var item map[string]any
	_ = json.NewDecoder(r.Body).Decode(&item)

	kind, id := r.PathValue("kind"), r.PathValue("id")
	for i, existing := range b.collections[kind] {
		if idString(existing["id"]) == id {
			item["id"] = existing["id"]
			b.collections[kind][i] = item
			reply(w, http.StatusOK, item)
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
}

func (b *fakeBackend) delete(w http.ResponseWriter, r *http.Request) {
	if b.dropIfOffline(w) {
		return
	}

	kind, id := r.PathValue("kind"), r.PathValue("id")
	items := b.collections[kind]
	for i, existing := range items {
		if idString(existing["id"]) == id {
			b.collections[kind] = append(items[:i], items[i+1:]...)
			reply(w, http.StatusOK, map[string]string{"message": "Deleted"})
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
}

func (b *fakeBackend) generate(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	id, _ := req["generation_id"].(string)
	b.generations = append(b.generations, id)

	if b.report != "" {
		w.Header().Set("X-CV-Validation-Report", b.report)
	}
	w.Header().Set("X-Generation-ID", "gen-1")
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(pdfdoctest.Minimal(2))
}

func idString(v any) string {
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) collection(kind string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.collections[kind]...)
}

func (b *fakeBackend) userField(key string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user[key]
}

func (b *fakeBackend) generationsSent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.generations...)
}

func (b *fakeBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

var errNoAnswer = errors.New("no scripted answer")

// scripted answers prompts from canned values and fails once they run out.
type scripted struct {
	mu       sync.Mutex
	inputs   []string
	selects  []int
	confirms []bool
	labels   []string
	onSelect func()
}

func (s *scripted) Input(label string, _ bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
	if len(s.inputs) == 0 {
		return "", errNoAnswer
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	return v, nil
}

func (s *scripted) Select(label string, _ []string) (int, error) {
	s.mu.Lock()
	s.labels = append(s.labels, label)
	if len(s.selects) == 0 {
		s.mu.Unlock()
		return 0, errNoAnswer
	}
	v := s.selects[0]
	s.selects = s.selects[1:]
	hook := s.onSelect
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return v, nil
}

func (s *scripted) Confirm(label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
	if len(s.confirms) == 0 {
		return false, errNoAnswer
	}
	v := s.confirms[0]
	s.confirms = s.confirms[1:]
	return v, nil
}

type harness struct {
	app    *application
	out    *bytes.Buffer
	errOut *bytes.Buffer

	mu    sync.Mutex
	added []toast.Toast
}

func newHarness(t *testing.T, apiURL string, prompt prompter) *harness {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(testPassword+"\n"), 0o600))

	cfg := &Config{
		APIURL:       apiURL,
		Email:        testEmail,
		PasswordFile: passwordFile,
		StateFile:    filepath.Join(dir, "state.json"),
		Timeout:      5 * time.Second,
		Retry:        &RetryConfig{Attempts: 2, Interval: time.Millisecond},
	}

	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	app, err := newApplication(context.Background(), cfg, zap.NewNop(), prompt, h.out, h.errOut)
	require.NoError(t, err)
	h.app = app
	app.toasts.Subscribe(func(ev toast.Event) {
		if ev.Kind != toast.Added {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.added = append(h.added, ev.Toast)
	})

	return h
}

// toasts lists the messages shown with the given severity, expired or not.
func (h *harness) toasts(severity toast.Severity) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for _, t := range h.added {
		if t.Severity == severity {
			out = append(out, t.Message)
		}
	}
	return out
}
