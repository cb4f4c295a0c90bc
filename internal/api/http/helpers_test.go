package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/audit"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticCatalog serves a fixed definition list with role filtering.
type staticCatalog struct {
	defs []catalog.Definition
}

func (s staticCatalog) Definitions(_ context.Context, user catalog.User) ([]catalog.Definition, error) {
	var out []catalog.Definition
	for _, d := range s.defs {
		if user.Role.Allows(d.MinimumRole) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s staticCatalog) Definition(ctx context.Context, user catalog.User, defID string) (catalog.Definition, error) {
	defs, _ := s.Definitions(ctx, user)
	for _, d := range defs {
		if d.ID == defID {
			return d, nil
		}
	}
	return catalog.Definition{}, catalog.ErrNotFound
}

type memoryAudit struct {
	mu     sync.Mutex
	filter audit.Filter
	events []events.Event
}

func (m *memoryAudit) Query(_ context.Context, f audit.Filter) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	return m.events, nil
}

type testAPI struct {
	router   *gin.Engine
	service  *lifecycle.Service
	editor   *launcher.TextEditor
	audit    *memoryAudit
	shutdown chan struct{}
}

func notesDefs(dir string) []catalog.Definition {
	return []catalog.Definition{
		{ID: "notes", Name: "Notes", Kind: catalog.KindTextEditor, Target: dir + "/notes.txt"},
		{ID: "admin-notes", Name: "Admin Notes", Kind: catalog.KindTextEditor, MinimumRole: catalog.RoleAdmin},
		{ID: "mail", Name: "Mail", Kind: catalog.KindAndroid, Target: "com.example.mail"},
	}
}

// newTestAPI wires the handlers over a real lifecycle service whose only
// launcher is the in-process text editor.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	windows := window.NewManager(nil, nil)
	editor := launcher.NewTextEditor(windows, nil)
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	svc := lifecycle.New(lifecycle.Options{
		Launchers:       launcher.NewSet(editor),
		Windows:         windows,
		GracefulTimeout: 100 * time.Millisecond,
		FinalTimeout:    100 * time.Millisecond,
		ConfirmPoll:     10 * time.Millisecond,
		Metrics:         metrics,
	})

	api := &testAPI{
		service:  svc,
		editor:   editor,
		audit:    &memoryAudit{},
		shutdown: make(chan struct{}, 1),
	}
	h := NewHandlers(Options{
		Lifecycle: svc,
		Catalog:   staticCatalog{defs: notesDefs(t.TempDir())},
		Audit:     api.audit,
		Editor:    editor,
		Metrics:   metrics,
		Gatherer:  reg,
		Timeouts: Timeouts{
			Close:      100 * time.Millisecond,
			UserSwitch: 100 * time.Millisecond,
			Graceful:   100 * time.Millisecond,
			Final:      100 * time.Millisecond,
		},
		OnShutdown: func() { api.shutdown <- struct{}{} },
	})

	api.router = gin.New()
	h.Register(api.router)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (a *testAPI) launch(t *testing.T, defID, user string) string {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/instances", LaunchRequest{DefinitionID: defID, User: user})
	require.Equal(t, http.StatusCreated, code, body)
	return body["instance_id"].(string)
}
