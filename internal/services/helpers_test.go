package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dekkonot/open-cloud-execute/internal/config"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

const testTaskPath = "universes/111/places/222/versions/3/luau-execution-sessions/sess-1/tasks/task-1"

// fakeCloud imitates the Luau execution endpoints of Open Cloud.
type fakeCloud struct {
	t *testing.T

	mu       sync.Mutex
	hits     int
	uploads  []map[string]string
	apiKeys  []string
	states   []models.TaskState
	queries  int
	output   *models.TaskOutput
	taskErr  *models.TaskError
	logs     models.LogsResponse
	logViews []string
}

func newFakeCloud(t *testing.T, states ...models.TaskState) *fakeCloud {
	return &fakeCloud{t: t, states: states}
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits++
	f.apiKeys = append(f.apiKeys, r.Header.Get("x-api-key"))
	path := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/luau-execution-session-tasks"):
		var upload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"INVALID_ARGUMENT","message":"bad body"}`))
			return
		}
		f.uploads = append(f.uploads, upload)
		_ = json.NewEncoder(w).Encode(models.ExecutionTask{
			Path:   testTaskPath,
			User:   "42",
			State:  models.TaskStateQueued,
			Script: upload["script"],
		})

	case r.Method == http.MethodGet && path == testTaskPath:
		state := f.states[len(f.states)-1]
		if f.queries < len(f.states) {
			state = f.states[f.queries]
		}
		f.queries++

		task := models.FullExecutionTask{
			ExecutionTask: models.ExecutionTask{Path: testTaskPath, User: "42", State: state, Script: "return 42"},
			CreateTime:    "2024-05-01T10:00:00Z",
			UpdateTime:    "2024-05-01T10:00:01Z",
		}
		if state == models.TaskStateComplete {
			task.Output = f.output
		}
		if state == models.TaskStateFailed {
			task.Error = f.taskErr
		}
		_ = json.NewEncoder(w).Encode(task)

	case r.Method == http.MethodGet && path == testTaskPath+"/logs":
		f.logViews = append(f.logViews, r.URL.Query().Get("view"))
		_ = json.NewEncoder(w).Encode(f.logs)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"no such resource"}`))
	}
}

func (f *fakeCloud) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// newTestConfig points a fast-polling configuration at server.
func newTestConfig(server *httptest.Server) *config.Config {
	cfg := config.NewConfig()
	cfg.BaseURL = server.URL
	cfg.RequestTimeout = 2 * time.Second
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond
	cfg.PollTimeout = 2 * time.Second
	return cfg
}

func startServer(t *testing.T, fake *fakeCloud) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return server
}

func startFakeCloud(t *testing.T, fake *fakeCloud) (*ExecutionService, *httptest.Server) {
	t.Helper()
	server := startServer(t, fake)
	return NewExecutionService(newTestConfig(server)), server
}
