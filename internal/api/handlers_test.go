package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/config"
	"github.com/lei/matrix-ci/internal/engine"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/internal/report"
	"github.com/lei/matrix-ci/internal/service"
	"github.com/lei/matrix-ci/internal/store"
	"github.com/lei/matrix-ci/pkg/logger"
)

const testAPIKey = "test-key-12345"

// succeedingInvoker reports success for every action
type succeedingInvoker struct{}

func (succeedingInvoker) Invoke(ctx context.Context, ref string, params map[string]string) (action.Outcome, error) {
	return action.OutcomeSucceeded, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	pipeline := &models.Pipeline{
		Name: "ci",
		On: models.Triggers{
			Push:        &models.PushTrigger{Branches: []string{"main"}},
			PullRequest: &models.PullRequestTrigger{},
		},
		Matrix: models.Matrix{
			Dimensions: []models.Dimension{
				{Name: "os", Values: []string{"ubuntu-latest", "windows-2019"}},
			},
		},
		Steps: []models.Step{
			{Name: "lint", Uses: "lint"},
		},
	}

	log := logger.New("error", "text")
	executor := engine.NewExecutor(succeedingInvoker{}, engine.NewGatePolicy(pipeline.Steps), log)
	coordinator := engine.NewCoordinator(executor, 2, log)
	svc := service.NewService(pipeline, coordinator, store.New(), report.NewLogSink(log), log)

	handlers := NewHandlers(svc)
	auth := NewAuthMiddleware([]config.APIKey{{Name: "test", Key: testAPIKey}})
	logging := NewLoggingMiddleware(log)
	return NewRouter(handlers, auth, logging)
}

func doRequest(router http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/health", "", false)
	if w.Code != http.StatusOK {
		t.Errorf("Health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestPostEvent_RequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/v1/events", `{"event":"push","branch":"main"}`, false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestPostEvent_InvalidKind(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/v1/events", `{"event":"schedule","branch":"main"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid event status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPostEvent_IgnoredBranch(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/v1/events", `{"event":"push","branch":"experiment"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("ignored event status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Ignored bool `json:"ignored"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Ignored {
		t.Errorf("expected ignored=true, got %+v", resp)
	}
}

func TestPostEvent_TriggersRunWithVerdictDetail(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/v1/events", `{"event":"pull_request","branch":"feature/x","commit":"abc"}`, true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("event status = %d, want %d, body %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var accepted struct {
		Run struct {
			RunID string `json:"run_id"`
		} `json:"run"`
	}
	if err := json.NewDecoder(w.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.Run.RunID == "" {
		t.Fatal("expected a run_id")
	}

	// Poll until the asynchronous run finishes
	deadline := time.Now().Add(2 * time.Second)
	var run struct {
		Run models.Run `json:"run"`
	}
	for {
		w := doRequest(router, "GET", "/v1/runs/"+accepted.Run.RunID, "", true)
		if w.Code != http.StatusOK {
			t.Fatalf("get run status = %d, want %d", w.Code, http.StatusOK)
		}
		if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.Run.Status == models.RunPassed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never passed, last status %s", run.Run.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if run.Run.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if got := len(run.Run.Verdict.Jobs); got != 2 {
		t.Errorf("verdict job count = %d, want 2", got)
	}
	for _, job := range run.Run.Verdict.Jobs {
		if job.Status != models.JobPassed {
			t.Errorf("job %v status = %s, want %s", job.Job, job.Status, models.JobPassed)
		}
		if len(job.Steps) != 1 || job.Steps[0].Status != models.StepSucceeded {
			t.Errorf("job %v steps = %+v, want one succeeded step", job.Job, job.Steps)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/v1/runs/does-not-exist", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetPipeline(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/v1/pipeline", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"ci"`) {
		t.Errorf("pipeline body missing name: %s", w.Body.String())
	}
}
