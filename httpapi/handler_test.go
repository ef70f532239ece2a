package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/batchjobs"
	"github.com/curatorhq/batchjobs/httpapi"
)

func setupServer(t *testing.T, caller batchjobs.Caller) (*echo.Echo, *batchjobs.Orchestrator) {
	t.Helper()

	orch, err := batchjobs.New(batchjobs.NewMemoryStore(), caller,
		batchjobs.WithPacing(0, 0),
		batchjobs.WithRetryConfig(batchjobs.RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			ItemTimeout:    5 * time.Second,
		}),
		batchjobs.WithoutSweeper(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Shutdown(context.Background()) })

	e := echo.New()
	httpapi.New(orch).Register(e)
	return e, orch
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func echoCaller() batchjobs.Caller {
	return batchjobs.CallerFunc(func(ctx context.Context, item batchjobs.Item) (batchjobs.Result, error) {
		return batchjobs.Result(item.ID), nil
	})
}

func waitTerminalHTTP(t *testing.T, orch *batchjobs.Orchestrator, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := orch.Status(context.Background(), id)
		return err == nil && job.Status.Terminal()
	}, 10*time.Second, 5*time.Millisecond)
}

func TestSubmit_Accepted(t *testing.T) {
	e, orch := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodPost, "/jobs",
		`{"kind":"annotate","items":[{"id":"a"},{"id":"b"}],"metadata":{"source":"test"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	id, _ := data["job_id"].(string)
	require.NotEmpty(t, id)

	waitTerminalHTTP(t, orch, id)
	job, err := orch.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, "test", job.Metadata["source"])
}

func TestSubmit_MissingKind(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodPost, "/jobs", `{"items":[{"id":"a"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	apiErr := body["error"].(map[string]any)
	assert.Equal(t, "validation_error", apiErr["code"])
	require.NotEmpty(t, apiErr["details"])
}

func TestSubmit_EmptyItems(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodPost, "/jobs", `{"kind":"annotate","items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_InvalidKindCharacters(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodPost, "/jobs", `{"kind":"no spaces!","items":[{"id":"a"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	apiErr := body["error"].(map[string]any)
	assert.Equal(t, "invalid_input", apiErr["code"])
}

func TestSubmit_MalformedBody(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodPost, "/jobs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus_ReturnsSnapshot(t *testing.T) {
	e, orch := setupServer(t, echoCaller())

	id, err := orch.Submit(context.Background(), batchjobs.KindAnnotate,
		[]batchjobs.Item{{ID: "x"}})
	require.NoError(t, err)
	waitTerminalHTTP(t, orch, id)

	rec := doJSON(t, e, http.MethodGet, "/jobs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(1), data["total_items"])
}

func TestStatus_UnknownJob(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodGet, "/jobs/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	apiErr := body["error"].(map[string]any)
	assert.Equal(t, "not_found", apiErr["code"])
}

func TestCancel_Accepted(t *testing.T) {
	release := make(chan struct{})
	caller := batchjobs.CallerFunc(func(ctx context.Context, item batchjobs.Item) (batchjobs.Result, error) {
		select {
		case <-release:
			return batchjobs.Result("ok"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	e, orch := setupServer(t, caller)
	defer close(release)

	id, err := orch.Submit(context.Background(), batchjobs.KindAnnotate,
		[]batchjobs.Item{{ID: "x"}, {ID: "y"}})
	require.NoError(t, err)

	rec := doJSON(t, e, http.MethodDelete, "/jobs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["cancelled"])

	waitTerminalHTTP(t, orch, id)
	job, err := orch.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, batchjobs.StatusCancelled, job.Status)
}

func TestCancel_TerminalJobConflicts(t *testing.T) {
	e, orch := setupServer(t, echoCaller())

	id, err := orch.Submit(context.Background(), batchjobs.KindAnnotate,
		[]batchjobs.Item{{ID: "x"}})
	require.NoError(t, err)
	waitTerminalHTTP(t, orch, id)

	rec := doJSON(t, e, http.MethodDelete, "/jobs/"+id, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode(t, rec)
	apiErr := body["error"].(map[string]any)
	assert.Equal(t, "already_terminal", apiErr["code"])
}

func TestCancel_UnknownJob(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodDelete, "/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList_Filters(t *testing.T) {
	e, orch := setupServer(t, echoCaller())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		kind := batchjobs.KindAnnotate
		if i == 2 {
			kind = batchjobs.KindCollect
		}
		id, err := orch.Submit(ctx, kind, []batchjobs.Item{{ID: fmt.Sprintf("i%d", i)}})
		require.NoError(t, err)
		waitTerminalHTTP(t, orch, id)
	}

	rec := doJSON(t, e, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["data"], 3)

	rec = doJSON(t, e, http.MethodGet, "/jobs?kind=collect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Len(t, body["data"], 1)

	rec = doJSON(t, e, http.MethodGet, "/jobs?status=failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listBody struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	assert.Empty(t, listBody.Data)
}

func TestSummary(t *testing.T) {
	e, orch := setupServer(t, echoCaller())

	id, err := orch.Submit(context.Background(), batchjobs.KindAnnotate,
		[]batchjobs.Item{{ID: "x"}})
	require.NoError(t, err)
	waitTerminalHTTP(t, orch, id)

	rec := doJSON(t, e, http.MethodGet, "/jobs/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["completed"])
	assert.Equal(t, false, data["active"])
}

func TestUnknownRoute(t *testing.T) {
	e, _ := setupServer(t, echoCaller())

	rec := doJSON(t, e, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	require.NotNil(t, body["error"])
}
