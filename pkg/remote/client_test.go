package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       map[string][]string
	ContentType string
	Auth        string
	Body        []byte
}

type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.Query(),
			ContentType: r.Header.Get("Content-Type"),
			Auth:        r.Header.Get("Authorization"),
			Body:        body,
		})
		ts.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) Requests() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

func newTestClient(t *testing.T, ts *testServer, batchSize int) (*Client, *fakeClock) {
	t.Helper()
	c, err := NewClient(Options{
		Organization: "contoso",
		Project:      "web",
		Token:        "pat",
		BaseURL:      ts.URL,
		BatchSize:    batchSize,
		HTTPClient:   ts.Client(),
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	c.sleep = clock.Sleep
	c.limiter.now = clock.Now
	c.limiter.sleep = clock.Sleep
	return c, clock
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{Organization: "contoso", Project: "web"})
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = NewClient(Options{Token: "pat", Organization: "contoso"})
	assert.ErrorIs(t, err, ErrMissingProject)

	c, err := NewClient(Options{Token: "pat", Organization: "contoso", Project: "web", BatchSize: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, c.BatchSize())
}

func TestGetWorkItem(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":  42,
			"rev": 3,
			"url": "https://example/_apis/wit/workItems/42",
			"fields": map[string]any{
				"System.Title":        "Hello",
				"System.State":        "Active",
				"System.WorkItemType": "Product Backlog Item",
				"System.ChangedDate":  "2024-04-30T10:00:00.123Z",
			},
			"_links": map[string]any{"html": map[string]any{"href": "https://example/web/_workitems/edit/42"}},
		})
	})
	c, _ := newTestClient(t, ts, 0)

	item, err := c.GetWorkItem(context.Background(), 42, ExpandRelations)
	require.NoError(t, err)

	assert.Equal(t, 42, item.ID)
	assert.Equal(t, 3, item.Rev)
	assert.Equal(t, "Hello", item.Title())
	assert.Equal(t, "Active", item.State())
	assert.Equal(t, "Product Backlog Item", item.Type())
	assert.Equal(t, "https://example/web/_workitems/edit/42", item.WebURL())
	assert.Equal(t, 2024, item.ChangedDate().Year())

	reqs := ts.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/contoso/web/_apis/wit/workitems/42", reqs[0].Path)
	assert.Equal(t, []string{"Relations"}, reqs[0].Query["$expand"])
	assert.Equal(t, []string{DefaultAPIVersion}, reqs[0].Query["api-version"])
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(":pat")), reqs[0].Auth)
	assert.Equal(t, 1, c.Limiter().Count())
}

func TestRetriesOnceAfterTooManyRequests(t *testing.T) {
	calls := 0
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "7")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "rev": 1})
	})
	c, clock := newTestClient(t, ts, 0)

	item, err := c.GetWorkItem(context.Background(), 1, ExpandNone)
	require.NoError(t, err)
	assert.Equal(t, 1, item.ID)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{7 * time.Second}, clock.sleeps)
	assert.Equal(t, 1, c.Limiter().Count(), "limiter is reset before the replay")

	reqs := ts.Requests()
	assert.Equal(t, reqs[0].Path, reqs[1].Path)
	assert.Equal(t, reqs[0].Body, reqs[1].Body)
}

func TestRetryReplaysPatchBody(t *testing.T) {
	calls := 0
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 5, "rev": 2})
	})
	c, clock := newTestClient(t, ts, 0)

	_, err := c.UpdateWorkItem(context.Background(), 5, []PatchOperation{{Op: OpAdd, Path: "/fields/System.Title", Value: "x"}})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{DefaultRetryAfter}, clock.sleeps, "missing Retry-After falls back to the default")
	reqs := ts.Requests()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, string(reqs[0].Body), string(reqs[1].Body))
	assert.Equal(t, contentTypePatch, reqs[1].ContentType)
}

func TestRetryIsAttemptedOnlyOnce(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "still throttled"})
	})
	c, _ := newTestClient(t, ts, 0)

	_, err := c.GetWorkItem(context.Background(), 1, ExpandNone)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "still throttled")
	assert.Len(t, ts.Requests(), 2)
}

func TestServiceUnavailableWithoutRetryAfterIsNotRetried(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, clock := newTestClient(t, ts, 0)

	_, err := c.GetWorkItem(context.Background(), 1, ExpandNone)
	require.Error(t, err)
	assert.Len(t, ts.Requests(), 1)
	assert.Empty(t, clock.sleeps)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		notFound bool
		conflict bool
	}{
		{http.StatusNotFound, true, false},
		{http.StatusPreconditionFailed, false, true},
		{http.StatusConflict, false, true},
		{http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"message": "nope"})
			})
			c, _ := newTestClient(t, ts, 0)

			_, err := c.UpdateWorkItem(context.Background(), 9, nil)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.conflict, IsConflict(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestGetWorkItemsChunksByBatchSize(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		value := make([]any, 0, len(req.IDs))
		for _, id := range req.IDs {
			if id == 3 {
				value = append(value, nil)
				continue
			}
			value = append(value, map[string]any{"id": id, "rev": 1})
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(value), "value": value})
	})
	c, _ := newTestClient(t, ts, 2)

	items, err := c.GetWorkItems(context.Background(), []int{1, 2, 3, 4, 5}, ExpandRelations)
	require.NoError(t, err)

	var got []int
	for _, item := range items {
		got = append(got, item.ID)
	}
	assert.Equal(t, []int{1, 2, 4, 5}, got)

	reqs := ts.Requests()
	require.Len(t, reqs, 3)
	for _, req := range reqs {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/contoso/web/_apis/wit/workitemsbatch", req.Path)
	}
	var first map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &first))
	assert.Equal(t, "omit", first["errorPolicy"])
	assert.Equal(t, "Relations", first["$expand"])
}

func TestCreateWorkItemAndParentLink(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 77, "rev": 1})
	})
	c, _ := newTestClient(t, ts, 0)
	ctx := context.Background()

	item, err := c.CreateWorkItem(ctx, "Product Backlog Item", []PatchOperation{{Op: OpAdd, Path: "/fields/System.Title", Value: "New"}})
	require.NoError(t, err)
	assert.Equal(t, 77, item.ID)

	require.NoError(t, c.AddParentLink(ctx, 77, 10))

	reqs := ts.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/contoso/web/_apis/wit/workitems/$Product Backlog Item", reqs[0].Path)
	assert.Equal(t, contentTypePatch, reqs[0].ContentType)

	assert.Equal(t, http.MethodPatch, reqs[1].Method)
	assert.Equal(t, "/contoso/web/_apis/wit/workitems/77", reqs[1].Path)
	var ops []map[string]any
	require.NoError(t, json.Unmarshal(reqs[1].Body, &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, "/relations/-", ops[0]["path"])
	value := ops[0]["value"].(map[string]any)
	assert.Equal(t, RelParent, value["rel"])
	assert.Equal(t, ts.URL+"/contoso/_apis/wit/workItems/10", value["url"])
}

func TestGetCommentsPaginatesUntilShortPage(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("continuationToken")
		count := commentPageSize
		next := "page2"
		if token == "page2" {
			count = 3
			next = "page3"
		}
		comments := make([]map[string]any, count)
		for i := range comments {
			comments[i] = map[string]any{"id": i + 1, "text": fmt.Sprintf("comment %d", i)}
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": comments, "continuationToken": next})
	})
	c, _ := newTestClient(t, ts, 0)

	comments, err := c.GetComments(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, comments, commentPageSize+3)

	reqs := ts.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/contoso/web/_apis/wit/workItems/8/comments", reqs[0].Path)
	assert.Equal(t, []string{commentAPIVersion}, reqs[0].Query["api-version"])
	assert.Equal(t, []string{"page2"}, reqs[1].Query["continuationToken"])
}

func TestGetPullRequestsSkipsUnresolvableLinks(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contoso/web/_apis/git/repositories/repo-a/pullrequests/17" {
			writeJSON(w, http.StatusOK, map[string]any{
				"pullRequestId": 17,
				"title":         "Add login",
				"status":        "active",
				"repository":    map[string]any{"id": "repo-a", "name": "web", "webUrl": "https://example/_git/web"},
			})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "missing"})
	})
	c, _ := newTestClient(t, ts, 0)

	prs, err := c.GetPullRequests(context.Background(), &WorkItem{ID: 1, Relations: []Relation{
		{Rel: RelArtifact, URL: "vstfs:///Git/PullRequestId/proj%2Frepo-a%2F17"},
		{Rel: RelArtifact, URL: "vstfs:///Git/PullRequestId/proj%2Frepo-a%2F18"},
		{Rel: RelArtifact, URL: "vstfs:///Git/Commit/abc"},
		{Rel: RelChild, URL: "https://example/_apis/wit/workItems/2"},
	}})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "Add login", prs[0].Title)
	assert.Equal(t, "https://example/_git/web/pullrequest/17", prs[0].WebURL())
	assert.Len(t, ts.Requests(), 2)
}
