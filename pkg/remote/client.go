// Package remote is the only part of grove-backlog that talks to the work
// item tracking service. It authenticates, throttles and retries requests and
// translates between local work items and remote records.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL    = "https://dev.azure.com"
	DefaultAPIVersion = "7.1"
	commentAPIVersion = "7.1-preview.4"

	// MaxBatchSize is the service's ceiling for ids per batched read.
	MaxBatchSize = 200

	// DefaultRetryAfter is used when a 429 carries no Retry-After header.
	DefaultRetryAfter = 60 * time.Second

	commentPageSize = 200
	contentTypeJSON  = "application/json"
	contentTypePatch = "application/json-patch+json"
)

// Options configures a Client.
type Options struct {
	Organization string
	Project      string
	Token        string
	BaseURL      string
	APIVersion   string
	BatchSize    int
	RateLimit    int
	RateWindow   time.Duration
	HTTPClient   *http.Client
	Logger       *logrus.Entry
}

// Client is an authenticated, rate-limited client for one organization/project.
type Client struct {
	organization string
	project      string
	baseURL      string
	apiVersion   string
	batchSize    int
	auth         string
	http         *http.Client
	limiter      *RateLimiter
	logger       *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient validates opts and returns a client. A missing token is a
// construction-time failure.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(opts.Organization) == "" || strings.TrimSpace(opts.Project) == "" {
		return nil, ErrMissingProject
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}

	return &Client{
		organization: opts.Organization,
		project:      opts.Project,
		baseURL:      baseURL,
		apiVersion:   apiVersion,
		batchSize:    batchSize,
		auth:         "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+opts.Token)),
		http:         httpClient,
		limiter:      NewRateLimiter(opts.RateLimit, opts.RateWindow),
		logger: logger.WithFields(logrus.Fields{
			"component":    "remote",
			"organization": opts.Organization,
			"project":      opts.Project,
		}),
		sleep: sleepContext,
	}, nil
}

// Organization returns the organization the client is bound to.
func (c *Client) Organization() string { return c.organization }

// Project returns the project the client is bound to.
func (c *Client) Project() string { return c.project }

// BatchSize returns the number of ids sent per batched read.
func (c *Client) BatchSize() int { return c.batchSize }

// Limiter exposes the client's rate limiter.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// WorkItemURL returns the API URL identifying work item id, as used in relations.
func (c *Client) WorkItemURL(id int) string {
	return fmt.Sprintf("%s/%s/_apis/wit/workItems/%d", c.baseURL, url.PathEscape(c.organization), id)
}

func (c *Client) projectURL(parts ...string) string {
	return c.baseURL + "/" + url.PathEscape(c.organization) + "/" + url.PathEscape(c.project) + "/_apis/" + strings.Join(parts, "/")
}

// GetWorkItem fetches a single work item.
func (c *Client) GetWorkItem(ctx context.Context, id int, expand Expand) (*WorkItem, error) {
	q := url.Values{}
	if expand != "" && expand != ExpandNone {
		q.Set("$expand", string(expand))
	}
	var item WorkItem
	if err := c.do(ctx, http.MethodGet, c.projectURL("wit", "workitems", strconv.Itoa(id)), q, "", nil, &item); err != nil {
		return nil, fmt.Errorf("get work item %d: %w", id, err)
	}
	return &item, nil
}

type batchRequest struct {
	IDs         []int  `json:"ids"`
	Expand      Expand `json:"$expand,omitempty"`
	ErrorPolicy string `json:"errorPolicy"`
}

type batchResponse struct {
	Count int         `json:"count"`
	Value []*WorkItem `json:"value"`
}

// GetWorkItems fetches ids in chunks of BatchSize. Ids the service does not
// return (deleted or inaccessible) are omitted from the result.
func (c *Client) GetWorkItems(ctx context.Context, ids []int, expand Expand) ([]*WorkItem, error) {
	var items []*WorkItem
	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		req := batchRequest{IDs: ids[start:end], ErrorPolicy: "omit"}
		if expand != ExpandNone {
			req.Expand = expand
		}
		var resp batchResponse
		if err := c.do(ctx, http.MethodPost, c.projectURL("wit", "workitemsbatch"), nil, contentTypeJSON, req, &resp); err != nil {
			return nil, fmt.Errorf("batch get %d work items: %w", end-start, err)
		}
		for _, item := range resp.Value {
			if item != nil {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

// CreateWorkItem creates a work item of the given remote type.
func (c *Client) CreateWorkItem(ctx context.Context, workItemType string, ops []PatchOperation) (*WorkItem, error) {
	var item WorkItem
	endpoint := c.projectURL("wit", "workitems", "$"+url.PathEscape(workItemType))
	if err := c.do(ctx, http.MethodPost, endpoint, nil, contentTypePatch, ops, &item); err != nil {
		return nil, fmt.Errorf("create %s: %w", workItemType, err)
	}
	c.logger.WithFields(logrus.Fields{"id": item.ID, "fields": SortedFieldNames(ops)}).Debug("created work item")
	return &item, nil
}

// UpdateWorkItem applies ops to work item id. Callers that include a
// "test /rev" operation get a conflict error when the revision moved.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, ops []PatchOperation) (*WorkItem, error) {
	var item WorkItem
	if err := c.do(ctx, http.MethodPatch, c.projectURL("wit", "workitems", strconv.Itoa(id)), nil, contentTypePatch, ops, &item); err != nil {
		return nil, fmt.Errorf("update work item %d: %w", id, err)
	}
	return &item, nil
}

// AddParentLink attaches a child-to-parent relation from childID to parentID.
func (c *Client) AddParentLink(ctx context.Context, childID, parentID int) error {
	if _, err := c.UpdateWorkItem(ctx, childID, ParentLinkPatch(c.WorkItemURL(parentID))); err != nil {
		return fmt.Errorf("link %d to parent %d: %w", childID, parentID, err)
	}
	return nil
}

type commentPage struct {
	Comments          []Comment `json:"comments"`
	ContinuationToken string    `json:"continuationToken"`
}

// GetComments returns every comment on a work item, paging until the
// service returns a short page.
func (c *Client) GetComments(ctx context.Context, id int) ([]Comment, error) {
	var all []Comment
	token := ""
	for {
		q := url.Values{}
		q.Set("$top", strconv.Itoa(commentPageSize))
		q.Set("api-version", commentAPIVersion)
		if token != "" {
			q.Set("continuationToken", token)
		}
		var page commentPage
		if err := c.do(ctx, http.MethodGet, c.projectURL("wit", "workItems", strconv.Itoa(id), "comments"), q, "", nil, &page); err != nil {
			return nil, fmt.Errorf("get comments for %d: %w", id, err)
		}
		all = append(all, page.Comments...)
		if len(page.Comments) < commentPageSize || page.ContinuationToken == "" {
			return all, nil
		}
		token = page.ContinuationToken
	}
}

// GetPullRequest fetches one pull request from a repository.
func (c *Client) GetPullRequest(ctx context.Context, repositoryID string, pullRequestID int) (*PullRequest, error) {
	var pr PullRequest
	endpoint := c.projectURL("git", "repositories", url.PathEscape(repositoryID), "pullrequests", strconv.Itoa(pullRequestID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "", nil, &pr); err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", pullRequestID, err)
	}
	return &pr, nil
}

// GetPullRequests resolves the pull requests linked from item's relations.
// Relations that cannot be resolved are skipped.
func (c *Client) GetPullRequests(ctx context.Context, item *WorkItem) ([]PullRequest, error) {
	var prs []PullRequest
	for _, rel := range item.Relations {
		if rel.Rel != RelArtifact {
			continue
		}
		repoID, prID, ok := pullRequestRef(rel.URL)
		if !ok {
			continue
		}
		pr, err := c.GetPullRequest(ctx, repoID, prID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithError(err).WithField("pullRequest", prID).Debug("skipping unresolvable pull request link")
			continue
		}
		prs = append(prs, *pr)
	}
	return prs, nil
}

type errorBody struct {
	Message string `json:"message"`
}

// do sends one request through the rate limiter. A 429 (or a 503 carrying
// Retry-After) is replayed exactly once after the advertised delay.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, contentType string, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("api-version") == "" {
		query.Set("api-version", c.apiVersion)
	}
	fullURL := endpoint + "?" + query.Encode()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, fullURL, contentType, payload)
	if err != nil {
		return err
	}
	if delay, retry := retryDelay(resp); retry {
		resp.Body.Close()
		c.logger.WithFields(logrus.Fields{"method": method, "url": endpoint, "delay": delay}).Warn("throttled by remote service, retrying once")
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		c.limiter.Reset()
		if resp, err = c.send(ctx, method, fullURL, contentType, payload); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Code:       codeForStatus(resp.StatusCode),
			Method:     method,
			URL:        endpoint,
		}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, fullURL, contentType string, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.WithFields(logrus.Fields{"method": method, "url": fullURL}).Trace("remote request")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, fullURL, err)
	}
	return resp, nil
}

// retryDelay reports whether resp should be replayed and after how long.
func retryDelay(resp *http.Response) (time.Duration, bool) {
	header := resp.Header.Get("Retry-After")
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
	case http.StatusServiceUnavailable:
		if header == "" {
			return 0, false
		}
	default:
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return DefaultRetryAfter, true
}
