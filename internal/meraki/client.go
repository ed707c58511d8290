// Package meraki provides a minimal Meraki Dashboard API client covering the
// GET surface the archiver needs: raw settings endpoints, entity list
// endpoints and the OpenAPI specification export.
package meraki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps a single response body (50MB).
	MaxResponseSize = 50 * 1024 * 1024

	// UserAgent identifies this tool to the dashboard.
	UserAgent = "meraki-settings-to-git/1.0"

	authHeader = "X-Cisco-Meraki-API-Key"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the interface the planner and executor call the dashboard
// through.
type Client interface {
	// Get performs a GET against the API path and returns the raw body.
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)

	// GetPaginated follows Link rel=next headers, merging the top-level
	// JSON arrays of every page into one.
	GetPaginated(ctx context.Context, path string, query url.Values) ([]byte, error)

	// GetOrganizations lists the organizations the API key can access.
	GetOrganizations(ctx context.Context) ([]entity.Organization, error)

	// GetOrganization resolves one organization by id.
	GetOrganization(ctx context.Context, orgID string) (*entity.Organization, error)

	// GetOperations extracts the GET operations from the organization's
	// current OpenAPI specification.
	GetOperations(ctx context.Context, orgID string) ([]Operation, error)
}

// Operation is one GET operation from the dashboard OpenAPI specification.
type Operation struct {
	OperationID string
	Tags        []string
	Description string
	Parameters  []string
	Path        string
}

// HTTPError is returned for non-2xx responses so callers can branch on the
// status code.
type HTTPError struct {
	StatusCode int
	URL        string
	Status     string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Status)
}

type defaultClient struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
}

// Options configure the default client.
type Options struct {
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration

	// MaxRetries bounds retry attempts per request.
	MaxRetries int
}

// NewClient creates the default dashboard client.
func NewClient(baseURL, apiKey string, opts Options) Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &defaultClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: opts.MaxRetries,
	}
}

// Get performs a GET with bounded exponential-backoff retries. Rate-limit
// responses (429) honor the Retry-After header; other 4xx responses are
// permanent failures.
func (c *defaultClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, _, err := c.getPage(ctx, c.buildURL(path, query))
	return body, err
}

// GetPaginated follows the Link header's rel=next URL until exhausted and
// concatenates the element arrays of all pages.
func (c *defaultClient) GetPaginated(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("perPage") == "" {
		query.Set("perPage", "1000")
	}

	var merged []json.RawMessage
	next := c.buildURL(path, query)
	for next != "" {
		body, nextURL, err := c.getPage(ctx, next)
		if err != nil {
			return nil, err
		}
		var page []json.RawMessage
		if err := json.Unmarshal(body, &page); err != nil {
			// Non-array payloads cannot be merged; single page only.
			if len(merged) == 0 {
				return body, nil
			}
			return nil, fmt.Errorf("paginated endpoint %s returned a non-array page: %w", path, err)
		}
		merged = append(merged, page...)
		next = nextURL
	}
	return json.Marshal(merged)
}

func (c *defaultClient) GetOrganizations(ctx context.Context) ([]entity.Organization, error) {
	body, err := c.GetPaginated(ctx, "/organizations", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	var orgs []entity.Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", err)
	}
	return orgs, nil
}

func (c *defaultClient) GetOrganization(ctx context.Context, orgID string) (*entity.Organization, error) {
	body, err := c.Get(ctx, "/organizations/"+orgID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %s: %w", orgID, err)
	}
	var org entity.Organization
	if err := json.Unmarshal(body, &org); err != nil {
		return nil, fmt.Errorf("failed to decode organization %s: %w", orgID, err)
	}
	return &org, nil
}

func (c *defaultClient) GetOperations(ctx context.Context, orgID string) ([]Operation, error) {
	body, err := c.Get(ctx, "/organizations/"+orgID+"/openapiSpec", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI spec: %w", err)
	}

	var spec struct {
		Paths map[string]struct {
			Get *struct {
				OperationID string   `json:"operationId"`
				Tags        []string `json:"tags"`
				Description string   `json:"description"`
				Parameters  []struct {
					Name string `json:"name"`
				} `json:"parameters"`
			} `json:"get"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(body, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode OpenAPI spec: %w", err)
	}

	ops := make([]Operation, 0, len(spec.Paths))
	for path, methods := range spec.Paths {
		if methods.Get == nil {
			continue
		}
		op := Operation{
			OperationID: methods.Get.OperationID,
			Tags:        methods.Get.Tags,
			Description: methods.Get.Description,
			Path:        path,
		}
		for _, p := range methods.Get.Parameters {
			op.Parameters = append(op.Parameters, p.Name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (c *defaultClient) buildURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getPage fetches one URL and returns the body plus the rel=next URL, if
// any, retrying transient failures.
func (c *defaultClient) getPage(ctx context.Context, rawURL string) ([]byte, string, error) {
	type page struct {
		body []byte
		next string
	}

	result, err := backoff.Retry(ctx, func() (page, error) {
		body, next, err := c.doGet(ctx, rawURL)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				if httpErr.StatusCode == http.StatusTooManyRequests && httpErr.RetryAfter > 0 {
					return page{}, backoff.RetryAfter(int(httpErr.RetryAfter.Seconds()))
				}
				// Client errors other than rate limiting will not
				// heal on retry.
				if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
					httpErr.StatusCode != http.StatusTooManyRequests {
					return page{}, backoff.Permanent(err)
				}
			}
			return page{}, err
		}
		return page{body: body, next: next}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	if err != nil {
		return nil, "", err
	}
	return result.body, result.next, nil
}

func (c *defaultClient) doGet(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(authHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Status: resp.Status}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				httpErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, "", httpErr
	}

	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, "", fmt.Errorf("response exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nextLink(resp.Header.Get("Link")), nil
}

// nextLink extracts the rel=next URL from an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, param := range segments[1:] {
			param = strings.TrimSpace(param)
			if param == `rel=next` || param == `rel="next"` {
				return target
			}
		}
	}
	return ""
}
