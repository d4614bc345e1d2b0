// Package cms reads courses, modules, tests and taxonomy terms from the
// Contentstack delivery API and maps them to canonical shapes.
package cms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"techacademy_backend/internal/config"
	"techacademy_backend/pkg/monitoring"
	"techacademy_backend/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	ContentTypeCourse = "course"
	ContentTypeModule = "course_module"
	ContentTypeTest   = "course_test"

	// delivery API 单页最多返回 100 条
	pageSize = 100
)

var (
	ErrNotFound      = errors.New("cms entry not found")
	ErrNotConfigured = errors.New("cms credentials not configured")
)

// APIError is the error body returned by the delivery API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error_message"`
	Code       int    `json:"error_code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms: status %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Query narrows an entries request.
type Query struct {
	Include []string
	Search  string
}

type Client struct {
	http        *resty.Client
	environment string
	configured  bool
}

func NewClient(cfg config.CMSConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("api_key", cfg.APIKey).
		SetHeader("access_token", cfg.DeliveryToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        h,
		environment: cfg.Environment,
		configured:  cfg.APIKey != "" && cfg.DeliveryToken != "",
	}
}

func (c *Client) Configured() bool {
	return c.configured
}

// GetEntry fetches one entry, expanding the given reference fields.
func (c *Client) GetEntry(ctx context.Context, contentType, uid string, include ...string) (Entry, error) {
	var body struct {
		Entry Entry `json:"entry"`
	}
	req := c.request(ctx, include).
		SetPathParams(map[string]string{"contentType": contentType, "uid": uid})

	if err := c.do(ctx, "get_entry", req, http.MethodGet, "/v3/content_types/{contentType}/entries/{uid}", &body); err != nil {
		return nil, err
	}
	if body.Entry == nil {
		return nil, ErrNotFound
	}
	return body.Entry, nil
}

// FindEntries pages through every entry of a content type.
func (c *Client) FindEntries(ctx context.Context, contentType string, q Query) ([]Entry, error) {
	entries := []Entry{}
	for skip := 0; ; skip += pageSize {
		var body struct {
			Entries []Entry `json:"entries"`
			Count   int     `json:"count"`
		}
		req := c.request(ctx, q.Include).
			SetPathParam("contentType", contentType).
			SetQueryParams(map[string]string{
				"limit":         strconv.Itoa(pageSize),
				"skip":          strconv.Itoa(skip),
				"include_count": "true",
			})
		if q.Search != "" {
			req.SetQueryParam("typeahead", q.Search)
		}

		if err := c.do(ctx, "find_entries", req, http.MethodGet, "/v3/content_types/{contentType}/entries", &body); err != nil {
			return nil, err
		}
		entries = append(entries, body.Entries...)
		if len(body.Entries) < pageSize || (body.Count > 0 && len(entries) >= body.Count) {
			return entries, nil
		}
	}
}

// TaxonomyTerms returns the raw terms of a taxonomy. The delivery API answers
// with either "terms" or "items".
func (c *Client) TaxonomyTerms(ctx context.Context, taxonomyUID string) ([]map[string]any, error) {
	var body struct {
		Terms []map[string]any `json:"terms"`
		Items []map[string]any `json:"items"`
	}
	req := c.request(ctx, nil).SetPathParam("uid", taxonomyUID)
	if err := c.do(ctx, "taxonomy_terms", req, http.MethodGet, "/v3/taxonomies/{uid}/terms", &body); err != nil {
		return nil, err
	}
	if body.Terms != nil {
		return body.Terms, nil
	}
	if body.Items != nil {
		return body.Items, nil
	}
	return []map[string]any{}, nil
}

func (c *Client) request(ctx context.Context, include []string) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if c.environment != "" {
		req.SetQueryParam("environment", c.environment)
	}
	if len(include) > 0 {
		req.SetQueryParamsFromValues(url.Values{"include[]": include})
	}
	return req
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string, out any) error {
	if !c.configured {
		return ErrNotConfigured
	}

	ctx, span := tracing.Tracer.Start(ctx, "cms."+op)
	defer span.End()
	req.SetContext(ctx)

	start := time.Now()
	status := "error"
	defer func() {
		monitoring.CMSRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}()

	apiErr := &APIError{}
	resp, err := req.SetResult(out).SetError(apiErr).Execute(method, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cms %s: %w", op, err)
	}
	status = strconv.Itoa(resp.StatusCode())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		span.SetStatus(codes.Error, apiErr.Message)
		// 条目不存在时 delivery API 返回 422 (error_code 141)
		if resp.StatusCode() == http.StatusNotFound || apiErr.Code == 141 {
			return ErrNotFound
		}
		return apiErr
	}
	return nil
}
