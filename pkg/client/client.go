package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
)

// RequestIDHeader carries a unique id for every outgoing call
const RequestIDHeader = "X-Request-ID"

// Client is the API client for the github data backend
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    RateLimiter
	log        logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSessionToken sends token as a bearer credential on every call
func WithSessionToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying transport client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter paces calls with limiter
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithLogger sets the logger used for request tracing
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(0)
	}
	if c.token != "" {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.httpClient
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.httpClient = &hc
	}
	c.log = c.log.WithComponent("client")
	return c
}

// ListCollections retrieves the queryable collections
func (c *Client) ListCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	var collections []domain.CollectionMetadata
	if err := c.do(ctx, http.MethodGet, "/collections", nil, nil, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// FetchCollectionData retrieves one filtered page of a collection
func (c *Client) FetchCollectionData(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	if q.Filters == nil {
		q.Filters = map[string]string{}
	}
	var result domain.DataGridResult
	if err := c.do(ctx, http.MethodPost, "/collection-data", nil, q, &result); err != nil {
		return nil, err
	}
	if result.Records == nil {
		result.Records = []*domain.Record{}
	}
	return &result, nil
}

// Search runs a keyword search across every collection
func (c *Client) Search(ctx context.Context, keyword string) (domain.SearchResult, error) {
	params := url.Values{}
	params.Set("keyword", keyword)

	var result domain.SearchResult
	if err := c.do(ctx, http.MethodGet, "/search", params, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Relationships retrieves the records related to one item. The payload shape
// depends on the collection.
func (c *Client) Relationships(ctx context.Context, collection, id string) (domain.Value, error) {
	path := fmt.Sprintf("/relationships/%s/%s", url.PathEscape(collection), url.PathEscape(id))

	var related domain.Value
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &related); err != nil {
		return domain.Null(), err
	}
	return related, nil
}

// Export downloads a collection as a file in req.Format
func (c *Client) Export(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	if req.Format == "" {
		req.Format = domain.ExportCSV
	}
	return c.raw(ctx, http.MethodPost, "/export-data", nil, req)
}

// IssueDetails retrieves the drill-down view of one issue
func (c *Client) IssueDetails(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error) {
	if !ref.Valid() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("incomplete issue reference %s", ref))
	}
	var details domain.IssueDetails
	if err := c.do(ctx, http.MethodGet, "/issue-details", ref.Params(), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// IntegrationStatus reports whether a GitHub account is connected
func (c *Client) IntegrationStatus(ctx context.Context) (*domain.IntegrationStatus, error) {
	var status domain.IntegrationStatus
	if err := c.do(ctx, http.MethodGet, "/integration/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RemoveIntegration disconnects the GitHub account
func (c *Client) RemoveIntegration(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/integration/remove", nil, nil, nil)
}

// AuthURL returns the page that starts the GitHub OAuth flow
func (c *Client) AuthURL() string {
	return c.baseURL + "/auth/github"
}

// Organizations retrieves the organizations with their nested repositories
func (c *Client) Organizations(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations", nil, nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// PublicRepositories retrieves the repositories of the connected account
func (c *Client) PublicRepositories(ctx context.Context) ([]domain.Repository, error) {
	var repos []domain.Repository
	if err := c.do(ctx, http.MethodGet, "/integration/public-repos", nil, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// SetRepositoryInclusion marks a repository as tracked or not
func (c *Client) SetRepositoryInclusion(ctx context.Context, id string, included bool) (*domain.Repository, error) {
	body := map[string]bool{"included": included}

	var repo domain.Repository
	if err := c.do(ctx, http.MethodPatch, "/repositories/"+url.PathEscape(id), nil, body, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// RepositoryStats retrieves per-user activity totals for one repository
func (c *Client) RepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
	body := map[string]string{"org": org, "repoName": repo}

	var stats domain.RepositoryStats
	if err := c.do(ctx, http.MethodPost, "/stats/", nil, body, &stats); err != nil {
		return nil, err
	}
	if stats.RepoName == "" {
		stats.RepoName = repo
	}
	if stats.Organization == "" {
		stats.Organization = org
	}
	return &stats, nil
}

// HealthCheck checks if the backend answers at all
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.raw(ctx, http.MethodGet, "/collections", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result interface{}) error {
	data, err := c.raw(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("invalid response from %s %s", method, path), err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid url %s: %v", path, err))
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(map[string]interface{}{"request_id": requestID, "method": method, "path": path})
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	log.Debugf("sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()
	c.limiter.Observe(resp.StatusCode, resp.Header)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to read response of %s %s", method, path), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debugf("backend answered %s", resp.Status)
		return nil, statusError(resp.StatusCode, method, path, data)
	}
	return data, nil
}

// statusError maps a non-2xx response to an AppError
func statusError(status int, method, path string, body []byte) error {
	message := backendMessage(body)
	if message == "" {
		message = fmt.Sprintf("%s %s: %s", method, path, http.StatusText(status))
	}

	var appErr *apperrors.AppError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		appErr = apperrors.NewAuthRequiredError(message)
	case status == http.StatusNotFound:
		appErr = &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: message}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		appErr = apperrors.NewBadRequestError(message)
	default:
		appErr = apperrors.NewNetworkError(message, nil)
	}
	appErr.Status = status
	return appErr
}

// backendMessage extracts {"message": ...} or {"error": ...} from an error body
func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
