// Package supabase is a small PostgREST client for the scenario and staff
// tables. It reads canonical scenarios for matching and applies catalog
// updates one row at a time.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/ratelimit"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 5.0
	defaultBurst   = 5

	// pageSize stays under PostgREST's default max-rows.
	pageSize = 1000

	restPath = "/rest/v1/"
)

// Options configures a Client.
type Options struct {
	URL               string
	Key               string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Limiter is shared with other clients when set.
	Limiter    *ratelimit.KeyedRateLimiter
	HTTPClient *http.Client
}

// Client is a rate-limited PostgREST client.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a client. A missing URL or key is a CONFIG error.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, domainerrors.Config("SUPABASE_URL is required")
	}
	if opts.Key == "" {
		return nil, domainerrors.Config("SUPABASE_SERVICE_ROLE_KEY or SUPABASE_ANON_KEY is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		rps := opts.RequestsPerSecond
		if rps == 0 {
			rps = defaultRPS
		}
		limiter = ratelimit.New(rps, defaultBurst)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		key:     opts.Key,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// FetchScenarios returns every scenario row ordered by title.
func (c *Client) FetchScenarios(ctx context.Context) ([]domain.CanonicalScenario, error) {
	var out []domain.CanonicalScenario
	for offset := 0; ; offset += pageSize {
		query := url.Values{}
		query.Set("select", "id,title,author")
		query.Set("order", "title.asc")
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		body, err := c.do(ctx, http.MethodGet, domain.TableScenarios, query, nil)
		if err != nil {
			return nil, wrapError("fetchScenarios", domain.TableScenarios, "", err)
		}

		var page []struct {
			ID     string  `json:"id"`
			Title  string  `json:"title"`
			Author *string `json:"author"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, wrapError("fetchScenarios", domain.TableScenarios, "", fmt.Errorf("parse response: %w", err))
		}

		for _, row := range page {
			author := ""
			if row.Author != nil {
				author = *row.Author
			}
			s, err := domain.NewCanonicalScenario(row.ID, row.Title, author)
			if err != nil {
				c.logger.Warn("skipping scenario row", "id", row.ID, "error", err)
				continue
			}
			out = append(out, s)
		}

		if len(page) < pageSize {
			break
		}
	}

	c.logger.Debug("scenarios fetched", "count", len(out))
	return out, nil
}

// FetchStaffNames returns the name of every staff row, sorted.
func (c *Client) FetchStaffNames(ctx context.Context) ([]string, error) {
	var names []string
	for offset := 0; ; offset += pageSize {
		query := url.Values{}
		query.Set("select", "name")
		query.Set("order", "name.asc")
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("offset", strconv.Itoa(offset))

		body, err := c.do(ctx, http.MethodGet, "staff", query, nil)
		if err != nil {
			return nil, wrapError("fetchStaff", "staff", "", err)
		}

		var page []struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, wrapError("fetchStaff", "staff", "", fmt.Errorf("parse response: %w", err))
		}
		for _, row := range page {
			names = append(names, row.Name)
		}

		if len(page) < pageSize {
			break
		}
	}
	return names, nil
}

// UpdateRow patches the row of table with the given id and returns the
// number of rows the server reports as changed. Zero usually means the row
// is missing or hidden by row-level security.
func (c *Client) UpdateRow(ctx context.Context, table, id string, fields []domain.Field) (int, error) {
	patch := make(map[string]any, len(fields)+1)
	for _, f := range fields {
		patch[f.Column] = f.Value
	}
	patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(patch)
	if err != nil {
		return 0, wrapError("update", table, id, err)
	}

	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("select", "id")

	body, err := c.do(ctx, http.MethodPatch, table, query, payload)
	if err != nil {
		return 0, wrapError("update", table, id, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, wrapError("update", table, id, fmt.Errorf("parse response: %w", err))
	}
	return len(rows), nil
}

// UpdateOutcome reports what one scenario update changed.
type UpdateOutcome struct {
	Scenarios int
	Masters   int
}

// UpdateScenario applies u to scenarios and then scenario_masters. An update
// with no fields does nothing. The masters update is attempted even when the
// scenarios update fails, and the first error is returned.
func (c *Client) UpdateScenario(ctx context.Context, u domain.ScenarioUpdate) (UpdateOutcome, error) {
	var out UpdateOutcome
	var firstErr error

	if fields := u.Fields(domain.TableScenarios); len(fields) > 0 {
		n, err := c.UpdateRow(ctx, domain.TableScenarios, u.ID, fields)
		if err != nil {
			firstErr = err
		}
		out.Scenarios = n
	}
	if fields := u.Fields(domain.TableScenarioMasters); len(fields) > 0 {
		n, err := c.UpdateRow(ctx, domain.TableScenarioMasters, u.ID, fields)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out.Masters = n
	}
	return out, firstErr
}

// do executes one REST request with rate limiting and maps the status code.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, payload []byte) ([]byte, error) {
	if err := c.limiter.WaitURL(ctx, c.baseURL); err != nil {
		return nil, err
	}

	u := c.baseURL + restPath + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	c.logger.Debug("supabase request", "method", method, "table", table)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domainerrors.Wrap(ctx.Err(), domainerrors.CodeCanceled, "request canceled")
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(bytes.TrimSpace(body)) == 0 {
			return []byte("[]"), nil
		}
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
