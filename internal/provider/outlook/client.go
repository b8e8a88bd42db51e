package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

// Client is a thin HTTP client for the Microsoft Graph v1.0 REST API.
// It handles Bearer authentication, the ConsistencyLevel header required
// by $search, and maps failures onto the mailerr taxonomy. Requests are
// never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Graph client rooted at baseURL
// (e.g. https://graph.microsoft.com/v1.0).
func NewClient(
	baseURL string,
	token string,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Get performs GET baseURL+path with params and decodes the JSON response.
func (c *Client) Get(
	ctx context.Context,
	op string,
	path string,
	params url.Values,
	result interface{},
) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + encodeParams(params)
	}
	return c.do(ctx, op, target, result)
}

// GetURL performs GET on an absolute URL exactly as given. It is used for
// @odata.nextLink values, which already carry every query parameter.
func (c *Client) GetURL(
	ctx context.Context,
	op string,
	rawURL string,
	result interface{},
) error {
	return c.do(ctx, op, rawURL, result)
}

func (c *Client) do(
	ctx context.Context,
	op string,
	target string,
	result interface{},
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return mailerr.Wrap(mailerr.KindOutlookAPI, Name, "creating request", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if needsEventualConsistency(target) {
		req.Header.Set("ConsistencyLevel", "eventual")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.TransportError(Name, mailerr.KindOutlookAPI, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.TransportError(Name, mailerr.KindOutlookAPI, op, err)
	}

	c.logger.Debug("graph request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return &mailerr.Error{
			Kind:       mailerr.KindInvalidAccessToken,
			Provider:   Name,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    "access token expired or invalid",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var graphErr ErrorResponse
		if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Message != "" {
			msg = graphErr.Error.Code + ": " + graphErr.Error.Message
		}
		return &mailerr.Error{
			Kind:       mailerr.KindOutlookAPI,
			Provider:   Name,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg),
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &mailerr.Error{
			Kind:       mailerr.KindOutlookAPI,
			Provider:   Name,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

// needsEventualConsistency reports whether the request URL carries a
// $search parameter, in plain or percent-encoded form.
func needsEventualConsistency(target string) bool {
	return strings.Contains(target, "$search") ||
		strings.Contains(strings.ToLower(target), "%24search")
}

// encodeParams renders OData parameters with literal $ keys and
// percent-encoded values (spaces as %20), sorted by key.
func encodeParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range params[k] {
			escaped := strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
			parts = append(parts, k+"="+escaped)
		}
	}
	return strings.Join(parts, "&")
}
