package paypropsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const fetchPageSize = 25

// maxFetchPages caps pagination so a broken endpoint that keeps
// returning full pages cannot loop forever.
const maxFetchPages = 1000

type paypropClient struct {
	baseURL string
	http    *http.Client
	limiter <-chan time.Time
}

func newPaypropClient(ctx context.Context) (*paypropClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("PAYPROP_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://uk.payprop.com/api/agency/v1.1"
	}
	clientId := strings.TrimSpace(os.Getenv("PAYPROP_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("PAYPROP_CLIENT_SECRET"))
	if clientId == "" || clientSecret == "" {
		return nil, errors.New("payprop client credentials are not configured")
	}
	tokenURL := strings.TrimSpace(os.Getenv("PAYPROP_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = strings.TrimRight(baseURL, "/") + "/oauth/access_token"
	}

	rateLimitPerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("PAYPROP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}

	cfg := clientcredentials.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := cfg.Client(ctx)
	httpClient.Timeout = 30 * time.Second

	return &paypropClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: time.Tick(time.Minute / time.Duration(rateLimitPerMin)),
	}, nil
}

type paypropListResponse struct {
	Items      []json.RawMessage `json:"items"`
	Data       []json.RawMessage `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		Rows       int `json:"rows"`
		TotalRows  int `json:"total_rows"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

func (c *paypropClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return ctx.Err()
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiStatusError{Status: resp.StatusCode, Path: path, Body: truncate(string(body), 200)}
	}
	return json.Unmarshal(body, out)
}

type apiStatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("payprop %s returned %d: %s", e.Path, e.Status, e.Body)
}

func isNotFound(err error) bool {
	var statusErr *apiStatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound
}

// fetchAllPages walks a paginated list endpoint until it returns a
// short page. Every raw item is handed to decode.
func (c *paypropClient) fetchAllPages(ctx context.Context, path string, params url.Values, decode func(json.RawMessage) error) error {
	if params == nil {
		params = url.Values{}
	}
	for page := 1; page <= maxFetchPages; page++ {
		params.Set("page", strconv.Itoa(page))
		params.Set("rows", strconv.Itoa(fetchPageSize))

		var resp paypropListResponse
		if err := c.getJSON(ctx, path, params, &resp); err != nil {
			return err
		}
		items := resp.Items
		if len(items) == 0 {
			items = resp.Data
		}
		for _, raw := range items {
			if err := decode(raw); err != nil {
				return err
			}
		}
		if len(items) < fetchPageSize {
			return nil
		}
		if resp.Pagination.TotalPages > 0 && page >= resp.Pagination.TotalPages {
			return nil
		}
	}
	return fmt.Errorf("payprop %s exceeded %d pages", path, maxFetchPages)
}

func (c *paypropClient) fetchById(ctx context.Context, kind string, id string, out interface{}) error {
	return c.getJSON(ctx, "/export/"+kind+"/"+url.PathEscape(id), nil, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
