// Package fetch retrieves article text from the MediaWiki API.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	readability "github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrPageNotFound is returned when no article matches the title.
	ErrPageNotFound = errors.New("page not found")
	// ErrDisambiguation is returned when the title names a disambiguation page.
	ErrDisambiguation = errors.New("title is a disambiguation page")
)

// Page is a fetched article.
type Page struct {
	Title   string
	URL     string
	Content string
}

// Options configures a Client.
type Options struct {
	Endpoint          string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	AutoSuggest       bool
}

// Client fetches plain-text article extracts. It is safe for concurrent use:
// requests share one rate limiter and circuit breaker, and concurrent
// fetches of the same title are collapsed into one.
type Client struct {
	endpoint    string
	userAgent   string
	autoSuggest bool
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
}

// NewClient creates a new Wikipedia client.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "WikiGraph/1.0"
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		endpoint:    opts.Endpoint,
		userAgent:   opts.UserAgent,
		autoSuggest: opts.AutoSuggest,
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "wikipedia",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var he *httpError
				return err == nil || (errors.As(err, &he) && he.code < 500)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Page fetches the article for title. A missing title is retried once with
// the best search match when auto-suggest is on. When the API returns an
// empty extract the rendered page is run through readability instead.
func (c *Client) Page(ctx context.Context, title string) (*Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("empty title: %w", ErrPageNotFound)
	}
	// Detached from the first caller's cancellation; the client timeout
	// still bounds it.
	v, err, shared := c.group.Do(title, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), title)
	})
	if shared {
		log.Debug("Shared in-flight fetch", "title", title)
	}
	if err != nil {
		return nil, err
	}
	p := *v.(*Page)
	return &p, nil
}

func (c *Client) fetch(ctx context.Context, title string) (*Page, error) {
	page, err := c.extract(ctx, title)
	if errors.Is(err, ErrPageNotFound) && c.autoSuggest {
		suggestion, serr := c.suggest(ctx, title)
		if serr != nil {
			log.Debug("Search suggestion failed", "title", title, "err", serr)
		}
		if suggestion != "" && !strings.EqualFold(suggestion, title) {
			log.Info("Using suggested title", "title", title, "suggestion", suggestion)
			page, err = c.extract(ctx, suggestion)
		}
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(page.Content) == "" && page.URL != "" {
		text, herr := c.rendered(ctx, page.URL)
		if herr != nil {
			log.Warn("Rendered page fallback failed", "url", page.URL, "err", herr)
		}
		page.Content = text
	}
	if strings.TrimSpace(page.Content) == "" {
		return nil, fmt.Errorf("%q has no extractable content: %w", page.Title, ErrPageNotFound)
	}

	log.Info("Fetched article", "title", page.Title, "chars", len(page.Content))
	return page, nil
}

type queryResponse struct {
	Query struct {
		Pages []struct {
			Title     string            `json:"title"`
			Missing   bool              `json:"missing"`
			Invalid   bool              `json:"invalid"`
			Extract   string            `json:"extract"`
			FullURL   string            `json:"fullurl"`
			PageProps map[string]string `json:"pageprops"`
		} `json:"pages"`
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

func (c *Client) extract(ctx context.Context, title string) (*Page, error) {
	params := url.Values{
		"action":          {"query"},
		"format":          {"json"},
		"formatversion":   {"2"},
		"prop":            {"extracts|info|pageprops"},
		"explaintext":     {"1"},
		"exsectionformat": {"wiki"},
		"inprop":          {"url"},
		"redirects":       {"1"},
		"titles":          {title},
	}
	var resp queryResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("%q: %w", title, ErrPageNotFound)
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return nil, fmt.Errorf("%q: %w", title, ErrPageNotFound)
	}
	if _, ok := p.PageProps["disambiguation"]; ok {
		return nil, fmt.Errorf("%q: %w", p.Title, ErrDisambiguation)
	}
	return &Page{Title: p.Title, URL: p.FullURL, Content: p.Extract}, nil
}

func (c *Client) suggest(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"list":          {"search"},
		"srsearch":      {title},
		"srlimit":       {"1"},
	}
	var resp queryResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("wikipedia request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, &httpError{code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return nil, nil
	})
	return err
}

func (c *Client) rendered(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("wikipedia returned %d %s", e.code, http.StatusText(e.code))
}
