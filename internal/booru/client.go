package booru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 30 * time.Second
	registerRespPrefix = "Post.register_resp("
)

// Opts is a carrier of options for Client.
type Opts struct {
	BaseURL   string
	UserAgent string
	ProxyURL  *url.URL

	Timeout time.Duration
	// QueriesPerSecond caps outbound catalog traffic across all users.
	// Zero means no cap.
	QueriesPerSecond float64
}

// Client queries the remote catalog. All methods hit the network; every call
// is bounded by the configured timeout and gated by a global courtesy limiter.
type Client struct {
	httpc     *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	log       *zap.Logger
}

// NewClient returns a configured Client.
func NewClient(opts Opts, log *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{}
	if opts.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(opts.ProxyURL)
	}

	qps := rate.Inf
	if opts.QueriesPerSecond > 0 {
		qps = rate.Limit(opts.QueriesPerSecond)
	}

	return &Client{
		httpc: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(qps, 1),
		log:       log,
	}
}

// QueryPage returns the candidates embedded in one listing page. An empty
// page is not an error; callers decide whether that means "not found".
func (c *Client) QueryPage(ctx context.Context, tag string, rating Rating, page int) ([]Candidate, error) {
	body, err := c.get(ctx, c.listingURL(tag, rating, page))
	if err != nil {
		return nil, err
	}
	return parsePreloadedPosts(body)
}

// DiscoverPageCount reads the pagination control of the first listing page
// for (tag, rating). Catalogs with a single page render no control at all,
// so a missing one means exactly one page.
func (c *Client) DiscoverPageCount(ctx context.Context, tag string, rating Rating) (int, error) {
	body, err := c.get(ctx, c.listingURL(tag, rating, 1))
	if err != nil {
		return 0, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: parse listing: %s", ErrCatalogUnavailable, err)
	}

	pages := 1
	pagination := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && attr(n, "class") == "pagination"
	})
	if pagination == nil {
		return pages, nil
	}

	walkNodes(pagination, func(n *html.Node) {
		if n.Type != html.ElementNode || (n.Data != "a" && n.Data != "em") {
			return
		}
		if p, err := strconv.Atoi(strings.TrimSpace(textContent(n))); err == nil && p > pages {
			pages = p
		}
	})
	return pages, nil
}

// QueryDetail resolves a candidate to its downloadable sources, in the order
// the detail page registers them. A parent post registers every child too,
// which is how one selection can yield several images.
func (c *Client) QueryDetail(ctx context.Context, id int) ([]Source, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/post/show/%d", c.baseURL, id))
	if err != nil {
		return nil, err
	}

	payload, ok := extractRegisterResp(string(body))
	if !ok {
		return nil, fmt.Errorf("%w: detail page of post %d has no registered post data", ErrCatalogUnavailable, id)
	}

	var resp struct {
		Posts []struct {
			ID         int    `json:"id"`
			FileURL    string `json:"file_url"`
			PreviewURL string `json:"preview_url"`
		} `json:"posts"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("%w: decode detail payload: %s", ErrCatalogUnavailable, err)
	}

	sources := make([]Source, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		if p.FileURL == "" && p.PreviewURL == "" {
			continue
		}
		sources = append(sources, Source{PreviewURL: p.PreviewURL, FileURL: p.FileURL})
	}

	c.log.Debug("resolved detail page", zap.Int("post_id", id), zap.Int("sources", len(sources)))
	return sources, nil
}

func (c *Client) listingURL(tag string, rating Rating, page int) string {
	tags := strings.TrimSpace(tag)
	if clause := rating.Clause(); clause != "" {
		tags += " " + clause
	}

	params := url.Values{}
	params.Set("tags", tags)
	params.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s/post?%s", c.baseURL, params.Encode())
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: wait for query quota: %s", ErrCatalogUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %s", ErrCatalogUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog answered %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %s", ErrCatalogUnavailable, err)
	}
	return body, nil
}

func parsePreloadedPosts(body []byte) ([]Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse listing: %s", ErrCatalogUnavailable, err)
	}

	script := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script" &&
			attr(n, "class") == "js-preload-posts" && attr(n, "type") == "application/json"
	})
	if script == nil || script.FirstChild == nil {
		return nil, fmt.Errorf("%w: listing has no preloaded post data", ErrCatalogUnavailable)
	}

	var posts []preloadedPost
	if err := json.Unmarshal([]byte(script.FirstChild.Data), &posts); err != nil {
		return nil, fmt.Errorf("%w: decode preloaded posts: %s", ErrCatalogUnavailable, err)
	}

	return lo.Map(posts, func(p preloadedPost, _ int) Candidate {
		return Candidate{ID: p.ID, Rating: p.Rating, PreviewURL: p.PreviewURL, FileURL: p.FileURL}
	}), nil
}

type preloadedPost struct {
	ID         int    `json:"id"`
	Rating     string `json:"rating"`
	PreviewURL string `json:"preview_url"`
	FileURL    string `json:"file_url"`
}

// extractRegisterResp pulls the JSON argument out of the detail page's
// `Post.register_resp({...});` script, the same way the page's own JS sees it.
func extractRegisterResp(body string) (string, bool) {
	start := strings.Index(body, registerRespPrefix)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(registerRespPrefix):]

	end := strings.Index(rest, ");")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func walkNodes(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walkNodes(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
