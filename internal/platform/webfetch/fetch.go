package webfetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const (
	ModeHTTP     = "http"
	ModeChromedp = "chromedp"

	userAgent = "CoursetreeBot/1.0 (style discovery)"
)

type Config struct {
	Mode       string
	Tags       []string
	Timeout    time.Duration
	MaxBytes   int64
	AllowLocal bool // permits plain http and private hosts; tests only
}

func ConfigFromEnv(tags []string) Config {
	return Config{
		Mode:     strings.ToLower(envutil.String("WEB_FETCH_MODE", ModeHTTP)),
		Tags:     tags,
		Timeout:  envutil.Seconds("WEB_FETCH_TIMEOUT_SECONDS", 25*time.Second),
		MaxBytes: int64(envutil.Int("WEB_FETCH_MAX_BYTES", 4<<20)),
	}
}

// Renderer returns the HTML of a page.
type Renderer interface {
	HTML(ctx context.Context, pageURL string) (string, error)
}

// Fetcher renders a page and reduces it to tag-filtered text.
type Fetcher struct {
	log      *logger.Logger
	renderer Renderer
	tags     []string
	cfg      Config
}

func New(log *logger.Logger, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 << 20
	}
	if len(cfg.Tags) == 0 {
		cfg.Tags = []string{"span"}
	}
	f := &Fetcher{log: log.With("service", "WebFetcher"), tags: cfg.Tags, cfg: cfg}
	switch cfg.Mode {
	case ModeChromedp:
		f.renderer = &ChromeRenderer{Timeout: cfg.Timeout, AllowLocal: cfg.AllowLocal}
	default:
		f.renderer = NewHTTPRenderer(cfg)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if !f.cfg.AllowLocal && !IsAllowedURL(ctx, pageURL) {
		return "", fmt.Errorf("url blocked: %s", pageURL)
	}
	raw, err := f.renderer.HTML(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(raw, pageURL, f.tags)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", pageURL, err)
	}
	if text == "" {
		return "", fmt.Errorf("no text in %s", pageURL)
	}
	f.log.Debug("Page fetched", "url", pageURL, "runes", len([]rune(text)))
	return text, nil
}

type HTTPRenderer struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPRenderer builds a client whose redirects are re-checked against the URL policy.
func NewHTTPRenderer(cfg Config) *HTTPRenderer {
	c := &http.Client{Timeout: cfg.Timeout}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 6 {
			return fmt.Errorf("too many redirects")
		}
		if req == nil || req.URL == nil {
			return fmt.Errorf("redirect missing url")
		}
		if !cfg.AllowLocal && !IsAllowedURL(req.Context(), req.URL.String()) {
			return fmt.Errorf("redirect blocked: %s", req.URL.String())
		}
		return nil
	}
	return &HTTPRenderer{client: c, maxBytes: cfg.MaxBytes}
}

func (r *HTTPRenderer) HTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(pageURL), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	if ct := strings.TrimSpace(resp.Header.Get("Content-Type")); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "text/html" && mt != "text/plain" && mt != "application/xhtml+xml" {
			return "", fmt.Errorf("unsupported content type %s", mt)
		}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > r.maxBytes {
		return "", fmt.Errorf("response too large (%d > %d)", len(b), r.maxBytes)
	}
	return string(b), nil
}

// ChromeRenderer loads the page in headless Chrome so client-rendered blogs yield their text.
// The page the browser lands on after redirects must pass the same URL policy as the request.
type ChromeRenderer struct {
	Timeout    time.Duration
	AllowLocal bool
}

func (r *ChromeRenderer) HTML(ctx context.Context, pageURL string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var landed string
	if err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.Location(&landed),
	); err != nil {
		return "", err
	}
	if err := checkLanded(ctx, pageURL, landed, r.AllowLocal); err != nil {
		return "", err
	}
	var out string
	err := chromedp.Run(bctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	return out, err
}

func checkLanded(ctx context.Context, pageURL, landed string, allowLocal bool) error {
	if allowLocal {
		return nil
	}
	if !IsAllowedURL(ctx, landed) {
		return fmt.Errorf("redirect blocked: %s -> %s", pageURL, landed)
	}
	return nil
}

// IsAllowedURL admits https URLs whose host resolves only to public addresses.
func IsAllowedURL(ctx context.Context, raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u == nil {
		return false
	}
	if strings.ToLower(u.Scheme) != "https" {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".local") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !isPrivateIP(ip)
	}
	resCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ips, err := net.DefaultResolver.LookupIP(resCtx, "ip", host)
	if err != nil || len(ips) == 0 {
		return false
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return false
		}
	}
	return true
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}
