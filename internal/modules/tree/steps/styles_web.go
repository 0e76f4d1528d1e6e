package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/prompts"
	"github.com/yungbote/coursetree-backend/internal/pkg/workpool"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/platform/webfetch"
)

const StageWebStyles = "web_styles"

// Searcher returns result URLs for query, best first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Fetcher returns the tag-filtered text of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type WebStylesConfig struct {
	Domains      []string
	MaxPages     int
	ChunkSize    int
	ChunkOverlap int
	Count        int
}

// WebStylesConfigFrom projects the style config onto the web source.
func WebStylesConfigFrom(c StyleConfig) WebStylesConfig {
	return WebStylesConfig{
		Domains:      c.Search.Domains,
		MaxPages:     c.Search.MaxPages,
		ChunkSize:    c.Extract.ChunkSize,
		ChunkOverlap: c.Extract.ChunkOverlap,
		Count:        c.Counts.Web,
	}
}

type WebStyles struct {
	log    *logger.Logger
	oracle oracle.Caller
	search Searcher
	fetch  Fetcher
	pool   *workpool.Pool
	cfg    WebStylesConfig
}

func NewWebStyles(log *logger.Logger, oc oracle.Caller, search Searcher, fetch Fetcher, pool *workpool.Pool, cfg WebStylesConfig) *WebStyles {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultWebStyleCount
	}
	return &WebStyles{
		log:    log.With("service", "WebStyles"),
		oracle: oc,
		search: search,
		fetch:  fetch,
		pool:   pool,
		cfg:    cfg,
	}
}

// SearchQuery appends a site: restriction for every allowed domain to goal.
func SearchQuery(goal string, domains []string) string {
	goal = strings.TrimSpace(goal)
	sites := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			sites = append(sites, "site:"+d)
		}
	}
	if len(sites) == 0 {
		return goal
	}
	return goal + " " + strings.Join(sites, " OR ")
}

// Generate runs search, fetch, per-chunk insight extraction and a final synthesis call.
// Individual pages and chunks may fail; the stage fails only when nothing usable is left.
func (w *WebStyles) Generate(ctx context.Context, goal string) ([]tree.Style, error) {
	fail := func(err error) ([]tree.Style, error) {
		return nil, &tree.StageError{Kind: tree.ErrStyleSourceFailure, Stage: StageWebStyles, Err: err}
	}
	if w.search == nil || w.fetch == nil {
		return fail(fmt.Errorf("web search not configured"))
	}

	urls, err := w.search.Search(ctx, SearchQuery(goal, w.cfg.Domains), w.cfg.MaxPages)
	if err != nil {
		return fail(fmt.Errorf("search: %w", err))
	}
	urls = w.allowedURLs(urls)
	if len(urls) == 0 {
		return fail(fmt.Errorf("search returned no allowed pages"))
	}

	texts, errs := workpool.Map(ctx, w.pool, urls, func(ctx context.Context, _ int, u string) (string, error) {
		return w.fetch.Fetch(ctx, u)
	})
	var chunks []string
	for i, text := range texts {
		if errs[i] != nil {
			w.log.Warn("Page fetch failed; dropping page", "url", urls[i], "error", errs[i])
			continue
		}
		chunks = append(chunks, webfetch.Chunk(text, w.cfg.ChunkSize, w.cfg.ChunkOverlap)...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return fail(fmt.Errorf("no usable pages"))
	}

	found, errs := workpool.Map(ctx, w.pool, chunks, func(ctx context.Context, _ int, chunk string) (*tree.Style, error) {
		var s tree.Style
		if err := w.oracle.Call(ctx, prompts.PromptExtractInsight, prompts.Input{ChunkText: chunk}, &s); err != nil {
			return nil, err
		}
		return &s, nil
	})
	insights := make([]tree.Style, 0, len(found))
	for i, s := range found {
		if errs[i] != nil {
			w.log.Warn("Insight extraction failed; dropping chunk", "chunk", i, "error", errs[i])
			continue
		}
		if s != nil && strings.TrimSpace(s.Title) != "" {
			insights = append(insights, *s)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return fail(fmt.Errorf("no insights extracted from %d chunks", len(chunks)))
	}

	raw, err := json.Marshal(insights)
	if err != nil {
		return fail(err)
	}
	var res styleListResult
	if err := w.oracle.Call(ctx, prompts.PromptWebStyles, prompts.Input{
		Goal:         goal,
		InsightsJSON: string(raw),
		Count:        w.cfg.Count,
	}, &res); err != nil {
		return fail(err)
	}
	styles := cleanStyles(res.Styles, tree.StyleSourceWeb, w.cfg.Count)
	if len(styles) == 0 {
		return fail(fmt.Errorf("no usable styles synthesized"))
	}
	w.log.Debug("Web styles synthesized", "pages", len(urls), "chunks", len(chunks), "insights", len(insights), "styles", len(styles))
	return styles, nil
}

func (w *WebStyles) allowedURLs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, raw := range in {
		if len(out) == w.cfg.MaxPages {
			break
		}
		if seen[raw] || !HostAllowed(raw, w.cfg.Domains) {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	return out
}

// HostAllowed reports whether rawURL is an http(s) URL on one of domains or a subdomain of one.
// An empty allow-list admits every host.
func HostAllowed(rawURL string, domains []string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	if len(domains) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
