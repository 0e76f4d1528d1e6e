package websearch

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// maxPerPage is the Custom Search API page size limit.
const maxPerPage = 10

type Config struct {
	APIKey   string
	EngineID string
	Endpoint string
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:   envutil.String("GOOGLE_CSE_API_KEY", ""),
		EngineID: envutil.String("GOOGLE_CSE_ID", ""),
		Endpoint: envutil.String("GOOGLE_CSE_ENDPOINT", ""),
	}
}

func (c Config) Enabled() bool {
	return c.APIKey != "" && c.EngineID != ""
}

// Client searches with Google Programmable Search.
type Client struct {
	log *logger.Logger
	svc *customsearch.Service
	cx  string
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing GOOGLE_CSE_API_KEY or GOOGLE_CSE_ID")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("customsearch: %w", err)
	}
	return &Client{log: log.With("service", "WebSearch"), svc: svc, cx: cfg.EngineID}, nil
}

// Search returns up to limit result links in rank order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = maxPerPage
	}
	num := limit
	if num > maxPerPage {
		num = maxPerPage
	}
	res, err := c.svc.Cse.List().Cx(c.cx).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("customsearch list: %w", err)
	}
	out := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		out = append(out, item.Link)
		if len(out) == limit {
			break
		}
	}
	c.log.Debug("Search finished", "results", len(out))
	return out, nil
}
