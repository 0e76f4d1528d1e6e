package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursetree-backend/internal/data/checkpoint"
	"github.com/yungbote/coursetree-backend/internal/data/db"
	"github.com/yungbote/coursetree-backend/internal/data/repos"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/oracle"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/steps"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/observability"
	"github.com/yungbote/coursetree-backend/internal/pkg/workpool"
	"github.com/yungbote/coursetree-backend/internal/platform/gcp"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/platform/neo4jdb"
	"github.com/yungbote/coursetree-backend/internal/platform/openai"
	"github.com/yungbote/coursetree-backend/internal/platform/webfetch"
	"github.com/yungbote/coursetree-backend/internal/platform/websearch"
	"github.com/yungbote/coursetree-backend/internal/services"
)

// Core is everything a session needs, shared by the HTTP server and the CLI.
type Core struct {
	Log     *logger.Logger
	Cfg     Config
	Metrics *observability.Metrics

	DB     *db.Service
	Redis  goredis.UniversalClient
	Neo4j  *neo4jdb.Client
	Bucket gcp.BucketService

	Store   workflow.Store
	Example *steps.ExampleSelector
	Model   *steps.ModelStyles
	Engine  *workflow.Engine
	Books   services.BookService
}

// NewCore opens the stores and builds the engine. observer may be nil.
func NewCore(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics, observer workflow.Observer) (*Core, error) {
	c := &Core{Log: log, Cfg: cfg, Metrics: metrics}
	ok := false
	defer func() {
		if !ok {
			c.Close(context.Background())
		}
	}()

	dbs, err := db.Open(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	c.DB = dbs

	if cfg.RedisAddr != "" {
		c.Redis = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
	}

	if c.Neo4j, err = neo4jdb.NewFromEnv(log); err != nil {
		return nil, err
	}
	storageCfg, err := gcp.StorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	if c.Bucket, err = gcp.NewBucketService(ctx, log, storageCfg); err != nil {
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store, err := c.checkpointStore()
	if err != nil {
		return nil, err
	}
	c.Store = store

	styleCfg, err := steps.LoadStyleConfig(cfg.StyleConfigPath)
	if err != nil {
		return nil, err
	}

	client, err := openai.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("init openai: %w", err)
	}
	oc := oracle.New(log, client, cfg.Language, metrics)
	pool := workpool.New(cfg.FanoutConcurrency)

	var searcher steps.Searcher
	if wsCfg := websearch.ConfigFromEnv(); wsCfg.Enabled() {
		ws, err := websearch.New(ctx, log, wsCfg)
		if err != nil {
			return nil, err
		}
		searcher = ws
	} else {
		log.Warn("Web search not configured; web styles will report a style source failure")
	}
	fetcher := webfetch.New(log, webfetch.ConfigFromEnv(styleCfg.Extract.Tags))

	c.Example = steps.NewExampleSelector(log, oc)
	c.Model = steps.NewModelStyles(log, oc, styleCfg.Counts.Model)
	web := steps.NewWebStyles(log, oc, searcher, fetcher, pool, steps.WebStylesConfigFrom(styleCfg))
	merger := steps.NewStyleMerger(log, oc, styleCfg.Counts.Shortlist)

	observers := workflow.Observers{workflow.LogObserver{Log: log}}
	if observer != nil {
		observers = append(observers, observer)
	}
	engine, err := workflow.New(workflow.Deps{
		Log:        log,
		Store:      store,
		Classifier: steps.NewClassifier(log, oc),
		Styles:     steps.NewStylePipeline(log, c.Example, c.Model, web, merger),
		Fanout:     steps.NewFanout(log, oc, pool, cfg.FanoutRetry),
		Observer:   observers,
		Recorder:   metrics,
	})
	if err != nil {
		return nil, err
	}
	c.Engine = engine

	covers, err := services.NewCoverService(log, c.Bucket)
	if err != nil {
		return nil, err
	}
	c.Books = services.NewBookService(dbs.DB(), log, repos.NewBookRepo(dbs.DB(), log), c.Bucket, c.Neo4j, covers)

	ok = true
	return c, nil
}

func (c *Core) checkpointStore() (workflow.Store, error) {
	switch c.Cfg.CheckpointBackend {
	case CheckpointPostgres, CheckpointSQLite:
		return checkpoint.NewGormStore(c.DB.DB(), c.Log), nil
	case CheckpointRedis:
		if c.Redis == nil {
			return nil, fmt.Errorf("CHECKPOINT_BACKEND=redis requires REDIS_ADDR")
		}
		return checkpoint.NewRedisStore(c.Log, c.Redis, "", c.Cfg.CheckpointTTL), nil
	default:
		c.Log.Warn("Using in-memory checkpoints; sessions do not survive a restart")
		return checkpoint.NewMemoryStore(), nil
	}
}

// PublishOnDone counts finished sessions and stores completed trees as books.
func (c *Core) PublishOnDone() services.FinishFunc {
	return services.PublishOnDone(c.Log, c.Books, c.Metrics)
}

func (c *Core) Close(ctx context.Context) {
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
