package app

import (
	"context"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	httpapi "github.com/yungbote/coursetree-backend/internal/http"
	httpH "github.com/yungbote/coursetree-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursetree-backend/internal/http/middleware"
	"github.com/yungbote/coursetree-backend/internal/modules/tree/workflow"
	"github.com/yungbote/coursetree-backend/internal/observability"
	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/realtime"
	"github.com/yungbote/coursetree-backend/internal/realtime/bus"
	"github.com/yungbote/coursetree-backend/internal/services"
	"github.com/yungbote/coursetree-backend/internal/temporalx"
	"github.com/yungbote/coursetree-backend/internal/temporalx/temporalworker"
	"github.com/yungbote/coursetree-backend/internal/temporalx/treerun"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Core     *Core
	Server   *httpapi.Server
	Hub      *realtime.Hub
	Bus      bus.Bus
	Sessions services.SessionService

	local    *services.LocalRunner
	temporal temporalsdkclient.Client
	worker   *temporalworker.Worker

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg := LoadConfig(log)
	ctx := context.Background()

	runnerKind := "local"
	if cfg.Temporal.Enabled() {
		runnerKind = "temporal"
	}
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName:       "coursetree-backend",
		Environment:       cfg.Environment,
		CheckpointBackend: cfg.CheckpointBackend,
		Runner:            runnerKind,
		Language:          cfg.Language,
	})
	metrics := observability.Init(log)

	a := &App{Log: log, Cfg: cfg, Hub: realtime.NewHub(log), otelShutdown: otelShutdown}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// The bus needs Redis, which Core opens, so the observer resolves the bus lazily.
	observer := &bus.Observer{Log: log}
	core, err := NewCore(ctx, log, cfg, metrics, observer)
	if err != nil {
		return nil, err
	}
	a.Core = core
	if core.Redis != nil {
		if a.Bus, err = bus.NewRedisBus(log, core.Redis, cfg.RedisChannel); err != nil {
			return nil, err
		}
	} else {
		a.Bus = bus.NewLocalBus()
	}
	observer.Bus = a.Bus

	runner, err := a.wireRunner(ctx)
	if err != nil {
		return nil, err
	}
	a.Sessions = services.NewSessionService(log, core.Engine, runner, core.Example, core.Model, metrics)

	var auth *httpMW.AuthMiddleware
	if cfg.AuthJWTSecret != "" {
		auth = httpMW.NewAuthMiddleware(log, cfg.AuthJWTSecret)
	} else {
		log.Warn("AUTH_JWT_SECRET not set; API is unauthenticated")
	}
	a.Server = httpapi.NewServer(httpapi.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: auth,
		SessionHandler: httpH.NewSessionHandler(a.Sessions),
		EventsHandler:  httpH.NewEventsHandler(log, a.Hub, a.Sessions),
		BookHandler:    httpH.NewBookHandler(core.Books),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	ok = true
	return a, nil
}

// wireRunner picks Temporal when TEMPORAL_ADDRESS is set and in-process goroutines otherwise.
func (a *App) wireRunner(ctx context.Context) (services.SessionRunner, error) {
	finish := a.Core.PublishOnDone()
	tc, err := temporalx.NewClient(ctx, a.Log, a.Cfg.Temporal)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		a.local = services.NewLocalRunner(a.Log, a.Core.Engine, finish)
		return a.local, nil
	}
	a.temporal = tc
	acts := &treerun.Activities{Log: a.Log, Engine: a.Core.Engine, Finish: finish}
	if a.worker, err = temporalworker.New(a.Log, tc, a.Cfg.Temporal, acts); err != nil {
		return nil, err
	}
	return treerun.NewRunner(a.Log, tc, a.Cfg.Temporal.TaskQueue)
}

func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start event forwarder: %w", err)
	}
	a.Core.Metrics.StartRedisCollector(ctx, a.Log, a.Core.Redis, 15*time.Second)
	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.local != nil {
		a.recoverInterrupted(ctx)
	}
	return nil
}

// recoverInterrupted relaunches sessions a previous process left mid-stage. Continue resumes
// them from their last checkpoint.
func (a *App) recoverInterrupted(ctx context.Context) {
	lister, ok := a.Core.Store.(workflow.InterruptedLister)
	if !ok {
		return
	}
	ids, err := lister.Interrupted(ctx, 500)
	if err != nil {
		a.Log.Warn("Listing interrupted sessions failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := a.local.Launch(ctx, id); err != nil {
			a.Log.Warn("Relaunch failed", "session_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		a.Log.Info("Relaunched interrupted sessions", "count", len(ids))
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Server != nil {
		_ = a.Server.Shutdown(ctx)
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.local != nil {
		a.local.Close()
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.Core != nil {
		a.Core.Close(ctx)
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
