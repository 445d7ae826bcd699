package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-core/api"
	"trading-core/internal/config"
	"trading-core/internal/executor"
	"trading-core/internal/fetcher"
	"trading-core/internal/infrastructure"
	"trading-core/internal/lifecycle"
	"trading-core/internal/push"
	sig "trading-core/internal/signal"
	"trading-core/internal/storage"

	"trading-core/internal/aggregator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Store      *storage.Store
	Gateway    *push.Gateway
	Pipeline   *Pipeline
	Aggregator *aggregator.Scheduler
	HTTPServer *http.Server

	cancel context.CancelFunc
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	return &App{
		Config: &cfg,
		Logger: logger,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool
	a.Store = storage.NewStore(dbPool, a.Logger)

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Services
	marketData := fetcher.New(a.Config.ProviderURL, a.Config.LookbackBars, a.Config.BarInterval, a.Logger)
	broker := executor.NewClient(a.Config.ExecutorURL, a.Logger)
	requests := lifecycle.NewRequests(a.Store, a.Logger)
	trades := lifecycle.NewTrades(a.Store, a.Logger)

	a.Pipeline = NewPipeline(
		a.Store,
		marketData,
		sig.NewGenerator(a.Logger),
		broker,
		requests,
		trades,
		js,
		time.Duration(a.Config.AnalysisIntervalSeconds)*time.Second,
		a.Config.RequestBatchSize,
		a.Config.WorkerCount,
		a.Config.DefaultAsset,
		a.Logger,
	)
	a.Aggregator = aggregator.NewScheduler(
		marketData,
		a.Store,
		js,
		time.Duration(a.Config.AggregationIntervalSeconds)*time.Second,
		a.Logger,
	)
	a.Gateway = push.NewGateway(js, a.Logger)

	return nil
}

// Run starts the pipeline, the aggregation scheduler and the HTTP server
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.Gateway.Start(); err != nil {
		return fmt.Errorf("failed to start push gateway: %w", err)
	}

	go a.Pipeline.Run(ctx)
	go a.Aggregator.Run(ctx)

	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.NC.Close()
	a.DB.Close()

	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	trades := lifecycle.NewTrades(a.Store, a.Logger)
	apiHandler := api.NewHandler(a.Store, trades, a.Logger)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/stats/:asset", apiHandler.GetStats)
		v1.GET("/trades", apiHandler.GetTrades)
		v1.POST("/trades/:id/settle", apiHandler.SettleTrade)
	}

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
