package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/session"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/sr"
)

type sessionStores struct {
	store       port.SessionStore
	memory      *session.MemoryStore
	redisClient *redis.Client
}

type streams struct {
	enabled   bool
	producer  kafka.CartEventsProducer
	processor kafka.DemandProcessor
	view      kafka.DemandView
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	catalog    domain.Catalog
	sessions   sessionStores
	streams    streams
	service    service.Service
	httpServer httphandler.HTTPServer
	wg         sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initCatalog()
	app.initSessionStore()
	app.initStreams()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initCatalog() {
	const op = "App.initCatalog"
	log := slog.With("op", op)

	var (
		loader port.ProductsLoader
		source string
	)

	if dsn := app.cfg.SQLDB; dsn != "" {
		db, err := storage.NewSQLDB(app.ctx, dsn)
		if err != nil {
			app.fallDown(op, err)
		}
		defer db.Close()
		loader = storage.NewProductsRepository(db)
		source = "sql"
	} else {
		seed, err := storage.NewSeedRepository(app.cfg.CatalogSeedFile)
		if err != nil {
			app.fallDown(op, err)
		}
		loader = seed
		source = "seed"
	}

	products, err := loader.LoadProducts(app.ctx)
	if err != nil {
		app.fallDown(op, err)
	}

	catalog, err := domain.NewCatalog(products)
	if err != nil {
		app.fallDown(op, err)
	}

	app.catalog = catalog
	log.Info(
		"catalog is loaded",
		"source", source,
		"nProducts", catalog.Len(),
		"nCategories", len(catalog.Categories())-1,
	)
}

func (app *App) initSessionStore() {
	const op = "App.initSessionStore"
	log := slog.With("op", op)

	cfg := app.cfg.Sessions

	if cfg.Redis.Addr == "" {
		memory := session.NewMemoryStore(cfg.TTL)
		app.sessions.memory = memory
		app.sessions.store = memory
		log.Info("sessions are kept in memory", "ttl", cfg.TTL)
		return
	}

	tlsConfig, err := adapter.MakeTLSConfig(
		cfg.Redis.TLS.CAFile, cfg.Redis.TLS.CertFile, cfg.Redis.TLS.KeyFile,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	client, err := session.NewRedisClient(
		app.ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, tlsConfig,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.sessions.redisClient = client
	app.sessions.store = session.NewRedisStore(client, cfg.TTL)
	log.Info("sessions are kept in redis", "addr", cfg.Redis.Addr, "ttl", cfg.TTL)
}

func (app *App) initStreams() {
	const op = "App.initStreams"

	cfg := app.cfg.Broker
	if !cfg.Enabled() {
		slog.With("op", op).Info("broker is not configured, cart events are off")
		return
	}

	ctx := app.ctx
	topic := cfg.Topics.CartEvents

	srClient, err := sr.NewClient(sr.URLs(cfg.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}

	cartEventSerde, err := schema.NewSerdeCartEventV1(
		ctx,
		schema.SubjectOpt(topic+"-value"),
		schema.SchemaIdentifierOpt(schema.NewSchemaCreater(srClient)),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	producer, err := kafka.NewCartEventsProducer(
		kafka.ProducerClientOpt(ctx, cfg.SeedBrokers, topic),
		kafka.ProducerEncoderOpt(cartEventSerde),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	processor, err := kafka.NewDemandProcessor(
		cfg.SeedBrokers, topic, cfg.Consumers.DemandGroup, cartEventSerde,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	view, err := kafka.NewDemandView(cfg.SeedBrokers, cfg.Consumers.DemandGroup)
	if err != nil {
		app.fallDown(op, err)
	}

	app.streams = streams{
		enabled:   true,
		producer:  producer,
		processor: processor,
		view:      view,
	}
}

func (app *App) initCoreService() {
	var (
		events port.CartEventsProducer
		demand port.DemandReader
	)

	if app.streams.enabled {
		events = app.streams.producer
		demand = app.streams.view
	}

	app.service = service.New(app.catalog, app.sessions.store, events, demand)
}

func (app *App) initInboundAdapters() {
	router := httphandler.NewRouter(app.service, app.service)
	app.httpServer = httphandler.NewHTTPServer(
		app.cfg.HTTPServerAddr, router, app.cfg.HTTPHandlerTimeout,
	)
}

func (app *App) Run(stopFn context.CancelFunc) {
	if app.sessions.memory != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.sessions.memory.Run(app.ctx, app.cfg.Sessions.SweepInterval)
		}()
	}

	if app.streams.enabled {
		var wg sync.WaitGroup
		wg.Add(1)
		app.streams.processor.Run(app.ctx, stopFn, &wg)
		wg.Wait()

		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.streams.view.Run(app.ctx)
		}()
	}

	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)

	if app.streams.enabled {
		app.streams.processor.Close()
		app.streams.producer.Close()
	}

	app.wg.Wait()

	if app.sessions.redisClient != nil {
		if err := app.sessions.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "err", err)
		}
	}

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
