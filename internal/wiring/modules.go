// Package wiring assembles every component (C1-C10) into one fx.App,
// adapted from the teacher's internal/server/modules.go: the same
// infrastructure/clients/services module split, minus the HTTP/
// Connect-RPC surface this core has no use for (§1: this is a library
// core consumed through the asynq worker and the Service API, not its
// own RPC service).
package wiring

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alleneee/docingest/internal/analyzer"
	"github.com/alleneee/docingest/internal/broker"
	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/chunking"
	"github.com/alleneee/docingest/internal/clients/base"
	"github.com/alleneee/docingest/internal/clients/embedding"
	"github.com/alleneee/docingest/internal/clients/markdownconv"
	"github.com/alleneee/docingest/internal/clients/rerank"
	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/executor"
	"github.com/alleneee/docingest/internal/incremental"
	"github.com/alleneee/docingest/internal/logger"
	"github.com/alleneee/docingest/internal/objectstorage"
	"github.com/alleneee/docingest/internal/pipeline"
	"github.com/alleneee/docingest/internal/retrieval"
	"github.com/alleneee/docingest/internal/service"
	"github.com/alleneee/docingest/internal/state"
	"github.com/alleneee/docingest/internal/vectorstore"
)

// Module is the top-level fx module: infrastructure, clients,
// components, service, and the worker lifecycle invoke.
var Module = fx.Options(
	InfrastructureModule,
	ClientsModule,
	ComponentsModule,
	ServiceModule,
	fx.Invoke(RunWorker),
)

// InfrastructureModule provides config, logger, cache, and the two
// state stores (document metadata + vector index use different
// backends per §6, but both sit on the same Postgres pool here).
var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		NewAppConfig,
		NewAppLogger,
		NewCacheClient,
		NewPostgresStore,
		NewDocumentStore,
		NewStateStore,
		NewVectorStore,
		NewObjectStorage,
	),
)

// ClientsModule provides the narrow external-service collaborators §6
// names: the embedder, the markdown converter, the reranker, and the
// asynq-backed broker/worker pair.
var ClientsModule = fx.Module("clients",
	fx.Provide(
		NewEmbeddingClient,
		NewMarkdownConverter,
		NewRerankClient,
		NewRedisConnOpt,
		NewBroker,
		NewWorker,
	),
)

// ComponentsModule provides C2-C3, C6-C8, C10: the pure/semi-pure
// in-process components that don't reach an external service directly.
var ComponentsModule = fx.Module("components",
	fx.Provide(
		NewChunkerFamily,
		NewAnalyzer,
		NewPipelineRegistry,
		NewPipelineEngine,
		NewExecutor,
		NewIncrementalManager,
		NewRetriever,
	),
)

// ServiceModule provides the single upward-facing Service (§6).
var ServiceModule = fx.Module("service",
	fx.Provide(NewService),
)

// NewAppConfig loads configuration the way the teacher's NewAppConfig
// does, from the working directory's config.yaml plus environment
// overrides.
func NewAppConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// NewAppLogger initializes the process-wide zap logger.
func NewAppLogger() (*zap.Logger, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.Get(), nil
}

// NewCacheClient connects to the Redis instance the DocumentLock,
// broker queue index, and chord counters all share.
func NewCacheClient(lc fx.Lifecycle, cfg *config.Config) (cache.Client, error) {
	c, err := cache.NewClient(cache.Options{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Close()
			return nil
		},
	})
	return c, nil
}

// pgPool is a thin alias so fx can distinguish "the Postgres document
// store" from "the Postgres vector store" even though both are built
// on the same connection, mirroring the teacher's VectorDB/cache split
// as two distinct provided types over one underlying connection.
type pgPool struct {
	*state.PostgresStore
}

// NewPostgresStore opens the shared Postgres pool both the document
// store and the vector store read and write through, and binds its
// Close to fx.Lifecycle.OnStop.
func NewPostgresStore(lc fx.Lifecycle, cfg *config.Config) (*pgPool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	s, err := state.NewPostgresStore(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			s.Close()
			return nil
		},
	})
	return &pgPool{s}, nil
}

// NewDocumentStore provides C1's document-metadata half of state.Store.
func NewDocumentStore(p *pgPool) state.DocumentStore { return p.PostgresStore }

// NewStateStore provides C1's processing-state/feature half.
func NewStateStore(p *pgPool) state.StateStore { return state.NewPostgresStateStore(p.PostgresStore) }

// NewVectorStore provides C5 over pgvector, reusing the document
// store's own pool (see NewPostgresStore) under the configured
// collection.
func NewVectorStore(p *pgPool, cfg *config.Config) vectorstore.Store {
	return vectorstore.NewPostgresStore(p.Pool(), cfg.VectorStore.Collection)
}

// NewObjectStorage connects to the MinIO bucket raw documents are read
// from for ingest (§3 "content retrieved from object storage").
func NewObjectStorage(cfg *config.Config) (objectstorage.Storage, error) {
	c, err := objectstorage.NewMinIOClient(context.Background(), objectstorage.Config{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKeyID,
		SecretAccessKey: cfg.MinIO.SecretAccessKey,
		BucketName:      cfg.MinIO.BucketName,
		UseSSL:          cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return c, nil
}

// NewEmbeddingClient provides C4.
func NewEmbeddingClient(cfg *config.Config) embedding.Embedder {
	return embedding.NewClient(embedding.Config{
		Provider: cfg.Embedding.Provider,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Model:    cfg.Embedding.Model,
		Dim:      cfg.Embedding.Dim,
		BatchMax: cfg.Embedding.BatchMax,
	})
}

// NewMarkdownConverter provides the MarkdownNormalize stage's
// collaborator.
func NewMarkdownConverter(cfg *config.Config) markdownconv.Converter {
	return markdownconv.NewClient(base.Config{
		BaseURL: cfg.Services.MarkdownConverter.BaseURL,
		APIKey:  cfg.Services.MarkdownConverter.APIKey,
	}, 0)
}

// NewRerankClient provides C10 step 5's cross-encoder collaborator.
func NewRerankClient(cfg *config.Config) rerank.Reranker {
	return rerank.NewClient(base.Config{
		BaseURL: cfg.Services.Reranker.BaseURL,
		APIKey:  cfg.Services.Reranker.APIKey,
	}, cfg.Services.Reranker.Model)
}

// NewRedisConnOpt adapts this core's Redis config into the
// asynq.RedisConnOpt the broker client and worker both need.
func NewRedisConnOpt(cfg *config.Config) asynq.RedisConnOpt {
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewBroker provides C9's submission half.
func NewBroker(redisOpt asynq.RedisConnOpt, cacheClient cache.Client, cfg *config.Config) broker.Broker {
	return broker.NewAsynqBroker(redisOpt, cacheClient, brokerDefaults(cfg))
}

// NewWorker provides C9's consumption half; RunWorker starts its serve
// loop once every handler it dispatches into has been constructed.
func NewWorker(redisOpt asynq.RedisConnOpt, cacheClient cache.Client, cfg *config.Config, log *zap.Logger) *broker.Worker {
	return broker.NewWorker(redisOpt, cacheClient, broker.WorkerConfig{
		Concurrency:              cfg.Parallel.MaxWorkers,
		Queues:                   broker.DefaultQueues(),
		WorkerPrefetchMultiplier: cfg.Broker.WorkerPrefetchMultiplier,
	}, brokerDefaults(cfg), log)
}

func brokerDefaults(cfg *config.Config) broker.Defaults {
	return broker.Defaults{
		TaskTimeLimit:     time.Duration(cfg.Broker.TaskTimeLimitSeconds) * time.Second,
		TaskSoftTimeLimit: time.Duration(cfg.Broker.TaskSoftTimeLimitSeconds) * time.Second,
		MaxRetries:        5,
	}
}

// NewChunkerFamily provides C3.
func NewChunkerFamily() *chunking.Family { return chunking.NewFamily() }

// NewAnalyzer provides C2.
func NewAnalyzer(cfg *config.Config) *analyzer.Analyzer { return analyzer.New(cfg.Parallel) }

// NewPipelineRegistry registers the five stage Processors C6 runs,
// mirroring the teacher's per-RPC handler call sequence generalized
// across every file type instead of one hardcoded PDF path.
func NewPipelineRegistry(
	converter markdownconv.Converter,
	family *chunking.Family,
	embedder embedding.Embedder,
	store vectorstore.Store,
	docs state.DocumentStore,
	states state.StateStore,
	cfg *config.Config,
) *pipeline.Registry {
	reg := pipeline.NewRegistry()
	reg.Register(pipeline.StageValidate, pipeline.ValidateProcessor{})
	reg.Register(pipeline.StageMarkdownNormalize, pipeline.NewMarkdownNormalizeProcessor(converter))
	reg.Register(pipeline.StageChunk, pipeline.NewChunkProcessor(family))
	reg.Register(pipeline.StageEmbed, pipeline.NewEmbedProcessor(embedder, cfg.Embedding.BatchMax))
	reg.Register(pipeline.StageIndex, pipeline.NewIndexProcessor(store))
	reg.Register(pipeline.StageFinalize, pipeline.NewFinalizeProcessor(docs, states))
	return reg
}

// NewPipelineEngine provides C6.
func NewPipelineEngine(reg *pipeline.Registry) *pipeline.Engine { return pipeline.NewEngine(reg) }

// NewExecutor provides C7.
func NewExecutor(
	family *chunking.Family,
	embedder embedding.Embedder,
	store vectorstore.Store,
	docs state.DocumentStore,
	states state.StateStore,
	b broker.Broker,
	cfg *config.Config,
) *executor.Executor {
	return executor.NewExecutor(family, embedder, store, docs, states, b, cfg.Parallel)
}

// NewIncrementalManager provides C8.
func NewIncrementalManager(
	family *chunking.Family,
	embedder embedding.Embedder,
	store vectorstore.Store,
	docs state.DocumentStore,
	states state.StateStore,
	cfg *config.Config,
) *incremental.Manager {
	return incremental.NewManager(family, embedder, store, docs, states, cfg.Incremental)
}

// NewRetriever provides C10.
func NewRetriever(
	store vectorstore.Store,
	embedder embedding.Embedder,
	reranker rerank.Reranker,
	cfg *config.Config,
) *retrieval.Retriever {
	return retrieval.New(store, embedder, reranker, cfg.Retrieval)
}

// NewService assembles §6's Service from every already-built
// collaborator above.
func NewService(
	storage objectstorage.Storage,
	an *analyzer.Analyzer,
	engine *pipeline.Engine,
	exec *executor.Executor,
	incr *incremental.Manager,
	retriever *retrieval.Retriever,
	docs state.DocumentStore,
	states state.StateStore,
	store vectorstore.Store,
	embedder embedding.Embedder,
	b broker.Broker,
	cacheClient cache.Client,
	cfg *config.Config,
) *service.Service {
	return service.New(storage, an, engine, exec, incr, retriever, docs, states, store, embedder, b, cacheClient, cfg.VectorStore, cfg.Parallel)
}

// RunWorker registers C7's two broker-dispatched handlers onto the
// worker's mux and starts its serve loop for the lifetime of the
// fx.App, following the teacher's StartHTTPServer pattern: run the
// blocking call in its own goroutine, and fold a startup failure into
// an app-wide shutdown rather than leaving the process half-up.
//
// This core exposes no HTTP/RPC surface of its own (§1); the worker
// loop plus the in-process Service API (used directly by ingest/search
// callers in the same process, or by a thin adapter layer this
// exercise leaves out of scope) is the whole runtime surface.
func RunWorker(
	w *broker.Worker,
	family *chunking.Family,
	embedder embedding.Embedder,
	store vectorstore.Store,
	docs state.DocumentStore,
	states state.StateStore,
	cacheClient cache.Client,
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	log *zap.Logger,
) {
	segmentHandler := executor.NewSegmentHandler(family, embedder, store, cacheClient)
	joinHandler := executor.NewJoinHandler(store, docs, states, cacheClient)
	w.Register(executor.TaskSegment, segmentHandler.Handle)
	w.Register(executor.TaskJoin, joinHandler.Handle)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting task worker")
			go func() {
				if err := w.Run(); err != nil {
					log.Error("worker stopped", zap.Error(err))
					if sErr := shutdowner.Shutdown(); sErr != nil {
						log.Error("shutdown failed", zap.Error(sErr))
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			log.Info("stopping task worker")
			w.Shutdown()
			return nil
		},
	})
}
