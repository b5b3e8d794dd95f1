// Package app wires configured adapters into the chat use cases.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/0xcro3dile/ragchat-go/internal/adapters/embedding"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/history"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/llm"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/splitter"
	"github.com/0xcro3dile/ragchat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/ragchat-go/internal/config"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	httpapi "github.com/0xcro3dile/ragchat-go/internal/infrastructure/http"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

// Provider pairs a chat model with the embedder used for its sessions.
type Provider struct {
	ports.LLMService
	ports.EmbeddingService
	name string
}

// Name is the configured chat provider name.
func (p *Provider) Name() string { return p.name }

var _ ports.Provider = (*Provider)(nil)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Registry *config.Registry
	Provider *Provider
	Loader   *loader.MultiLoader
	Sessions *usecases.SessionManager

	log     logging.Logger
	closers []func() error
}

// New builds every component described by cfg and reg.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, log logging.Logger) (*App, error) {
	log = logging.OrNop(log)
	a := &App{Config: cfg, Registry: reg, log: log}

	provider, err := a.openProvider(ctx)
	if err != nil {
		return nil, err
	}
	a.Provider = provider

	split, err := splitter.NewRecursiveSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.Loader = loader.NewMultiLoader()

	stores, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := a.openHistory(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	ingest := usecases.NewIngestUseCase(a.Loader, split, provider, stores, usecases.IngestOptions{
		BatchSize:   cfg.Ingest.EmbedBatchSize,
		Concurrency: cfg.Ingest.EmbedConcurrency,
	}, log)

	a.Sessions = usecases.NewSessionManager(
		ingest,
		provider,
		usecases.NewQuestionRewriter(provider, cfg.History.MaxTurns, log),
		usecases.NewAnswerGenerator(provider, cfg.History.MaxTurns),
		usecases.NewQueryUseCase(provider, cfg.Retrieval.ContextSeparator),
		hist,
		usecases.SessionOptions{
			TopK:             cfg.Retrieval.TopK,
			ContextSeparator: cfg.Retrieval.ContextSeparator,
		},
		log,
	)
	return a, nil
}

func (a *App) openProvider(ctx context.Context) (*Provider, error) {
	reg := a.Registry
	chatCfg, err := reg.Get(reg.DefaultProvider)
	if err != nil {
		return nil, err
	}
	chat, err := llm.Open(ctx, spec(reg.DefaultProvider, chatCfg))
	if err != nil {
		return nil, err
	}

	embedCfg, err := reg.Get(reg.EmbeddingProvider)
	if err != nil {
		return nil, err
	}

	var emb ports.EmbeddingService
	switch {
	case embedCfg.ProviderName == config.HashingVendor:
		emb = embedding.NewHashingEmbedder(embedCfg.Dimensions)
	default:
		backend := chat
		if reg.EmbeddingProvider != reg.DefaultProvider {
			if backend, err = llm.Open(ctx, spec(reg.EmbeddingProvider, embedCfg)); err != nil {
				return nil, err
			}
		}
		if backend.Embedder == nil {
			a.log.Warn("provider %s cannot embed; ingestion will fail", reg.EmbeddingProvider)
			emb = embedding.Unsupported{Provider: reg.EmbeddingProvider}
			break
		}
		emb, err = embedding.NewLangChainEmbedder(reg.EmbeddingProvider, backend.Embedder, embedding.Options{
			BatchSize: a.Config.Ingest.EmbedBatchSize,
			Attempts:  uint(a.Config.Ingest.EmbedRetries),
		}, a.log)
		if err != nil {
			return nil, err
		}
	}

	a.log.Info("chat provider %s (%s %s), embeddings from %s", reg.DefaultProvider, chatCfg.ProviderName, chatCfg.Model, reg.EmbeddingProvider)
	return &Provider{
		LLMService:       llm.NewChatModel(reg.DefaultProvider, chat.Model, a.log),
		EmbeddingService: emb,
		name:             reg.DefaultProvider,
	}, nil
}

func spec(name string, p config.ProviderConfig) llm.Spec {
	return llm.Spec{
		Name:           name,
		Vendor:         p.ProviderName,
		Model:          p.Model,
		EmbeddingModel: p.EmbeddingModel,
		Endpoint:       p.Endpoint,
		APIKey:         p.APIKey(),
	}
}

func (a *App) openStores(ctx context.Context) (ports.VectorStoreFactory, error) {
	switch a.Config.Store.Backend {
	case "sqlite":
		db, err := vectordb.OpenSQLite(a.Config.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.log.Info("vector index at %s", a.Config.Store.SQLitePath)
		if err := a.dropOrphans(ctx, db); err != nil {
			return nil, err
		}
		return db, nil
	default:
		return vectordb.InMemoryFactory{}, nil
	}
}

// dropOrphans clears collections left by sessions of an earlier process.
// Sessions live in memory, so nothing can reach them after a restart.
func (a *App) dropOrphans(ctx context.Context, db *vectordb.SQLiteDB) error {
	names, err := db.Collections(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		store, err := db.NewStore(ctx, name)
		if err != nil {
			return err
		}
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("dropping orphaned collection %s: %w", name, err)
		}
	}
	if len(names) > 0 {
		a.log.Warn("dropped %d orphaned collections from %s", len(names), a.Config.Store.SQLitePath)
	}
	return nil
}

func (a *App) openHistory(ctx context.Context) (ports.HistoryStore, error) {
	switch a.Config.History.Backend {
	case "redis":
		rc := a.Config.History.Redis
		store := history.NewRedisStore(history.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			TTL:      rc.TTL,
		})
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return history.NewMemoryStore(), nil
	}
}

// Server builds the HTTP API over the session manager.
func (a *App) Server() *httpapi.Server {
	s := a.Config.Server
	return httpapi.NewServer(a.Sessions, httpapi.Options{
		Addr:            s.Addr,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		UploadDir:       s.UploadDir,
		MaxUploadMB:     s.MaxUploadMB,
	}, a.log)
}

// RunInbox watches dir for dropped documents until ctx ends. An empty dir
// falls back to the configured inbox.
func (a *App) RunInbox(ctx context.Context, dir string) error {
	if dir == "" {
		dir = a.Config.Inbox.Dir
	}
	if dir == "" {
		return errors.New("no inbox directory configured")
	}

	watcher, err := filewatcher.NewFSNotifyWatcher(a.Loader.SupportedExtensions(), a.log)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	inbox := usecases.NewInboxUseCase(watcher, a.Sessions, a.Config.Inbox.Settle, a.log)
	return inbox.Run(ctx, dir)
}

// Close tears down every session, then the shared backends.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if a.Sessions != nil {
		if err := a.Sessions.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing sessions: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (a *App) closeAll() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
