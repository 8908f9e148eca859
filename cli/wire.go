package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/itish2003/courserag/config"
	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/services"
	"github.com/itish2003/courserag/vectorstore"
)

// app holds the wired dependency graph shared by every command.
type app struct {
	cfg       *config.AppConfig
	log       *logger.Logger
	index     *vectorstore.Index
	ingestion *services.IngestionService
	docs      *services.DocsRoot
	rag       services.RAGService
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to release resource", "error", err)
		}
	}
	a.log.Sync()
}

// newApp builds everything from cfg. The caller must Close the result.
func newApp(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	embedder, err := a.buildEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	index, err := a.buildIndex(ctx, embedder)
	if err != nil {
		a.Close()
		return nil, err
	}
	completer, err := a.buildCompleter(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions, err := a.buildSessions()
	if err != nil {
		a.Close()
		return nil, err
	}
	docs, err := services.NewDocsRoot(cfg.Docs.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	extractor := services.NewDocumentExtractor(cfg.UnidocLicenseKey, log)
	chunker := services.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	a.index = index
	a.docs = docs
	a.ingestion = services.NewIngestionService(extractor, index, chunker, log)
	a.rag = services.NewRAGService(services.RAGDeps{
		Index:      index,
		Sessions:   sessions,
		Loop:       services.NewConversationLoop(completer, cfg.Conversation.MaxToolRounds, cfg.Conversation.ModelTimeout, log),
		Ingestion:  a.ingestion,
		Docs:       docs,
		MaxResults: cfg.Conversation.MaxResults,
		Log:        log,
	})
	return a, nil
}

func (a *app) buildEmbedder(ctx context.Context) (llm.Embedder, error) {
	ec := a.cfg.Embedding
	switch ec.Provider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, a.cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("create gemini embedder: %w", err)
		}
		return llm.NewGeminiEmbedder(client, ec.Model), nil
	case "openai":
		model, err := llm.NewOpenAIModel(a.cfg.LLM.APIKey, a.cfg.LLM.Model, ec.Model, ec.URL)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
		return llm.NewOpenAIEmbedder(model)
	case "ollama":
		return llm.NewOllamaEmbedder(&http.Client{Timeout: 30 * time.Second}, ec.URL, ec.Model), nil
	case "hashing":
		return llm.NewHashingEmbedder(ec.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
}

func (a *app) buildIndex(ctx context.Context, embedder llm.Embedder) (*vectorstore.Index, error) {
	vc := a.cfg.VectorStore
	var catalog, content vectorstore.Collection
	switch vc.Backend {
	case "memory":
		catalog, content = vectorstore.NewMemoryCollection(), vectorstore.NewMemoryCollection()
	case "chroma":
		client, err := vectorstore.NewChromaClient(vc.ChromaURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		cat, err := vectorstore.NewChromaCollection(ctx, client, vc.CatalogCollection, "Course catalog")
		if err != nil {
			return nil, err
		}
		con, err := vectorstore.NewChromaCollection(ctx, client, vc.ContentCollection, "Course lesson chunks")
		if err != nil {
			return nil, err
		}
		catalog, content = cat, con
		a.log.Info("connected to chroma", "url", vc.ChromaURL)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", vc.Backend)
	}
	return vectorstore.NewIndex(catalog, content, embedder, a.log, vectorstore.Options{
		Timeout:          a.cfg.Conversation.IndexTimeout,
		EmbedConcurrency: vc.EmbedConcurrency,
	}), nil
}

func (a *app) buildCompleter(ctx context.Context) (llm.Completer, error) {
	lc := a.cfg.LLM
	switch lc.Provider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, lc.APIKey)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		a.log.Info("using gemini", "model", lc.Model)
		return llm.NewGeminiCompleter(client, lc.Model, lc.Temperature, lc.MaxTokens), nil
	case "openai":
		model, err := llm.NewOpenAIModel(lc.APIKey, lc.Model, "", lc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		a.log.Info("using openai", "model", lc.Model)
		return llm.NewOpenAICompleter(model, lc.Temperature, lc.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	}
}

func (a *app) buildSessions() (services.SessionStore, error) {
	sc := a.cfg.Session
	switch sc.Backend {
	case "memory":
		return services.NewMemorySessionStore(a.cfg.Conversation.MaxHistory), nil
	case "redis":
		store, err := services.NewRedisSessionStore(sc.RedisAddr, a.cfg.Conversation.MaxHistory, sc.RedisTTL, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}
