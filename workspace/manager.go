// Package workspace wires the ingestion, index and responder components into
// a per-user service. Nothing is shared between users except the model
// clients and, for the Postgres backend, the connection pool.
package workspace

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
	"github.com/fabfab/quizrag/database"
	"github.com/fabfab/quizrag/embeddings"
	"github.com/fabfab/quizrag/index"
	"github.com/fabfab/quizrag/ingestion"
	"github.com/fabfab/quizrag/knowledge"
	"github.com/fabfab/quizrag/llm"
	"github.com/fabfab/quizrag/logger"
	"github.com/fabfab/quizrag/rag"
)

// Manager builds per-user services from shared configuration.
type Manager struct {
	cfg      config.Config
	embedder embeddings.Embedder
	llm      llm.Client
	splitter *ingestion.Splitter
	pool     *pgxpool.Pool
	graph    *knowledge.Graph
	logger   *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Manager)

// WithPostgres stores collections in the shared pgvector tables.
func WithPostgres(pool *pgxpool.Pool) Option {
	return func(m *Manager) { m.pool = pool }
}

// WithGraph records collection lineage in Neo4j.
func WithGraph(graph *knowledge.Graph) Option {
	return func(m *Manager) { m.graph = graph }
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.logger = logger.OrNop(log) }
}

// NewManager validates cfg and prepares the shared backend. Invalid chunking
// parameters fail here, before any document is processed.
func NewManager(ctx context.Context, cfg config.Config, embedder embeddings.Embedder, client llm.Client, opts ...Option) (*Manager, error) {
	const op = "new workspace manager"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil || client == nil {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "embedder and llm client are required")
	}

	splitter, err := ingestion.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		embedder: embedder,
		llm:      client,
		splitter: splitter,
		logger:   logger.Nop(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.IndexBackend == config.BackendPostgres {
		if m.pool == nil {
			return nil, apperr.Newf(apperr.ErrConfiguration, op, "postgres backend selected without a connection pool")
		}
		if err := database.EnsureRAGSchema(ctx, m.pool, cfg.Embeddings.Dimension); err != nil {
			return nil, apperr.Classify(apperr.ErrIndex, op, err)
		}
	}

	return m, nil
}

// userLock returns the mutex serialising ingests for one user.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// Open returns the service for userID, creating the user's directories on
// first use. The caller must Close it.
func (m *Manager) Open(ctx context.Context, userID string) (*Service, error) {
	const op = "open workspace"

	layout, err := LayoutFor(m.cfg.DataDir, userID)
	if err != nil {
		return nil, err
	}
	if err := layout.ensure(); err != nil {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "create user directories: %v", err)
	}

	log := m.logger.With("user_id", userID)

	extractor, err := ingestion.NewTextExtractor(layout.Documents, m.cfg.AllowedExtensions, log)
	if err != nil {
		return nil, err
	}

	store, err := m.openStore(ctx, userID, layout)
	if err != nil {
		return nil, apperr.Classify(apperr.ErrIndex, op, err)
	}
	ix := index.New(store, m.embedder, m.cfg.IndexTimeout, log)

	responder, err := rag.NewResponder(ix, m.llm, m.cfg.RetrievalK, m.cfg.ModelTimeout, log)
	if err != nil {
		_ = ix.Close()
		return nil, err
	}

	return &Service{
		userID:    userID,
		layout:    layout,
		ingest:    ingestion.NewService(extractor, m.splitter, log),
		index:     ix,
		responder: responder,
		graph:     m.graph,
		lock:      m.userLock(userID),
		logger:    log,
	}, nil
}

func (m *Manager) openStore(ctx context.Context, userID string, layout Layout) (index.VectorStore, error) {
	if m.cfg.IndexBackend == config.BackendPostgres {
		return index.NewPostgresStore(m.pool, userID), nil
	}
	return index.OpenSQLiteStore(ctx, layout.Embeddings)
}
