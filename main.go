package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
	"github.com/fabfab/quizrag/database"
	"github.com/fabfab/quizrag/embeddings"
	"github.com/fabfab/quizrag/knowledge"
	"github.com/fabfab/quizrag/llm"
	"github.com/fabfab/quizrag/logger"
	"github.com/fabfab/quizrag/workspace"
)

// managerFactory builds the workspace manager and returns a cleanup func
// releasing whatever connections it opened.
type managerFactory func(ctx context.Context, cfg config.Config, log *logger.Logger) (*workspace.Manager, func(), error)

type app struct {
	cfg        config.Config
	logger     *logger.Logger
	newManager managerFactory
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Debug("configuration loaded", "settings", cfg.String())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{cfg: cfg, logger: log, newManager: buildManager}
	root := a.rootCmd()
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Sync()
		os.Exit(1)
	}
}

// buildManager connects the configured model providers and backends.
func buildManager(ctx context.Context, cfg config.Config, log *logger.Logger) (*workspace.Manager, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	opts := []workspace.Option{workspace.WithLogger(log)}

	if cfg.IndexBackend == config.BackendPostgres {
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, apperr.New(apperr.ErrConfiguration, "postgres connection", err)
		}
		closers = append(closers, pool.Close)
		opts = append(opts, workspace.WithPostgres(pool))
	}

	if cfg.GraphEnabled() {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			cleanup()
			return nil, nil, apperr.New(apperr.ErrConfiguration, "neo4j connection", err)
		}
		closers = append(closers, func() { _ = driver.Close(context.Background()) })
		opts = append(opts, workspace.WithGraph(knowledge.NewGraph(driver)))
	}

	manager, err := workspace.NewManager(ctx, cfg, embedder, client, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return manager, cleanup, nil
}

// withService opens the pipeline for the --user flag and runs fn against it.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *workspace.Service) error) error {
	ctx := cmd.Context()

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return errors.New("--user is required")
	}
	manager, cleanup, err := a.newManager(ctx, a.cfg, a.logger)
	if err != nil {
		return a.fail(cmd, err)
	}
	defer cleanup()

	svc, err := manager.Open(ctx, userID)
	if err != nil {
		return a.fail(cmd, err)
	}
	defer svc.Close()

	if err := fn(ctx, svc); err != nil {
		return a.fail(cmd, err)
	}
	return nil
}

// fail logs the full error and returns the message meant for the user.
// Errors outside the taxonomy are input mistakes and are shown as is.
func (a *app) fail(cmd *cobra.Command, err error) error {
	kind := apperr.KindOf(err)
	a.logger.Error("command failed", "command", cmd.Name(), "kind", fmt.Sprint(kind), "error", err)
	if kind == nil {
		return err
	}
	return errors.New(apperr.UserMessage(err))
}
