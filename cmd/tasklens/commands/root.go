package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/cache"
	"github.com/tasklens/tasklens/internal/config"
	"github.com/tasklens/tasklens/internal/store"
	"github.com/tasklens/tasklens/internal/tlmodel"
)

var (
	storePath string
	docID     string
)

var rootCmd = &cobra.Command{
	Use:   "tasklens",
	Short: "Prioritize and balance a tree of tasks",
	Long: `tasklens applies mutations to a TaskLens document, projects its
current priority order and credit balance, and reconciles two replicas.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the document store (defaults to config)")
	rootCmd.PersistentFlags().StringVar(&docID, "doc", "default", "document id")
}

// openStore opens the configured store, falling back to internal/config's
// default path when --store is unset.
func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := storePath
	if path == "" {
		path = cfg.Store.Path
	}
	return store.Open(path)
}

func openProjections() (*cache.Projections, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	ttl := cfg.Cache.TTL
	return cache.NewProjections(ttl), nil
}

// loadOrNew loads the configured document, or returns a fresh empty one if
// it has never been saved.
func loadOrNew(ctx context.Context, s *store.Store) (*tlmodel.DocumentState, cache.Revision, error) {
	d, rev, ok, err := s.Load(ctx, docID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return tlmodel.NewDocumentState(), 0, nil
	}
	return d, rev, nil
}
