// Package cmd implements the sweeper command line. The sweeper runs the
// generation engine directly against the configured store, without going
// through the HTTP server. It is meant to be invoked by cron or a Cloud
// Scheduler job.
package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/expensaur/backend/internal/config"
	"github.com/expensaur/backend/internal/service"
	"github.com/expensaur/backend/internal/store"
)

var (
	verbose bool
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Recurring-expense maintenance jobs",
	Long: `Sweeper runs the recurring-expense engine's periodic jobs: generating
due expense instances from active templates and listing upcoming reminders.

Store selection follows the same environment variables as the server:
USE_MEMORY_STORE=true for a local in-memory store, otherwise
GOOGLE_CLOUD_PROJECT selects the Firestore project.

Examples:
  sweeper process
  sweeper process --as-of 2024-04-05
  sweeper reminders --window-days 14`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newService wires a Service against the configured store. The returned
// cleanup func closes the Firestore client when one was opened.
func newService(ctx context.Context) (*service.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	if cfg.UseMemoryStore {
		return service.New(store.NewMemoryStore(), log), func() {}, nil
	}

	if cfg.ProjectID == "" {
		return nil, nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT must be set when using Firestore")
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("creating Firestore client: %w", err)
	}
	return service.New(store.NewFirestoreStore(client), log), func() { client.Close() }, nil
}
