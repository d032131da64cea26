package cmd

import (
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/spf13/cobra"

	"github.com/expensaur/backend/internal/service"
)

var (
	asOf          string
	retryAttempts uint
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Generate due expense instances from active templates",
	Long: `Process walks every active template and materializes expense instances
for each due date up to the cutoff, advancing the template's next due date
past the cutoff. Running it twice for the same cutoff creates nothing new,
so a failed run can simply be retried.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&asOf, "as-of", "", "cutoff date (YYYY-MM-DD, default today)")
	processCmd.Flags().UintVar(&retryAttempts, "retry-attempts", 3, "attempts before giving up on a failed sweep")
}

func runProcess(cobraCmd *cobra.Command, args []string) error {
	ctx := cobraCmd.Context()

	cutoff := time.Now()
	if asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
		}
		cutoff = parsed
	}

	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// Generation is idempotent for a fixed cutoff, so re-running the whole
	// sweep on failure is safe.
	var result *service.GenerateResult
	err = retry.Do(
		func() error {
			var sweepErr error
			result, sweepErr = svc.GenerateDue(ctx, cutoff)
			return sweepErr
		},
		retry.Attempts(retryAttempts),
		retry.Delay(5*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("generation sweep failed: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"ended":     result.Ended,
		"created":   len(result.Created),
		"errors":    len(result.Errors),
	}).Info("sweep complete")

	for id, tplErr := range result.Errors {
		log.WithField("template_id", id).WithError(tplErr).Warn("template failed during sweep")
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d templates failed during sweep", len(result.Errors))
	}
	return nil
}
