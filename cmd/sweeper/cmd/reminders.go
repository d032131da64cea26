package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var windowDays int

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "List reminders firing within the window",
	RunE:  runReminders,
}

func init() {
	rootCmd.AddCommand(remindersCmd)

	remindersCmd.Flags().IntVar(&windowDays, "window-days", 7, "look-ahead window in days")
}

func runReminders(cobraCmd *cobra.Command, args []string) error {
	ctx := cobraCmd.Context()

	if windowDays < 1 {
		return fmt.Errorf("--window-days must be at least 1")
	}

	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	reminders, err := svc.UpcomingReminders(ctx, time.Now(), time.Duration(windowDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("listing reminders: %w", err)
	}

	if len(reminders) == 0 {
		fmt.Println("no reminders due")
		return nil
	}
	for _, r := range reminders {
		fmt.Printf("%s  %-24s %10s  (due %s)\n",
			r.FireDate.Format("2006-01-02"),
			r.Merchant,
			r.Amount,
			r.DueDate.Format("2006-01-02"))
	}
	return nil
}
