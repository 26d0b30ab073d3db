package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/priority"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
	"github.com/tasklens/tasklens/internal/visibility"
)

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Print the document's current Do list, ranked",
	Args:  cobra.NoArgs,
	RunE:  runPrioritize,
}

func init() {
	rootCmd.AddCommand(prioritizeCmd)
	prioritizeCmd.Flags().String("place", "", "restrict to tasks at this place id")
	prioritizeCmd.Flags().Bool("include-hidden", false, "include tasks the visibility filter would otherwise drop")
	prioritizeCmd.Flags().String("mode", string(priority.ModeDoList), "DoList or PlanOutline")
}

func runPrioritize(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	projections, err := openProjections()
	if err != nil {
		return err
	}
	defer projections.Stop()

	ctx := context.Background()
	d, rev, err := loadOrNew(ctx, s)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	var filter visibility.ViewFilter
	if place, _ := cmd.Flags().GetString("place"); place != "" {
		id := tlmodel.PlaceID(place)
		filter.PlaceID = &id
	}
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")
	mode, _ := cmd.Flags().GetString("mode")

	opts := priority.Options{
		Mode:          priority.Mode(mode),
		IncludeHidden: includeHidden,
		Now:           tltime.Now(),
	}

	tasks := projections.Prioritize(d, rev, filter, opts)
	if len(tasks) == 0 {
		fmt.Println("(nothing to do)")
		return nil
	}
	for i, t := range tasks {
		due := "-"
		if t.EffectiveDueDate != nil {
			due = humanize.Time(t.EffectiveDueDate.Time())
		}
		fmt.Printf("%3d  %.4f  %-8s  %-40s  due %s\n", i+1, t.Priority, t.Status, t.Title, due)
	}
	return nil
}
