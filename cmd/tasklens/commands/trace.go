package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/priority"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
	"github.com/tasklens/tasklens/internal/visibility"
)

var traceCmd = &cobra.Command{
	Use:   "trace <id>",
	Short: "Explain one task's computed priority factor by factor",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	d, _, err := loadOrNew(ctx, s)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	id := tlmodel.TaskID(args[0])
	opts := priority.Options{Now: tltime.Now()}
	t, ok := priority.Trace(d, id, visibility.ViewFilter{}, opts)
	if !ok {
		return fmt.Errorf("no such task: %s", id)
	}

	fmt.Printf("task:                   %s\n", t.TaskID)
	fmt.Printf("priority:               %.6f\n", t.Priority)
	fmt.Printf("normalized_importance:  %.6f\n", t.NormalizedImportance)
	fmt.Printf("importance_chain:       %v\n", t.ImportanceChain)
	fmt.Printf("effective_credits:      %.6f\n", t.EffectiveCredits)
	fmt.Printf("feedback_factor:        %.6f\n", t.FeedbackFactor)
	fmt.Printf("feedback_target_pct:    %.4f\n", t.FeedbackTargetPercent)
	fmt.Printf("feedback_actual_pct:    %.4f\n", t.FeedbackActualPercent)
	fmt.Printf("lead_time_factor:       %.6f\n", t.LeadTimeFactor)
	fmt.Printf("lead_time_stage:        %s\n", t.LeadTimeStage)
	fmt.Printf("is_container:           %t\n", t.IsContainer)
	fmt.Printf("visibility:             %+v\n", t.Visibility)
	return nil
}
