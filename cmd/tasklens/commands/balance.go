package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/tltime"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print each root's credit standing",
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
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

	data := projections.Balance(d, rev, tltime.Now())
	if len(data.Items) == 0 {
		fmt.Println("(no roots to balance)")
		return nil
	}
	fmt.Printf("total effective credits: %.4f\n\n", data.TotalCredits)
	for _, item := range data.Items {
		title := string(item.RootID)
		if t, ok := d.Tasks[item.RootID]; ok {
			title = t.Title
		}
		starving := ""
		if item.IsStarving {
			starving = "  STARVING"
		}
		fmt.Printf("%-40s  target %6.2f%%  actual %6.2f%%  credit %.4f%s\n",
			title, item.TargetPercent*100, item.ActualPercent*100, item.AggregatedCredit, starving)
	}
	return nil
}
