package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/replsync"
	"github.com/tasklens/tasklens/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync <other-store>",
	Short: "Merge this document with its copy in another store",
	Long: `Merge the configured document with its copy under the same id in
other-store, field-wise last-writer-wins, and persist the result to both
stores. With --watch, keeps reconciling on an interval until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("watch", false, "keep reconciling on --interval until Ctrl+C")
	syncCmd.Flags().Duration("interval", 2*time.Minute, "reconciliation interval for --watch")
}

func runSync(cmd *cobra.Command, args []string) error {
	sa, err := openStore()
	if err != nil {
		return err
	}
	defer sa.Close()

	sb, err := store.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer sb.Close()

	projections, err := openProjections()
	if err != nil {
		return err
	}
	defer projections.Stop()

	a := replsync.Replica{Store: sa, DocID: docID}
	b := replsync.Replica{Store: sb, DocID: docID}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		merged, err := replsync.Sync(context.Background(), a, b, projections)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		fmt.Printf("merged, %d tasks\n", len(merged.Tasks))
		return nil
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	worker := replsync.NewWorker(a, b, projections, interval)
	worker.Start(context.Background())
	fmt.Printf("syncing every %s, press Ctrl+C to stop\n", interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	worker.Stop()
	fmt.Println("stopped")
	return nil
}
