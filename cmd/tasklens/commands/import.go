package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/wire"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the document with a wire-format JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	d, err := wire.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	rev, err := s.Save(context.Background(), docID, d)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	fmt.Printf("imported %d tasks, revision %d\n", len(d.Tasks), rev)
	return nil
}
