package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/internal/dispatch"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a mutation to the document (create, update, delete, complete, move, ...)",
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.AddCommand(applyCreateCmd, applyCompleteCmd, applyDeleteCmd, applyMoveCmd,
		applyUpdateCmd, applyCreatePlaceCmd, applyRefreshLifecycleCmd)
}

// withAction loads the document, applies action, and persists the result,
// printing the dispatcher's error verbatim on failure (dispatch.Error's
// Kind/Action/Detail are already a complete diagnostic).
func withAction(action dispatch.Action) error {
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

	if err := dispatch.Apply(d, action); err != nil {
		return err
	}

	rev, err := s.Save(ctx, docID, d)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	fmt.Printf("ok, revision %d\n", rev)
	return nil
}

var applyCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentFlag, _ := cmd.Flags().GetString("parent")
		var parentID *tlmodel.TaskID
		if parentFlag != "" {
			p := tlmodel.TaskID(parentFlag)
			parentID = &p
		}
		id := tlmodel.NewTaskID()
		err := withAction(dispatch.Action{CreateTask: &dispatch.CreateTask{
			ID:       id,
			ParentID: parentID,
			Title:    args[0],
		}})
		if err != nil {
			return err
		}
		fmt.Println("id:", id)
		return nil
	},
}

var applyCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task done, decaying its own credits and adding its credit increment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAction(dispatch.Action{CompleteTask: &dispatch.CompleteTask{
			ID:  tlmodel.TaskID(args[0]),
			Now: tltime.Now(),
		}})
	},
}

var applyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAction(dispatch.Action{DeleteTask: &dispatch.DeleteTask{ID: tlmodel.TaskID(args[0])}})
	},
}

var applyMoveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Move a task to a new parent, or to root with --parent=\"\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentFlag, _ := cmd.Flags().GetString("parent")
		var parentID *tlmodel.TaskID
		if parentFlag != "" {
			p := tlmodel.TaskID(parentFlag)
			parentID = &p
		}
		return withAction(dispatch.Action{MoveTask: &dispatch.MoveTask{
			ID:          tlmodel.TaskID(args[0]),
			NewParentID: parentID,
		}})
	},
}

var applyUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Patch a task's title, notes, importance, credit increment, or sequential flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates := dispatch.TaskUpdates{}
		if v, _ := cmd.Flags().GetString("title"); cmd.Flags().Changed("title") {
			updates.Title = &v
		}
		if v, _ := cmd.Flags().GetString("notes"); cmd.Flags().Changed("notes") {
			updates.Notes = &v
		}
		if v, _ := cmd.Flags().GetFloat64("importance"); cmd.Flags().Changed("importance") {
			updates.Importance = &v
		}
		if v, _ := cmd.Flags().GetFloat64("credit-increment"); cmd.Flags().Changed("credit-increment") {
			updates.CreditInc = &v
		}
		if v, _ := cmd.Flags().GetFloat64("desired-credits"); cmd.Flags().Changed("desired-credits") {
			updates.DesiredCredit = &v
		}
		if v, _ := cmd.Flags().GetBool("sequential"); cmd.Flags().Changed("sequential") {
			updates.IsSequential = &v
		}
		return withAction(dispatch.Action{UpdateTask: &dispatch.UpdateTask{
			ID:      tlmodel.TaskID(args[0]),
			Updates: updates,
		}})
	},
}

func init() {
	applyUpdateCmd.Flags().String("title", "", "new title")
	applyUpdateCmd.Flags().String("notes", "", "new notes")
	applyUpdateCmd.Flags().Float64("importance", 0, "new importance, 0-1")
	applyUpdateCmd.Flags().Float64("credit-increment", 0, "new credit_increment")
	applyUpdateCmd.Flags().Float64("desired-credits", 0, "new desired_credits")
	applyUpdateCmd.Flags().Bool("sequential", false, "new is_sequential")

	applyCreateCmd.Flags().String("parent", "", "parent task id, empty for a new root")
	applyMoveCmd.Flags().String("parent", "", "new parent task id, empty to move to root")
}

var applyCreatePlaceCmd = &cobra.Command{
	Use:   "create-place <name>",
	Short: "Create a place with always-open hours",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := tlmodel.NewPlaceID()
		err := withAction(dispatch.Action{CreatePlace: &dispatch.CreatePlace{
			ID:   id,
			Name: args[0],
			Hours: tlmodel.OpenHours{
				Mode: tlmodel.OpenHoursAlwaysOpen,
			},
		}})
		if err != nil {
			return err
		}
		fmt.Println("id:", id)
		return nil
	},
}

var applyRefreshLifecycleCmd = &cobra.Command{
	Use:   "refresh-lifecycle",
	Short: "Acknowledge completed tasks and wake sleeping routines as of now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAction(dispatch.Action{RefreshLifecycle: &dispatch.RefreshLifecycle{Now: tltime.Now()}})
	},
}
