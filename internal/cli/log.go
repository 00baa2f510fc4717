package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/query"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func newLogCmd() *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the change log",
		Long: `Log prints every item mutation in order. --since N shows only entries
after sequence number N.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				changes := []types.Change{}
				for _, c := range a.store.Changes() {
					if c.Seq > since {
						changes = append(changes, c)
					}
				}
				if flags.jsonMode {
					return printJSON(cmd, changes)
				}
				printChanges(cmd.OutOrStdout(), changes)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "only entries with a greater sequence number")
	return cmd
}

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the most recent item change",
		Long: `Undo reverts the newest change that has not been undone yet. The revert
is itself recorded in the log, so undo walks backwards through history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				c, err := a.store.Undo(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reverted change %d (%s %s)\n", c.Reverts, c.Kind, c.RecordID)
				return nil
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reload all state from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.store.Reload(cmd.Context()); err != nil {
					return err
				}
				n := map[string]int{
					"categories": a.store.Schema().Len(),
					"groups":     len(a.store.Groups()),
					"items":      a.store.Len(),
					"changes":    len(a.store.Changes()),
				}
				if flags.jsonMode {
					return printJSON(cmd, n)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d categories, %d groups, %d items, %d changes\n",
					n["categories"], n["groups"], n["items"], n["changes"])
				return nil
			})
		},
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count items per group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				sums := query.New(a.store).Summarize()
				if flags.jsonMode {
					return printJSON(cmd, sums)
				}
				for _, s := range sums {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
}
