package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "group",
		Aliases: []string{"groups"},
		Short:   "Manage item groups",
	}
	cmd.AddCommand(newGroupDefineCmd())
	cmd.AddCommand(newGroupListCmd())
	cmd.AddCommand(newGroupShowCmd())
	cmd.AddCommand(newGroupDeleteCmd())
	return cmd
}

func newGroupDefineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "define <name> <category>...",
		Short: "Define a group from existing categories",
		Long: `Define creates a group holding a copy of the named categories in the
given order. Later changes to the categories do not alter the group.

Example:
  stockroom group define Widgets Name Color Price`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				g, err := a.store.DefineGroup(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, codec.EncodeGroup(g))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Defined group %s with %d categories\n", g.Name, len(g.Characteristics))
				return nil
			})
		},
	}
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				gs := a.store.Groups()
				if flags.jsonMode {
					docs := make([]codec.GroupDoc, len(gs))
					for i, g := range gs {
						docs[i] = codec.EncodeGroup(g)
					}
					return printJSON(cmd, docs)
				}
				printGroups(cmd.OutOrStdout(), gs)
				return nil
			})
		},
	}
}

func newGroupShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a group and its categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				g, err := a.store.Group(args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, codec.EncodeGroup(g))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Group %s (created %s)\n\n", g.Name, codec.EncodeTime(g.CreatedAt))
				printCharacteristics(out, g.Characteristics)
				return nil
			})
		},
	}
}

func newGroupDeleteCmd() *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a group",
		Long: `Delete removes a group. A group that still has items is only removed
with --cascade, which deletes its items too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				n, err := a.store.DeleteGroup(cmd.Context(), args[0], cascade)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]any{"deleted": args[0], "items": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s and %d items\n", args[0], n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete the group's items")
	return cmd
}

// groupFor returns the group every record belongs to, or nil when they
// span several groups.
func groupFor(a *app, recs []types.Record, filter string) *types.Group {
	name := filter
	if name == "" {
		for _, r := range recs {
			if name != "" && r.GroupName != name {
				return nil
			}
			name = r.GroupName
		}
	}
	if name == "" {
		return nil
	}
	g, err := a.store.Group(name)
	if err != nil {
		return nil
	}
	return &g
}
