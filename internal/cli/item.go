package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/query"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "item",
		Aliases: []string{"items"},
		Short:   "Create, change and query items",
	}
	cmd.AddCommand(newItemCreateCmd())
	cmd.AddCommand(newItemUpdateCmd())
	cmd.AddCommand(newItemDeleteCmd())
	cmd.AddCommand(newItemGetCmd())
	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemHistoryCmd())
	return cmd
}

// parseSets turns repeated name=value flags into a raw value map. Only
// the first '=' separates name from value.
func parseSets(sets []string) (map[string]string, error) {
	raw := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, userError(fmt.Errorf("invalid --set %q: want name=value", s))
		}
		raw[strings.TrimSpace(name)] = value
	}
	return raw, nil
}

func newItemCreateCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "create <group>",
		Short: "Create an item in a group",
		Long: `Create validates the --set values against the group's categories and
stores the item. Every invalid field is reported, not just the first.

Example:
  stockroom item create Widgets --set Name=bolt --set Color=red --set Price=1.50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseSets(sets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				r, err := a.store.CreateRecord(cmd.Context(), args[0], raw)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, r)
				}
				fmt.Fprintln(cmd.OutOrStdout(), r.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "name=value for a category (repeatable)")
	return cmd
}

func newItemUpdateCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change some values of an item",
		Long: `Update replaces the values named by --set and keeps the rest. An empty
value clears a nullable category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseSets(sets)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				r, err := a.store.UpdateRecord(cmd.Context(), args[0], raw)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, r)
				}
				printRecord(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "name=value for a category (repeatable)")
	return cmd
}

func newItemDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.store.DeleteRecord(cmd.Context(), args[0]); err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newItemGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				r, err := a.store.GetRecord(args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, r)
				}
				printRecord(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
}

func newItemListCmd() *cobra.Command {
	var (
		group  string
		wheres []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		Long: `List prints items in insertion order. --group restricts to one group and
each --where keeps only items matching a predicate such as Price>=10,
Color=red or Name~bolt.

Example:
  stockroom item list --group Widgets
  stockroom item list --where 'Price<5' --where 'Color!=red'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				recs, err := filterItems(a, group, wheres)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					if recs == nil {
						recs = []types.Record{}
					}
					return printJSON(cmd, recs)
				}
				printRecords(cmd.OutOrStdout(), recs, groupFor(a, recs, group))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "only items of this group")
	cmd.Flags().StringArrayVar(&wheres, "where", nil, "predicate name<op>value (repeatable, all must match)")
	return cmd
}

func filterItems(a *app, group string, wheres []string) ([]types.Record, error) {
	f := query.New(a.store)
	var (
		recs []types.Record
		err  error
	)
	if group != "" {
		recs, err = f.FilterByGroup(group)
		if err != nil {
			return nil, err
		}
	} else {
		recs = slices.Collect(a.store.ListRecords(""))
	}
	for _, w := range wheres {
		matched, err := f.Where(w)
		if err != nil {
			return nil, userError(err)
		}
		ids := make(map[string]bool, len(matched))
		for _, r := range matched {
			ids[r.ID] = true
		}
		recs = slices.DeleteFunc(recs, func(r types.Record) bool { return !ids[r.ID] })
	}
	return recs, nil
}

func newItemHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the change log entries of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				changes := a.store.History(args[0])
				if flags.jsonMode {
					if changes == nil {
						changes = []types.Change{}
					}
					return printJSON(cmd, changes)
				}
				printChanges(cmd.OutOrStdout(), changes)
				return nil
			})
		},
	}
}
