package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories", "characteristic"},
		Short:   "Manage the global pool of categories",
	}
	cmd.AddCommand(newCategoryDefineCmd())
	cmd.AddCommand(newCategoryListCmd())
	cmd.AddCommand(newCategoryGetCmd())
	cmd.AddCommand(newCategoryDeleteCmd())
	return cmd
}

func newCategoryDefineCmd() *cobra.Command {
	var (
		dataType     string
		nullable     bool
		options      []string
		lower, upper float64
	)
	cmd := &cobra.Command{
		Use:   "define <name>",
		Short: "Define a new category",
		Long: `Define registers a typed category in the global pool.

Types: text, number, boolean, date, percentage, price, enum. The aliases
numbers, bool, yes/no, percent and dropdown are accepted too.

Example:
  stockroom category define Name --type text
  stockroom category define Color --type dropdown --options red,green,blue
  stockroom category define Discount --type percentage --min 0 --max 100 --nullable`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := types.ParseDataType(dataType)
			if err != nil {
				return userError(fmt.Errorf("%w: %q", err, dataType))
			}
			extra := types.Constraints{Options: options}
			if cmd.Flags().Changed("min") {
				extra.Min = &lower
			}
			if cmd.Flags().Changed("max") {
				extra.Max = &upper
			}
			return withApp(cmd, func(a *app) error {
				c, err := a.store.Schema().Define(cmd.Context(), args[0], dt, nullable, extra)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, codec.EncodeCharacteristic(c))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Defined %s (%s)\n", c.Name, c.DataType)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dataType, "type", "", "data type (required)")
	cmd.Flags().BoolVar(&nullable, "nullable", false, "allow items to leave the value empty")
	cmd.Flags().StringSliceVar(&options, "options", nil, "comma-separated options for enum categories")
	cmd.Flags().Float64Var(&lower, "min", 0, "inclusive lower bound for numeric categories")
	cmd.Flags().Float64Var(&upper, "max", 0, "inclusive upper bound for numeric categories")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newCategoryListCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Long: `List prints the global pool, or with --group the definitions a group
carries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				cs := a.store.Schema().List()
				if group != "" {
					g, err := a.store.Group(group)
					if err != nil {
						return err
					}
					cs = g.Characteristics
				}
				if flags.jsonMode {
					docs := make([]codec.CharacteristicDoc, len(cs))
					for i, c := range cs {
						docs[i] = codec.EncodeCharacteristic(c)
					}
					return printJSON(cmd, docs)
				}
				printCharacteristics(cmd.OutOrStdout(), cs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "list the definitions of this group")
	return cmd
}

func newCategoryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				c, err := a.store.Schema().Get(args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, codec.EncodeCharacteristic(c))
				}
				printCharacteristics(cmd.OutOrStdout(), []types.Characteristic{c})
				return nil
			})
		},
	}
}

func newCategoryDeleteCmd() *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a category",
		Long: `Delete removes a category from the global pool. A category that groups
still carry is only removed with --cascade, which also strips it from those
groups and their items.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				changed, err := a.store.DeleteCharacteristic(cmd.Context(), args[0], cascade)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]any{"deleted": args[0], "groups": changed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				for _, g := range changed {
					fmt.Fprintf(cmd.OutOrStdout(), "  removed from group %s\n", g)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also remove it from groups that carry it")
	return cmd
}
