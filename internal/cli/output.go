package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/internal/coerce"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal output: %w", err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printCharacteristics(w io.Writer, cs []types.Characteristic) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTYPE\tNULLABLE\tCONSTRAINTS")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Name, c.DataType, c.Nullable, constraints(c))
	}
	tw.Flush()
}

// constraints renders the options or bounds of c, or "-" if it has none.
func constraints(c types.Characteristic) string {
	var parts []string
	if len(c.Options) > 0 {
		parts = append(parts, strings.Join(c.Options, "|"))
	}
	if c.Min != nil {
		parts = append(parts, "min="+coerce.Format(types.NumberValue(types.DataTypeNumber, *c.Min)))
	}
	if c.Max != nil {
		parts = append(parts, "max="+coerce.Format(types.NumberValue(types.DataTypeNumber, *c.Max)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func printGroups(w io.Writer, gs []types.Group) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tCHARACTERISTICS\tCREATED")
	for _, g := range gs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Name, strings.Join(g.Names(), ", "), codec.EncodeTime(g.CreatedAt))
	}
	tw.Flush()
}

// printRecords prints one row per record. Columns are the characteristics
// of the given group when every record belongs to it, otherwise a single
// VALUES column of name=value pairs.
func printRecords(w io.Writer, recs []types.Record, g *types.Group) {
	tw := newTable(w)
	if g != nil {
		fmt.Fprintf(tw, "ID\t%s\n", strings.ToUpper(strings.Join(g.Names(), "\t")))
		for _, r := range recs {
			cells := make([]string, 0, len(g.Characteristics))
			for _, name := range g.Names() {
				cells = append(cells, cell(r, name))
			}
			fmt.Fprintf(tw, "%s\t%s\n", r.ID, strings.Join(cells, "\t"))
		}
		tw.Flush()
		return
	}
	fmt.Fprintln(tw, "ID\tGROUP\tVALUES")
	for _, r := range recs {
		pairs := make([]string, 0, len(r.Values))
		for _, name := range r.Names() {
			pairs = append(pairs, name+"="+cell(r, name))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.GroupName, strings.Join(pairs, " "))
	}
	tw.Flush()
}

func cell(r types.Record, name string) string {
	v, ok := r.Value(name)
	if !ok || v.Null {
		return "-"
	}
	return coerce.Format(v)
}

func printRecord(w io.Writer, r types.Record) {
	tw := newTable(w)
	fmt.Fprintf(tw, "id\t%s\n", r.ID)
	fmt.Fprintf(tw, "group\t%s\n", r.GroupName)
	for _, name := range r.Names() {
		fmt.Fprintf(tw, "%s\t%s\n", name, cell(r, name))
	}
	fmt.Fprintf(tw, "created\t%s\n", codec.EncodeTime(r.CreatedAt))
	fmt.Fprintf(tw, "updated\t%s\n", codec.EncodeTime(r.UpdatedAt))
	tw.Flush()
}

func printChanges(w io.Writer, cs []types.Change) {
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tKIND\tRECORD\tGROUP\tAT\tREVERTS")
	for _, c := range cs {
		reverts := "-"
		if c.Reverts != 0 {
			reverts = fmt.Sprint(c.Reverts)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.Seq, c.Kind, c.RecordID, c.Group, codec.EncodeTime(c.At), reverts)
	}
	tw.Flush()
}
