package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pboyd/buddy"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the size classes of an arena",
		Long: `The classes command prints every block class an arena of the given
size uses, with the block size and the largest request each class serves.

Example:
  buddyctl classes --max-class 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(cmd)
		},
	}
}

type classRow struct {
	Class      int `json:"class"`
	BlockSize  int `json:"block_size"`
	MaxPayload int `json:"max_payload"`
}

func runClasses(cmd *cobra.Command) error {
	a := buddy.New(buddy.Options{MaxClass: maxClass, Source: buddy.SourceHeap})
	if a == nil {
		return fmt.Errorf("max-class %d is out of range", maxClass)
	}

	var rows []classRow
	for k := buddy.MinClass; k <= a.MaxClass(); k++ {
		rows = append(rows, classRow{
			Class:      k,
			BlockSize:  1 << k,
			MaxPayload: 1<<k - buddy.HeaderSize,
		})
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, rows)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "class\tblock\tmax request\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t\n", r.Class, r.BlockSize, r.MaxPayload)
	}
	return tw.Flush()
}
