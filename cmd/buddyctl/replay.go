package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pboyd/buddy"
	"github.com/pboyd/buddy/internal/trace"
	"github.com/spf13/cobra"
)

var (
	replayHeap      bool
	replayPoison    bool
	replayCheckEach bool
	replayKeep      bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().BoolVar(&replayHeap, "heap", false, "Allocate the arena on the Go heap instead of mapping it")
	cmd.Flags().BoolVar(&replayPoison, "poison", true, "Fill freed blocks with 0xDD")
	cmd.Flags().BoolVar(&replayCheckEach, "check-each", false, "Verify the arena after every operation")
	cmd.Flags().BoolVar(&replayKeep, "keep", false, "Don't free allocations still live at the end of the script")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [script]",
		Short: "Replay an allocation script",
		Long: `The replay command runs an allocation script against a fresh arena.
Each line is one of:

  alloc   <id> <size>
  calloc  <id> <count> <size>
  realloc <id> <size>
  free    <id>
  check

Failed allocations are reported and the replay continues. Freeing an unknown
id, corrupted contents or a failed check stop the replay.

Example:
  buddyctl replay workload.txt --max-class 20
  buddyctl replay --check-each < workload.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args)
		},
	}
}

type replayReport struct {
	Ops    int          `json:"ops"`
	Failed int          `json:"failed"`
	Live   int          `json:"live"`
	Stats  buddy.Stats  `json:"stats"`
	Errors []failedStep `json:"errors,omitempty"`
}

type failedStep struct {
	Line  int    `json:"line"`
	Op    string `json:"op"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	ops, err := trace.Parse(in)
	if err != nil {
		return err
	}

	source := buddy.SourceOS
	if replayHeap {
		source = buddy.SourceHeap
	}
	a := buddy.New(buddy.Options{
		MaxClass: maxClass,
		Source:   source,
		Poison:   replayPoison,
		Logger:   newLogger(cmd.ErrOrStderr()),
	})
	if a == nil {
		return fmt.Errorf("max-class %d is out of range", maxClass)
	}
	defer a.Close()

	r := trace.NewReplayer(a, newLogger(cmd.ErrOrStderr()))
	r.CheckEach = replayCheckEach

	res, err := r.Run(ops)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	live := r.Live()
	if !replayKeep {
		if err := r.FreeAll(); err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
	}
	if err := a.Check(); err != nil {
		return fmt.Errorf("arena inconsistent after replay: %w", err)
	}

	report := replayReport{
		Ops:    len(ops),
		Failed: res.Failed,
		Live:   live,
		Stats:  a.Stats(),
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			report.Errors = append(report.Errors, failedStep{
				Line:  o.Op.Line,
				Op:    o.Op.Kind.String(),
				ID:    o.Op.ID,
				Error: o.Err.Error(),
			})
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, report)
	}
	return printReport(out, report)
}

func printReport(w io.Writer, r replayReport) error {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "line %d: %s %s: %s\n", e.Line, e.Op, e.ID, e.Error)
	}

	s := r.Stats
	fmt.Fprintf(w, "ops: %d, failed: %d, live at end: %d\n", r.Ops, r.Failed, r.Live)
	fmt.Fprintf(w, "arena: %d bytes, free: %d, in use: %d\n", s.Size, s.FreeBytes, s.InUse)
	fmt.Fprintf(w, "allocs: %d, frees: %d, splits: %d, merges: %d\n", s.Allocs, s.Frees, s.Splits, s.Merges)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "class\tfree blocks\t")
	for k, n := range s.FreeBlocks {
		if n > 0 {
			fmt.Fprintf(tw, "%d\t%d\t\n", k, n)
		}
	}
	return tw.Flush()
}
