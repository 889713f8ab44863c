package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pboyd/buddy"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	jsonOut  bool
	maxClass uint
)

var rootCmd = &cobra.Command{
	Use:   "buddyctl",
	Short: "Exercise and inspect the buddy allocator",
	Long: `buddyctl replays allocation scripts against a buddy allocator and
reports how the arena was used. It is a debugging aid for the allocator and
for programs that embed it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log allocator diagnostics to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		UintVar(&maxClass, "max-class", buddy.DefaultMaxClass, "log2 of the arena size")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns a text logger on w. Without --verbose only errors are
// shown.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
