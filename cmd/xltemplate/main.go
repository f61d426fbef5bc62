// Package main provides the xltemplate command line tool.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/javajack/xltemplate"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "xltemplate",
		Short: "Fill {{placeholders}} in .xlsx templates",
		Long: `xltemplate substitutes {{name}}, {{name.key}} and {{table:rows.key}}
placeholders in spreadsheet templates, expanding arrays into columns and
tables into rows while keeping merges, tables and names consistent.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log substitution details to stderr")

	logger := func() *slog.Logger {
		if !verbose {
			return slog.New(slog.DiscardHandler)
		}
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	rootCmd.AddCommand(
		newFillCmd(logger),
		newDescribeCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

// openOptions builds library options shared by the subcommands.
func openOptions(logger *slog.Logger, sheets []string) []xltemplate.Option {
	opts := []xltemplate.Option{xltemplate.WithLogger(logger)}
	if len(sheets) > 0 {
		opts = append(opts, xltemplate.WithSheets(sheets...))
	}
	return opts
}
