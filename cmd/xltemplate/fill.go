package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/javajack/xltemplate"
)

type fillFlags struct {
	data   string
	sets   []string
	output string
	sheets []string
	verify bool
}

func newFillCmd(logger func() *slog.Logger) *cobra.Command {
	var f fillFlags
	cmd := &cobra.Command{
		Use:   "fill template.xlsx",
		Short: "Substitute values into a template",
		Example: `  xltemplate fill invoice.xlsx -d invoice.yaml -o out.xlsx
  xltemplate fill report.xlsx --set title='"Q3"' --set 'rows=[{"n":1},{"n":2}]' -o q3.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd, args[0], f, logger())
		},
	}
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "YAML or JSON file with the substitution values")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "Set a value as path=expression (repeatable)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file path (required)")
	cmd.Flags().StringSliceVar(&f.sheets, "sheet", nil, "Only substitute these sheets (default: all)")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Re-open the output and list its sheets")
	cmd.MarkFlagRequired("output")
	return cmd
}

func runFill(cmd *cobra.Command, templatePath string, f fillFlags, logger *slog.Logger) error {
	values := map[string]any{}
	if f.data != "" {
		loaded, err := loadDataFile(f.data)
		if err != nil {
			return err
		}
		values = loaded
	}
	if err := applySets(values, f.sets); err != nil {
		return err
	}

	wb, err := xltemplate.Open(templatePath, openOptions(logger, f.sheets)...)
	if err != nil {
		return err
	}
	if err := wb.SubstituteAll(values); err != nil {
		return err
	}
	out, err := wb.Generate()
	if err != nil {
		return fmt.Errorf("generate output: %w", err)
	}
	if f.verify {
		if err := verifyOutput(cmd, out); err != nil {
			return err
		}
	}
	if err := os.WriteFile(f.output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f.output)
	return nil
}

// verifyOutput opens the generated package with excelize and prints each
// sheet with its row count.
func verifyOutput(cmd *cobra.Command, data []byte) error {
	xf, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	defer xf.Close()
	for _, name := range xf.GetSheetList() {
		rows, err := xf.GetRows(name)
		if err != nil {
			return fmt.Errorf("verify sheet %q: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sheet %q: %d rows\n", name, len(rows))
	}
	return nil
}
