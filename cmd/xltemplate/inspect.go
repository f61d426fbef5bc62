package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javajack/xltemplate"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe template.xlsx",
		Short: "List the placeholders, tables and hyperlinks of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := xltemplate.Describe(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "validate template.xlsx",
		Short: "Check a template, optionally against a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values any
			if data != "" {
				loaded, err := loadDataFile(data)
				if err != nil {
					return err
				}
				values = loaded
			}
			issues, err := xltemplate.Validate(args[0], values)
			if err != nil {
				return err
			}
			errors := 0
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue)
				if issue.Severity == xltemplate.SeverityError {
					errors++
				}
			}
			if errors > 0 {
				return fmt.Errorf("%d error(s) found", errors)
			}
			if len(issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "template OK")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "YAML or JSON file to check placeholders against")
	return cmd
}
