package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antoniostano/bootcamp/internal/toolkit"
)

var calcCmd = &cobra.Command{
	Use:   "calc <expression>",
	Short: "Evaluate a calculator expression",
	Long: `Evaluate + - * / expressions the way the calculator widget does.
Characters other than digits, operators and '.' are ignored.

Example:
  bootcamp calc "1200 * 15 / 100"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := strings.Join(args, " ")
		v, err := toolkit.Evaluate(expr)
		if err != nil {
			return fmt.Errorf("%s: %w", toolkit.Sanitize(expr), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), toolkit.FormatResult(v))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calcCmd)
}
