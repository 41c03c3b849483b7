package cli

import (
	"fmt"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/validate"
	"github.com/spf13/cobra"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <mer.json>",
	Short: "Validate a merged model against the structural rules",
	Long: `Validate re-checks an existing model: entity shapes, primary keys,
relationship endpoints, foreign key targets and duplicate identities.
Warnings are reported but do not fail validation.

Example:
  merforge validate mer.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}

	report := validate.NewValidator().Validate(m)
	for _, v := range report.Violations {
		fmt.Printf("  - %s\n", v)
	}
	if !report.OK {
		errs := 0
		for _, v := range report.Violations {
			if v.Severity == model.SeverityError {
				errs++
			}
		}
		return fmt.Errorf("model invalid: %d errors", errs)
	}
	fmt.Printf("Model OK: %d entities, %d relationships\n", len(m.Entities), len(m.Relationships))
	return nil
}
