package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/emberdb/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-file>",
		Short: "Validate a schema file",
		Long: `Validate a CUE or YAML schema file without opening a database.

CUE files (or a directory holding a CUE package) are checked for format
errors first; every problem is reported, with line numbers. The resulting
schema is then checked for unknown link targets, bad primary keys and bad
defaults. Cycles of required links are reported as warnings.

Exit codes:
  0 - Schema valid (warnings allowed)
  1 - Validation failed
  2 - Command error (file not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("schema file not found: %s", path))
	}
	formatter.VerboseLog("Validating %s", path)

	var result ValidationResult
	for _, e := range compiler.ValidateFile(path) {
		if compiler.IsWarning(e.Code) {
			result.Warnings = append(result.Warnings, e)
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	result.Valid = len(result.Errors) == 0
	opts.Logger().Debug("schema validated",
		zap.String("path", path),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)))

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return formatter.Success(result, func(w io.Writer) {
		writeIssues(w, "warning", result.Warnings)
		fmt.Fprintln(w, "✓ Schema valid")
	})
}

// outputValidationErrors outputs a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		writeIssues(formatter.Writer, "error", result.Errors)
		writeIssues(formatter.Writer, "warning", result.Warnings)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

func writeIssues(w io.Writer, label string, issues []compiler.ValidationError) {
	for _, e := range issues {
		if e.Line > 0 {
			fmt.Fprintf(w, "line %d\n", e.Line)
		}
		fmt.Fprintf(w, "  %s %s: %s: %s\n\n", label, e.Code, e.Field, e.Message)
	}
}
