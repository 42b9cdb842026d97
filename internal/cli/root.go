package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database is the realm file (--db).
	Database string

	// Schema is a CUE or YAML schema file (--schema).
	Schema string

	// SchemaVersion overrides the version declared by the schema file
	// (--schema-version). Zero keeps the declared version.
	SchemaVersion uint64

	logger *zap.Logger
}

// Logger returns the command logger. It is a no-op logger until the root
// command has run its pre-run hook.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the EmberDB CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "emberdb",
		Short: "EmberDB - embedded schema-typed object store",
		Long:  "Inspect, query and load EmberDB files, validate schemas and run scenarios.",
		// main reports errors not already printed by a command.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			logger, err := newLogger(opts.Verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Database, "db", "", "path to the EmberDB file")
	flags.StringVar(&opts.Schema, "schema", "", "schema file (.cue, .yaml or a CUE package directory)")
	flags.Uint64Var(&opts.SchemaVersion, "schema-version", 0, "schema version to open the file with")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// newLogger builds a development logger in verbose mode and a production
// logger otherwise. Both write to stderr so they never mix with command
// output.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
