package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/emberdb/internal/compiler"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/schema"
)

// loadSchema loads the --schema file. The version is --schema-version when
// set, otherwise the version the file declares.
func loadSchema(opts *RootOptions) (*schema.Schema, uint64, error) {
	if _, err := os.Stat(opts.Schema); err != nil {
		return nil, 0, fmt.Errorf("schema file not found: %s", opts.Schema)
	}
	sch, version, err := compiler.LoadSchema(opts.Schema)
	if err != nil {
		return nil, 0, err
	}
	if opts.SchemaVersion != 0 {
		version = opts.SchemaVersion
	}
	return sch, version, nil
}

// requireDatabase checks that --db is set and, when mustExist is true,
// that the file exists. Opening a missing path would create it.
func requireDatabase(opts *RootOptions, mustExist bool) error {
	if opts.Database == "" {
		return fmt.Errorf("--db is required")
	}
	if mustExist {
		if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
			return fmt.Errorf("database not found: %s", opts.Database)
		}
	}
	return nil
}

// openRealm opens --db. Without --schema the stored schema is adopted.
// Failures carry the error code to report.
func openRealm(ctx context.Context, opts *RootOptions) (*realm.Realm, string, error) {
	cfg := realm.Config{
		Path:          opts.Database,
		SchemaVersion: opts.SchemaVersion,
		Logger:        opts.Logger(),
	}
	if opts.Schema != "" {
		sch, version, err := loadSchema(opts)
		if err != nil {
			return nil, ErrCodeSchemaFailed, err
		}
		cfg.Schema = sch
		cfg.SchemaVersion = version
	}
	r, err := realm.OpenContext(ctx, cfg)
	if err != nil {
		return nil, errorCode(err, ErrCodeOpenFailed), err
	}
	return r, "", nil
}

// commandContext returns the command's context, which is nil when a
// command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
