package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/store"
)

// InspectResult describes a database file.
type InspectResult struct {
	Path          string        `json:"path"`
	StoreID       string        `json:"store_id,omitempty"`
	SchemaVersion uint64        `json:"schema_version"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Types         []TypeSummary `json:"types"`

	// SchemaMatches is set when --schema is given: whether the stored
	// schema is structurally equal to it.
	SchemaMatches *bool `json:"schema_matches,omitempty"`
}

// TypeSummary describes one stored object type.
type TypeSummary struct {
	Name       string            `json:"name"`
	PrimaryKey string            `json:"primary_key,omitempty"`
	Count      int               `json:"count"`
	Properties []PropertySummary `json:"properties"`
}

// PropertySummary describes one property of a stored type.
type PropertySummary struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ObjectType string `json:"object_type,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the schema and object counts of a database",
		Long: `Show the stored schema, schema version and per-type object counts of
a database file, read without applying any schema.

With --schema the stored schema is also compared to the schema file.

Examples:
  emberdb inspect --db app.emberdb
  emberdb inspect --db app.emberdb --schema schema.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}
}

func runInspect(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := requireDatabase(opts, true); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err)
	}
	defer st.Close()

	ctx := commandContext(cmd)
	meta, _, err := st.LoadMeta(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err)
	}
	counts, err := st.Stats(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err)
	}
	stored := schema.Empty()
	if len(meta.Schema) > 0 {
		if stored, err = schema.Parse(meta.Schema); err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeOpenFailed), err)
		}
	}

	result := InspectResult{
		Path:          opts.Database,
		StoreID:       meta.StoreID,
		SchemaVersion: meta.SchemaVersion,
		Fingerprint:   meta.Fingerprint,
		Types:         summarizeTypes(stored, counts),
	}
	if opts.Schema != "" {
		sch, _, err := loadSchema(opts)
		if err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeSchemaFailed), err)
		}
		match := stored.Equal(sch)
		result.SchemaMatches = &match
	}
	formatter.VerboseLog("Inspected %s: %d type(s)", opts.Database, len(result.Types))

	return formatter.Success(result, func(w io.Writer) {
		writeInspect(w, result)
	})
}

func summarizeTypes(sch *schema.Schema, counts map[string]int) []TypeSummary {
	types := make([]TypeSummary, 0, sch.Len())
	for _, typ := range sch.Types() {
		summary := TypeSummary{
			Name:       typ.Name,
			PrimaryKey: typ.PrimaryKey,
			Count:      counts[typ.Name],
			Properties: make([]PropertySummary, 0, len(typ.Properties)),
		}
		for _, p := range typ.Properties {
			summary.Properties = append(summary.Properties, PropertySummary{
				Name:       p.Name,
				Type:       string(p.Type),
				ObjectType: p.ObjectType,
				Optional:   p.Optional,
			})
		}
		types = append(types, summary)
	}
	return types
}

func writeInspect(w io.Writer, r InspectResult) {
	fmt.Fprintf(w, "Database: %s\n", r.Path)
	if r.StoreID != "" {
		fmt.Fprintf(w, "Store ID: %s\n", r.StoreID)
	}
	fmt.Fprintf(w, "Schema version: %d\n", r.SchemaVersion)
	if len(r.Types) == 0 {
		fmt.Fprintln(w, "No object types.")
	}
	for _, t := range r.Types {
		fmt.Fprintln(w)
		pk := ""
		if t.PrimaryKey != "" {
			pk = fmt.Sprintf(" (primary key %s)", t.PrimaryKey)
		}
		fmt.Fprintf(w, "%s%s: %d object(s)\n", t.Name, pk, t.Count)
		for _, p := range t.Properties {
			fmt.Fprintf(w, "  %-16s %s\n", p.Name, propertyTypeString(p))
		}
	}
	if r.SchemaMatches != nil {
		fmt.Fprintln(w)
		if *r.SchemaMatches {
			fmt.Fprintln(w, "✓ Stored schema matches schema file")
		} else {
			fmt.Fprintln(w, "✗ Stored schema differs from schema file")
		}
	}
}

// propertyTypeString renders a property type in schema string form.
func propertyTypeString(p PropertySummary) string {
	switch p.Type {
	case string(schema.TypeList):
		return p.ObjectType + "[]"
	case string(schema.TypeObject):
		return p.ObjectType + "?"
	}
	if p.Optional {
		return p.Type + "?"
	}
	return p.Type
}
