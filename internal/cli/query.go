package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/emberdb/internal/harness"
	"github.com/roach88/emberdb/internal/value"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Sort       string // property to sort by
	Descending bool
	Limit      int // 0 means no limit
}

// QueryResult holds the objects returned by a query.
type QueryResult struct {
	Type      string `json:"type"`
	Predicate string `json:"predicate,omitempty"`
	Count     int    `json:"count"`
	Objects   []any  `json:"objects"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <type> [predicate] [args...]",
		Short: "Query objects of a type",
		Long: `Query the objects of a type, optionally filtered by a predicate.

Arguments after the predicate fill its $0, $1, ... placeholders. They are
read as YAML scalars, so 3, 2.5 and true are numbers and booleans; quote
them to pass strings.

Examples:
  emberdb query --db app.emberdb Person
  emberdb query --db app.emberdb Person 'age > $0 && name BEGINSWITH $1' 30 A
  emberdb query --db app.emberdb Dog --sort name --desc --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "property to sort by")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "sort in descending order")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of objects to print")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := requireDatabase(opts.RootOptions, true); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
	}

	typeName := args[0]
	predicate := ""
	if len(args) > 1 {
		predicate = args[1]
	}
	params, err := parseParams(args[min(len(args), 2):])
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err)
	}

	r, code, err := openRealm(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, code, err)
	}
	defer r.Close()

	res, err := r.Objects(typeName, predicate, params...)
	if err != nil {
		return formatter.Fail(ExitFailure, errorCode(err, ErrCodeGeneric), err)
	}
	if opts.Sort != "" {
		if res, err = res.Sorted(opts.Sort, opts.Descending); err != nil {
			return formatter.Fail(ExitFailure, errorCode(err, ErrCodeGeneric), err)
		}
	}
	objects := res.Objects()
	if opts.Limit > 0 && len(objects) > opts.Limit {
		objects = objects[:opts.Limit]
	}
	snapshots, err := harness.SnapshotAll(objects)
	if err != nil {
		return formatter.Fail(ExitFailure, errorCode(err, ErrCodeGeneric), err)
	}

	result := QueryResult{
		Type:      typeName,
		Predicate: predicate,
		Count:     res.Len(),
		Objects:   snapshots,
	}
	return formatter.Success(result, func(w io.Writer) {
		writeQuery(w, result)
	})
}

// parseParams reads each argument as a YAML scalar.
func parseParams(args []string) ([]any, error) {
	params := make([]any, len(args))
	for i, arg := range args {
		var v any
		if err := yaml.Unmarshal([]byte(arg), &v); err != nil {
			return nil, fmt.Errorf("argument $%d: %w", i, err)
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("argument $%d: must be a scalar", i)
		}
		params[i] = v
	}
	return params, nil
}

func writeQuery(w io.Writer, r QueryResult) {
	for _, o := range r.Objects {
		fmt.Fprintln(w, formatObject(o.(map[string]any)))
	}
	shown := ""
	if len(r.Objects) < r.Count {
		shown = fmt.Sprintf(", %d shown", len(r.Objects))
	}
	fmt.Fprintf(w, "%d %s object(s)%s\n", r.Count, r.Type, shown)
}

// formatObject renders a snapshot as {name: value, ...} with sorted names.
func formatObject(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		data, err := value.MarshalCanonical(m[k])
		if err != nil {
			fmt.Fprintf(&b, "%s: %v", k, m[k])
			continue
		}
		fmt.Fprintf(&b, "%s: %s", k, data)
	}
	b.WriteByte('}')
	return b.String()
}
