package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/emberdb/internal/coerce"
	"github.com/roach88/emberdb/internal/realm"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Upsert bool // update objects whose primary key exists
}

// ImportFile is the document read by the import command. Objects maps type
// names to object values, in document order.
type ImportFile struct {
	Upsert  bool      `yaml:"upsert"`
	Objects yaml.Node `yaml:"objects"`
}

// ImportResult reports how many objects of each type were written.
type ImportResult struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <data-file>",
		Short: "Load objects from a YAML or JSON file",
		Long: `Load objects into a database in a single write transaction.

The data file maps type names to lists of objects. Each object is a
mapping of property values or a list with one value per property; nested
mappings create linked objects. Values are coerced the way scenario files
are: dates may be RFC 3339 strings and data may be strings.

  upsert: true
  objects:
    Person:
      - {name: Ann, age: 30, dog: {name: Rex}}
      - [Bob, 41, null]

If any object fails, nothing is written. The database is created when
--schema is given and the file does not exist yet.

Examples:
  emberdb import --db app.emberdb --schema schema.cue people.yaml
  emberdb import --db app.emberdb --upsert people.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Upsert, "upsert", false, "update objects whose primary key already exists")

	return cmd
}

func runImport(opts *ImportOptions, dataFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := requireDatabase(opts.RootOptions, opts.Schema == ""); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
	}

	file, err := readImportFile(dataFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err)
	}
	batches, err := file.batches()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err)
	}

	r, code, err := openRealm(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, code, err)
	}
	defer r.Close()

	result := ImportResult{Counts: map[string]int{}}
	createOpts := realm.CreateOptions{
		Update:   opts.Upsert || file.Upsert,
		Coercion: coerce.Loose,
	}
	err = r.WriteContext(commandContext(cmd), func() error {
		for _, b := range batches {
			for i, values := range b.objects {
				if _, err := r.CreateWith(b.typeName, values, createOpts); err != nil {
					return fmt.Errorf("%s[%d]: %w", b.typeName, i, err)
				}
				result.Counts[b.typeName]++
				result.Total++
			}
		}
		return nil
	})
	if err != nil {
		return formatter.Fail(ExitFailure, errorCode(err, ErrCodeGeneric), err)
	}
	opts.Logger().Info("import committed",
		zap.String("db", opts.Database),
		zap.Int("objects", result.Total))

	return formatter.Success(result, func(w io.Writer) {
		for _, b := range batches {
			fmt.Fprintf(w, "  %s: %d\n", b.typeName, result.Counts[b.typeName])
		}
		fmt.Fprintf(w, "✓ Imported %d object(s)\n", result.Total)
	})
}

func readImportFile(path string) (*ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	var file ImportFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return &file, nil
}

type importBatch struct {
	typeName string
	objects  []any
}

// batches splits the objects mapping per type, keeping document order so
// that types are created in the order they are listed.
func (f *ImportFile) batches() ([]importBatch, error) {
	n := &f.Objects
	if n.Kind == 0 {
		return nil, fmt.Errorf("data file: objects is required")
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("data file: objects must be a mapping of type names to lists")
	}
	batches := make([]importBatch, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		typeName := n.Content[i].Value
		var objects []any
		if err := n.Content[i+1].Decode(&objects); err != nil {
			return nil, fmt.Errorf("data file: objects.%s: must be a list: %w", typeName, err)
		}
		batches = append(batches, importBatch{typeName: typeName, objects: objects})
	}
	return batches, nil
}
