package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/schema"
)

const peopleSchema = `
- name: Dog
  primaryKey: name
  properties:
    name: string
- name: Person
  primaryKey: name
  properties:
    name: string
    age: int
    dog: Dog
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeRoot runs the full command tree and returns its stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedDatabase writes a people schema file and a database holding Ann (30,
// with Rex), Bob (41) and Cy (25). It returns both paths.
func seedDatabase(t *testing.T) (dbPath, schemaPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = writeFile(t, dir, "people.yaml", peopleSchema)
	dbPath = filepath.Join(dir, "people.emberdb")

	sch, err := schema.LoadYAML(schemaPath)
	require.NoError(t, err)
	r, err := realm.Open(realm.Config{Path: dbPath, Schema: sch})
	require.NoError(t, err)
	err = r.Write(func() error {
		for _, p := range []map[string]any{
			{"name": "Ann", "age": int64(30), "dog": map[string]any{"name": "Rex"}},
			{"name": "Bob", "age": int64(41)},
			{"name": "Cy", "age": int64(25)},
		} {
			if _, err := r.Create("Person", p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return dbPath, schemaPath
}
