package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
)

const peopleData = `
objects:
  Dog:
    - {name: Rex}
  Person:
    - {name: Ann, age: 30, dog: {name: Rex}}
    - [Bob, 41, null]
`

func TestImportCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "people.yaml", peopleSchema)
	dataPath := writeFile(t, dir, "data.yaml", "upsert: true\n"+peopleData)
	db := filepath.Join(dir, "new.emberdb")

	out, err := executeRoot(t, "import", "--db", db, "--schema", schemaPath, dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Imported 3 object(s)")

	r, err := realm.Open(realm.Config{Path: db})
	require.NoError(t, err)
	defer r.Close()
	res, err := r.Objects("Person", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())
	dogs, err := r.Objects("Dog", "")
	require.NoError(t, err)
	assert.Equal(t, 1, dogs.Len())
}

func TestImportJSONCounts(t *testing.T) {
	db, _ := seedDatabase(t)
	dataPath := writeFile(t, t.TempDir(), "more.yaml", `
objects:
  Person:
    - {name: Dee, age: 19}
    - {name: Eve, age: 22}
`)

	out, err := executeRoot(t, "--format", "json", "import", "--db", db, dataPath)
	require.NoError(t, err)

	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, map[string]int{"Person": 2}, resp.Data.Counts)
}

func TestImportIsAtomic(t *testing.T) {
	db, _ := seedDatabase(t)
	dataPath := writeFile(t, t.TempDir(), "dup.yaml", `
objects:
  Person:
    - {name: Dee, age: 19}
    - {name: Ann, age: 31}
`)

	_, err := executeRoot(t, "import", "--db", db, dataPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), string(dberr.KindDuplicateKey))

	r, err := realm.Open(realm.Config{Path: db})
	require.NoError(t, err)
	defer r.Close()
	dee, err := r.ObjectForPrimaryKey("Person", "Dee")
	require.NoError(t, err)
	assert.Nil(t, dee)
}

func TestImportUpsertFlag(t *testing.T) {
	db, _ := seedDatabase(t)
	dataPath := writeFile(t, t.TempDir(), "ann.yaml", `
objects:
  Person:
    - {name: Ann, age: 31}
`)

	_, err := executeRoot(t, "import", "--db", db, "--upsert", dataPath)
	require.NoError(t, err)

	r, err := realm.Open(realm.Config{Path: db})
	require.NoError(t, err)
	defer r.Close()
	ann, err := r.ObjectForPrimaryKey("Person", "Ann")
	require.NoError(t, err)
	require.NotNil(t, ann)
	age, err := ann.Get("age")
	require.NoError(t, err)
	assert.EqualValues(t, 31, age)
}

func TestImportBadDataFile(t *testing.T) {
	db, _ := seedDatabase(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "people: []\n", "failed to parse data file"},
		{"missing objects", "upsert: true\n", "objects is required"},
		{"objects not mapping", "objects: [1]\n", "must be a mapping"},
		{"type not list", "objects: {Person: 3}\n", "must be a list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".yaml", tt.content)
			_, err := executeRoot(t, "import", "--db", db, path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
