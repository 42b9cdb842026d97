package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/emberdb/internal/dberr"
)

// Scenario is a scripted run against a fresh realm.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an inline schema document in the form read by
	// schema.ParseYAML.
	Schema *yaml.Node `yaml:"schema,omitempty"`

	// SchemaFile is a .cue file or directory, or a .yaml schema file.
	// Exactly one of Schema and SchemaFile is set.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// SchemaVersion is the version the realm is opened with. A version
	// declared by a CUE schema file is used when this is zero.
	SchemaVersion uint64 `yaml:"schema_version,omitempty"`

	// Steps run in order, each in its own write transaction.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the realm after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpCreate    = "create"
	OpUpsert    = "upsert"
	OpSet       = "set"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
	OpQuery     = "query"
)

// Step is one operation of a scenario.
type Step struct {
	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// Type is the object type the step works on. Not used by delete_all.
	Type string `yaml:"type,omitempty"`

	// Values is the create/upsert input (a mapping or a list), or the
	// properties to assign for set.
	Values any `yaml:"values,omitempty"`

	// Key selects one object by primary key for set and delete.
	Key any `yaml:"key,omitempty"`

	// Predicate selects objects for set, delete and query. Empty matches
	// every object.
	Predicate string `yaml:"predicate,omitempty"`

	// Params are the $n arguments of Predicate.
	Params []any `yaml:"params,omitempty"`

	// Sort orders query results by a property.
	Sort string `yaml:"sort,omitempty"`

	// Descending reverses Sort.
	Descending bool `yaml:"descending,omitempty"`

	// ExpectError is the error kind the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks the final contents of the realm.
type Assertion struct {
	// Type is the assertion type: "count" or "object".
	Type string `yaml:"type"`

	// ObjectType is the object type to look at.
	ObjectType string `yaml:"object_type"`

	// Key selects one object by primary key (object).
	Key any `yaml:"key,omitempty"`

	// Predicate filters the objects (count) or selects exactly one (object).
	Predicate string `yaml:"predicate,omitempty"`

	// Params are the $n arguments of Predicate.
	Params []any `yaml:"params,omitempty"`

	// Expected is the number of matching objects (count).
	Expected int `yaml:"expected,omitempty"`

	// Expect holds property values the object must have (object). Only the
	// listed properties are compared.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCount  = "count"
	AssertObject = "object"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// schema_file resolves against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative schema_file against basePath.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}
	if scenario.SchemaFile != "" {
		if _, err := os.Stat(scenario.SchemaFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.SchemaFile)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. schema_file is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	hasInline := s.Schema != nil && s.Schema.Kind != 0
	switch {
	case hasInline && s.SchemaFile != "":
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	case !hasInline && s.SchemaFile == "":
		return fmt.Errorf("schema or schema_file is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, s *Step) error {
	if s.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if s.ExpectError != "" {
		if _, ok := dberr.ParseKind(s.ExpectError); !ok {
			return fmt.Errorf("steps[%d]: unknown error kind %q", index, s.ExpectError)
		}
	}

	switch s.Op {
	case OpCreate, OpUpsert:
		if s.Values == nil {
			return fmt.Errorf("steps[%d]: values is required for %s", index, s.Op)
		}
	case OpSet:
		if _, ok := s.Values.(map[string]any); !ok {
			return fmt.Errorf("steps[%d]: values must be a mapping for set", index)
		}
	case OpDelete, OpQuery:
	case OpDeleteAll:
		return nil
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.Type == "" {
		return fmt.Errorf("steps[%d]: type is required for %s", index, s.Op)
	}
	if s.Key != nil && s.Predicate != "" {
		return fmt.Errorf("steps[%d]: key and predicate are mutually exclusive", index)
	}
	if s.Key != nil && s.Op != OpSet && s.Op != OpDelete {
		return fmt.Errorf("steps[%d]: key is only valid for set and delete", index)
	}
	if s.Sort != "" && s.Op != OpQuery {
		return fmt.Errorf("steps[%d]: sort is only valid for query", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.ObjectType == "" {
		return fmt.Errorf("assertions[%d]: object_type is required", index)
	}

	switch a.Type {
	case AssertCount:
		if a.Expected < 0 {
			return fmt.Errorf("assertions[%d]: expected must be non-negative for count", index)
		}
		if a.Key != nil {
			return fmt.Errorf("assertions[%d]: key is not valid for count", index)
		}
	case AssertObject:
		if a.Key != nil && a.Predicate != "" {
			return fmt.Errorf("assertions[%d]: key and predicate are mutually exclusive", index)
		}
		if a.Key == nil && a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: key or predicate is required for object", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for object", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
