package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/emberdb/internal/value"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to the plain form accepted by
// value.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq": event.Seq,
			"op":  event.Op,
		}
		if event.Type != "" {
			eventMap["type"] = event.Type
		}
		if event.Predicate != "" {
			eventMap["predicate"] = event.Predicate
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a trace as canonical JSON. Equal traces always
// produce identical bytes.
func MarshalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: trace}
	data, err := value.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden. Failed steps or assertions fail
// the test.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, e)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file,
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

// GoldenPath returns the golden file of a scenario file: golden/<base>.golden
// next to the scenario.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// WriteGolden writes the trace of result as the golden file at path.
func WriteGolden(path, scenarioName string, result *Result) error {
	data, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the trace of result matches the golden
// file at path.
func CompareGolden(path, scenarioName string, result *Result) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	current, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimSpace(golden), current), nil
}
