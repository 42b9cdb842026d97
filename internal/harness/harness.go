package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/emberdb/internal/coerce"
	"github.com/roach88/emberdb/internal/compiler"
	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/realm"
	"github.com/roach88/emberdb/internal/schema"
	"github.com/roach88/emberdb/internal/value"
)

// Options configures RunContext.
type Options struct {
	// Logger receives step and realm events. Defaults to a no-op logger.
	Logger *zap.Logger

	// TempDir is the parent of the per-scenario realm directory. Empty
	// means os.TempDir().
	TempDir string
}

// Harness is the test execution engine for one scenario.
type Harness struct {
	realm  *realm.Realm
	logger *zap.Logger
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, Options{})
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs in a fresh realm file inside a new temporary
// directory, removed afterwards. Step failures and failed assertions are
// reported in the result; the returned error is for scenarios that cannot
// run at all (bad schema, unopenable realm).
func RunContext(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("scenario", scenario.Name))

	sch, version, err := LoadScenarioSchema(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "emberdb-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create realm directory: %w", err)
	}
	defer os.RemoveAll(dir)

	r, err := realm.OpenContext(ctx, realm.Config{
		Path:          filepath.Join(dir, "scenario.emberdb"),
		Schema:        sch,
		SchemaVersion: version,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open realm: %w", err)
	}
	defer r.Close()

	h := &Harness{realm: r, logger: logger}
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.executeStep(ctx, i, step, result)
	}

	for _, errMsg := range EvaluateAssertions(r, scenario.Assertions) {
		result.AddError(errMsg)
	}
	for _, name := range sch.Names() {
		res, err := r.Objects(name, "")
		if err != nil {
			return nil, fmt.Errorf("failed to count %s objects: %w", name, err)
		}
		result.State[name] = res.Len()
	}
	return result, nil
}

// LoadScenarioSchema returns the scenario's schema and the version to open
// the realm with.
func LoadScenarioSchema(s *Scenario) (*schema.Schema, uint64, error) {
	if s.SchemaFile == "" {
		raw, err := schema.RawFromNode(s.Schema)
		if err != nil {
			return nil, 0, err
		}
		sch, err := schema.Parse(raw)
		return sch, s.SchemaVersion, err
	}
	sch, version, err := compiler.LoadSchema(s.SchemaFile)
	if err != nil {
		return nil, 0, err
	}
	if s.SchemaVersion != 0 {
		version = s.SchemaVersion
	}
	return sch, version, nil
}

// executeStep runs one step and records it in the trace.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	out, err := h.apply(ctx, step)

	kind := string(dberr.KindOf(err))
	if err != nil && kind == "" {
		kind = "ERROR"
	}
	label := fmt.Sprintf("step %d (%s %s)", index+1, step.Op, step.Type)
	switch {
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected %s error, got success", label, step.ExpectError))
	case step.ExpectError != "" && kind != step.ExpectError:
		result.AddError(fmt.Sprintf("%s: expected %s error, got: %v", label, step.ExpectError, err))
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
	}
	if err != nil {
		out = nil
	}
	result.AddStepTrace(step, out, kind)

	h.logger.Debug("step completed",
		zap.Int("step", index+1),
		zap.String("op", step.Op),
		zap.String("type", step.Type),
		zap.String("error_kind", kind),
	)
}

// apply performs a step and returns its snapshot result.
func (h *Harness) apply(ctx context.Context, step Step) (any, error) {
	r := h.realm
	var out any
	write := func(fn func() error) error { return r.WriteContext(ctx, fn) }

	switch step.Op {
	case OpCreate, OpUpsert:
		err := write(func() error {
			values, err := h.resolveRefs(step.Values)
			if err != nil {
				return err
			}
			o, err := r.CreateWith(step.Type, values, realm.CreateOptions{
				Update:   step.Op == OpUpsert,
				Coercion: coerce.Loose,
			})
			if err != nil {
				return err
			}
			out, err = Snapshot(o)
			return err
		})
		return out, err

	case OpSet:
		updated := 0
		err := write(func() error {
			objects, err := h.selectObjects(step.Type, step.Key, step.Predicate, step.Params)
			if err != nil {
				return err
			}
			values, err := h.resolveRefs(step.Values)
			if err != nil {
				return err
			}
			props := values.(map[string]any)
			for _, o := range objects {
				if err := setProperties(o, props); err != nil {
					return err
				}
				updated++
			}
			return nil
		})
		return map[string]any{"updated": updated}, err

	case OpDelete:
		deleted := 0
		err := write(func() error {
			objects, err := h.selectObjects(step.Type, step.Key, step.Predicate, step.Params)
			if err != nil {
				return err
			}
			deleted = len(objects)
			return r.Delete(objects)
		})
		return map[string]any{"deleted": deleted}, err

	case OpDeleteAll:
		return nil, write(r.DeleteAll)

	case OpQuery:
		params, err := h.resolveParams(step.Params)
		if err != nil {
			return nil, err
		}
		res, err := r.Objects(step.Type, step.Predicate, params...)
		if err != nil {
			return nil, err
		}
		if step.Sort != "" {
			if res, err = res.Sorted(step.Sort, step.Descending); err != nil {
				return nil, err
			}
		}
		return SnapshotAll(res.Objects())
	}
	return nil, dberr.New(dberr.KindArgument, "unknown step op %q", step.Op)
}

// selectObjects returns the objects chosen by a primary key or a predicate.
// A key without an object selects nothing.
func (h *Harness) selectObjects(typeName string, key any, predicate string, params []any) ([]*realm.Object, error) {
	if key != nil {
		o, err := h.realm.ObjectForPrimaryKey(typeName, key)
		if err != nil || o == nil {
			return nil, err
		}
		return []*realm.Object{o}, nil
	}
	resolved, err := h.resolveParams(params)
	if err != nil {
		return nil, err
	}
	res, err := h.realm.Objects(typeName, predicate, resolved...)
	if err != nil {
		return nil, err
	}
	return res.Snapshot().Objects(), nil
}

// setProperties assigns props in name order. Scalars go through loose
// coercion first so YAML shapes (date strings, numbers) are accepted.
func setProperties(o *realm.Object, props map[string]any) error {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		v := props[name]
		if p, ok := o.Schema().Property(name); ok && !p.Type.IsLink() && !coerce.IsNull(v) {
			sv, err := coerce.Scalar(o.Type(), p, v, coerce.Loose)
			if err != nil {
				return err
			}
			v = value.Interface(sv)
		}
		if err := o.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) resolveParams(params []any) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		v, err := h.resolveRefs(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// resolveRefs replaces {$ref: {type: T, key: k}} mappings with the objects
// they name.
func (h *Harness) resolveRefs(v any) (any, error) {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			r, err := h.resolveRefs(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		if ref, ok := x["$ref"]; ok && len(x) == 1 {
			return h.lookupRef(ref)
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			r, err := h.resolveRefs(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

func (h *Harness) lookupRef(ref any) (*realm.Object, error) {
	m, ok := ref.(map[string]any)
	if !ok {
		return nil, dberr.New(dberr.KindArgument, "$ref must be a mapping with type and key, got %T", ref)
	}
	typeName, _ := m["type"].(string)
	key, hasKey := m["key"]
	if typeName == "" || !hasKey {
		return nil, dberr.New(dberr.KindArgument, "$ref requires type and key")
	}
	o, err := h.realm.ObjectForPrimaryKey(typeName, key)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, dberr.New(dberr.KindArgument, "$ref: no %s object with primary key %v", typeName, key).WithType(typeName)
	}
	return o, nil
}

// Snapshot converts an object to plain values suitable for canonical JSON.
// Links become the primary key of the target ({"$type": T} for types
// without one), lists become arrays of those and dates become RFC 3339
// strings.
func Snapshot(o *realm.Object) (map[string]any, error) {
	m, err := o.Map()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = snapshotValue(v)
	}
	return out, nil
}

// SnapshotAll converts objects in order.
func SnapshotAll(objects []*realm.Object) ([]any, error) {
	out := make([]any, len(objects))
	for i, o := range objects {
		s, err := Snapshot(o)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func snapshotValue(v any) any {
	switch x := v.(type) {
	case *realm.Object:
		return linkRef(x)
	case *realm.List:
		items := make([]any, 0, x.Len())
		for _, o := range x.Objects() {
			items = append(items, linkRef(o))
		}
		return items
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func linkRef(o *realm.Object) any {
	if o == nil {
		return nil
	}
	if pk := o.Schema().PrimaryKeyProperty(); pk != nil {
		v, err := o.Get(pk.Name)
		if err == nil {
			return snapshotValue(v)
		}
	}
	return map[string]any{"$type": o.Type()}
}
