package realm

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/emberdb/internal/dberr"
)

// DefaultFileName is the initial default path, relative to the working
// directory.
const DefaultFileName = "default.emberdb"

// MigrationFunc runs inside the write transaction that moves a file to a
// newer schema version. oldVersion is the version stored before the upgrade.
// Returning an error aborts the open and leaves the file unchanged.
type MigrationFunc func(oldVersion uint64, r *Realm) error

// Config describes how to open a realm.
type Config struct {
	// Path is the file to open or create. Empty means DefaultPath().
	Path string

	// Schema is the declared object types: a raw schema accepted by
	// schema.Parse, or a *schema.Schema. Nil adopts the schema stored in
	// the file (empty for a new file).
	Schema any

	// SchemaVersion is compared against the version stored in the file.
	SchemaVersion uint64

	// Migration runs when SchemaVersion is newer than the stored version.
	Migration MigrationFunc

	// Logger receives open, commit and rollback events. Defaults to a
	// no-op logger.
	Logger *zap.Logger

	// InMemory keeps the realm in memory only. Path still identifies the
	// realm, so in-memory handles with the same path share state.
	InMemory bool
}

var defaultPath = struct {
	mu   sync.RWMutex
	path string
}{path: DefaultFileName}

// DefaultPath returns the path used when a Config leaves Path empty.
func DefaultPath() string {
	defaultPath.mu.RLock()
	defer defaultPath.mu.RUnlock()
	return defaultPath.path
}

// SetDefaultPath changes the path used when a Config leaves Path empty.
// Realms that are already open keep their path.
func SetDefaultPath(path string) {
	defaultPath.mu.Lock()
	defer defaultPath.mu.Unlock()
	defaultPath.path = path
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// OpenArgs opens a realm from loosely typed constructor arguments.
//
// It accepts no argument (defaults), or exactly one of: a path string, a
// Config, a *Config, or an option mapping with the keys "path", "schema",
// "schemaVersion", "migration" and "inMemory". Anything else, including a
// second argument, is an ArgumentError.
func OpenArgs(args ...any) (*Realm, error) {
	if len(args) > 1 {
		return nil, dberr.New(dberr.KindArgument, "realm can only be opened with 0 or 1 argument(s), got %d", len(args))
	}
	if len(args) == 0 {
		return Open(Config{})
	}
	switch a := args[0].(type) {
	case nil:
		return Open(Config{})
	case string:
		return Open(Config{Path: a})
	case Config:
		return Open(a)
	case *Config:
		if a == nil {
			return Open(Config{})
		}
		return Open(*a)
	case map[string]any:
		cfg, err := configFromMap(a)
		if err != nil {
			return nil, err
		}
		return Open(cfg)
	default:
		return nil, dberr.New(dberr.KindArgument, "realm options must be a path, Config or mapping, got %T", a)
	}
}

func configFromMap(m map[string]any) (Config, error) {
	var cfg Config
	for k, v := range m {
		switch k {
		case "path":
			s, ok := v.(string)
			if !ok {
				return Config{}, dberr.New(dberr.KindArgument, "path must be a string, got %T", v)
			}
			cfg.Path = s
		case "schema":
			cfg.Schema = v
		case "schemaVersion":
			n, ok := toVersion(v)
			if !ok {
				return Config{}, dberr.New(dberr.KindArgument, "schemaVersion must be a non-negative integer, got %v", v)
			}
			cfg.SchemaVersion = n
		case "migration":
			switch fn := v.(type) {
			case MigrationFunc:
				cfg.Migration = fn
			case func(uint64, *Realm) error:
				cfg.Migration = fn
			default:
				return Config{}, dberr.New(dberr.KindArgument, "migration must be a MigrationFunc, got %T", v)
			}
		case "inMemory":
			b, ok := v.(bool)
			if !ok {
				return Config{}, dberr.New(dberr.KindArgument, "inMemory must be a bool, got %T", v)
			}
			cfg.InMemory = b
		default:
			return Config{}, dberr.New(dberr.KindArgument, "unknown realm option %q", k)
		}
	}
	return cfg, nil
}

func toVersion(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt64 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}
