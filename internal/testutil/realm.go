package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/emberdb/internal/realm"
)

// TempPath returns a fresh file path inside the test's temp directory.
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// OpenRealm opens a file-backed realm in a temp directory with the given
// fixtures. The realm is closed when the test ends.
func OpenRealm(t testing.TB, types ...map[string]any) *realm.Realm {
	t.Helper()
	return OpenRealmConfig(t, realm.Config{Schema: Schema(types...)})
}

// OpenRealmConfig opens cfg, defaulting Path to a temp file.
func OpenRealmConfig(t testing.TB, cfg realm.Config) *realm.Realm {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = TempPath(t, "test.emberdb")
	}
	r, err := realm.Open(cfg)
	if err != nil {
		t.Fatalf("realm.Open(%q) failed: %v", cfg.Path, err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// MustWrite runs fn in a write transaction and fails the test on error.
func MustWrite(t testing.TB, r *realm.Realm, fn func() error) {
	t.Helper()
	if err := r.Write(fn); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
}
