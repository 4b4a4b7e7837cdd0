package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// LoadFixture reads testdata/fixtures/<name> relative to the calling test
// file, e.g. a tick sequence or rollover rate CSV used across several
// engine tests.
func LoadFixture(t *testing.T, name string) []byte {
	t.Helper()
	_, file, _, ok := runtime.Caller(1) // 0=LoadFixture, 1=test
	if !ok {
		t.Fatalf("fixtures: unable to resolve caller path")
	}
	base := filepath.Join(filepath.Dir(file), "testdata", "fixtures")
	path := filepath.Join(base, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("fixtures: read %s: %v", path, err)
	}
	return raw
}
