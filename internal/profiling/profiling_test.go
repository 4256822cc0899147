package profiling

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartProfilers(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "cpuprofile"),
		filepath.Join(dir, "memprofile"),
		filepath.Join(dir, "fgprof"),
	}
	stop, err := StartProfilers(paths[0], paths[1], paths[2])
	if err != nil {
		t.Fatal(err)
	}
	if err := stop(); err != nil {
		t.Fatal(err)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("profile was not written: %v", err)
		}
	}
}

func TestStartProfilersDisabled(t *testing.T) {
	stop, err := StartProfilers("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := stop(); err != nil {
		t.Fatal(err)
	}
}
