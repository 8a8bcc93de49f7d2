package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func withBaseDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetBaseDir(dir)
	t.Cleanup(func() { SetBaseDir("") })
	return dir
}

func TestLayout(t *testing.T) {
	base := withBaseDir(t)

	socket, err := Socket()
	if err != nil {
		t.Fatal(err)
	}
	if socket != filepath.Join(base, "daemon", "inshd.sock") {
		t.Errorf("socket at %s", socket)
	}

	pid, err := PidFile()
	if err != nil {
		t.Fatal(err)
	}
	if pid != filepath.Join(base, "inshd.pid") {
		t.Errorf("pidfile at %s", pid)
	}

	cfg, err := ConfigFile()
	if err != nil {
		t.Fatal(err)
	}
	if cfg != filepath.Join(base, "config.json") {
		t.Errorf("config at %s", cfg)
	}
}

func TestDefaultBaseIsUnderHome(t *testing.T) {
	dir, err := InshDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != ".insh" {
		t.Errorf("base directory %s, want ~/.insh", dir)
	}
}

func TestEnsureDirs(t *testing.T) {
	withBaseDir(t)
	if err := EnsureDirs(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	logs, err := LogsDir()
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(logs)
	if err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("logs path is not a directory")
	}
	if perm := info.Mode().Perm(); perm != DirPerm {
		t.Errorf("logs dir permissions %o, want %o", perm, DirPerm)
	}
}
