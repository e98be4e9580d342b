package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	cases := map[string]string{
		"~":          home,
		"~/papers":   filepath.Join(home, "papers"),
		"/absolute":  "/absolute",
		"relative/p": "relative/p",
	}
	for in, want := range cases {
		if got := expandTilde(in); got != want {
			t.Errorf("expandTilde(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveDir_CreatesMissingDirectory(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "papers", "nested")

	got, err := resolveDir(target)
	if err != nil {
		t.Fatalf("resolveDir failed: %v", err)
	}
	if got != target {
		t.Errorf("resolveDir = %q, want %q", got, target)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("resolved directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("resolved path is not a directory")
	}
}

func TestResolveDir_ExpandsEnvironment(t *testing.T) {
	base := t.TempDir()
	t.Setenv("BIB_TEST_BASE", base)

	got, err := resolveDir("$BIB_TEST_BASE/papers")
	if err != nil {
		t.Fatalf("resolveDir failed: %v", err)
	}
	if got != filepath.Join(base, "papers") {
		t.Errorf("resolveDir = %q, want %q", got, filepath.Join(base, "papers"))
	}
}
