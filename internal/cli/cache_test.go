package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
}

func TestCacheDirXDG(t *testing.T) {
	customCache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", customCache)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestCachePathCommand(t *testing.T) {
	out, _, err := runCLI(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if got := strings.TrimSpace(out); !strings.HasSuffix(got, appName) {
		t.Errorf("cache path = %q, should end with %q", got, appName)
	}
}

func TestCacheClearCommand(t *testing.T) {
	graph := writeGraph(t)
	xdg := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		// runCLI picks a fresh cache home, so pin it for both runs.
		t.Setenv("XDG_CACHE_HOME", xdg)
		c := New(&strings.Builder{}, LogInfo)
		root := c.RootCommand()
		var out strings.Builder
		root.SetOut(&out)
		root.SetErr(&strings.Builder{})
		root.SetArgs(args)
		if err := root.ExecuteContext(t.Context()); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if out := run("cache", "clear"); !strings.Contains(out, "Cache is empty") {
		t.Errorf("clear on missing dir = %q", out)
	}

	run("plan", "-o", filepath.Join(t.TempDir(), "p"), graph)

	out := run("cache", "clear")
	if !strings.Contains(out, "Cleared 2 cached entries") {
		t.Errorf("clear = %q, want plan and artifact entries removed", out)
	}
	if !strings.Contains(out, filepath.Join(xdg, appName)) {
		t.Errorf("clear should print the directory: %q", out)
	}

	if out := run("cache", "clear"); !strings.Contains(out, "Cleared 0 cached entries") {
		t.Errorf("second clear = %q", out)
	}
}
