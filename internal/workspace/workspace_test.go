package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_PrefersEnvVarOverConfigured(t *testing.T) {
	t.Setenv("CODECODER_WORKSPACE", "/tmp/from-env")
	l, err := Resolve("/tmp/from-config")
	if err != nil {
		t.Fatal(err)
	}
	if l.Root != "/tmp/from-env" {
		t.Errorf("Root = %q, want /tmp/from-env", l.Root)
	}
}

func TestResolve_FallsBackToConfiguredPath(t *testing.T) {
	t.Setenv("CODECODER_WORKSPACE", "")
	l, err := Resolve("/tmp/from-config")
	if err != nil {
		t.Fatal(err)
	}
	if l.Root != "/tmp/from-config" {
		t.Errorf("Root = %q, want /tmp/from-config", l.Root)
	}
}

func TestResolve_FallsBackToHomeDefault(t *testing.T) {
	t.Setenv("CODECODER_WORKSPACE", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	l, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(home, ".codecoder", "workspace")
	if l.Root != want {
		t.Errorf("Root = %q, want %q", l.Root, want)
	}
}

func TestEnsureDirs_CreatesTreeWithRestrictedMode(t *testing.T) {
	t.Setenv("CODECODER_WORKSPACE", filepath.Join(t.TempDir(), "ws"))
	l, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{l.Root, l.Hands, l.Storage, l.Log, l.ObservabilityLogDir(), l.ToolOutput, l.Knowledge, l.Tracking, l.Cache} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
		if info.Mode().Perm() != dirMode {
			t.Errorf("%s mode = %o, want %o", dir, info.Mode().Perm(), dirMode)
		}
	}
}

func TestEnsureMcpAuthFile_CreatesWithRestrictedModeOnce(t *testing.T) {
	t.Setenv("CODECODER_WORKSPACE", filepath.Join(t.TempDir(), "ws"))
	l, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureMcpAuthFile(); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(l.McpAuthPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != authFileMode {
		t.Errorf("mode = %o, want %o", info.Mode().Perm(), authFileMode)
	}

	if err := os.WriteFile(l.McpAuthPath, []byte(`{"marker":true}`), authFileMode); err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureMcpAuthFile(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(l.McpAuthPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"marker":true}` {
		t.Error("EnsureMcpAuthFile overwrote an existing file")
	}
}
