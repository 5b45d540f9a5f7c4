package pyext

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestProject(t *testing.T, root string) *Project {
	t.Helper()
	config := &BuildConfig{ProjectDir: root, Prefix: filepath.Join(t.TempDir(), "prefix")}
	p, err := NewProject(context.Background(), config, nil)
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	p.Python = &PythonEnv{Executable: "/usr/bin/python3", ExtSuffix: ".so"}
	p.Dependencies = testRegistry(t.TempDir())
	return p
}

func TestProjectConfigureRecordsState(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.cpp", "b.cpp")
	p := newTestProject(t, root)
	ctx := context.Background()

	if p.Config.BuildDir != filepath.Join(root, "build") {
		t.Errorf("build dir = %q", p.Config.BuildDir)
	}

	first, err := p.Configure(ctx)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if len(first) != 1 || first[0].Name != "core" || first[0].Unchanged {
		t.Fatalf("unexpected first configure %+v", first)
	}

	second, err := p.Configure(ctx)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !second[0].Unchanged {
		t.Error("second configure of the same tree must be unchanged")
	}
	if second[0].Fingerprint != first[0].Fingerprint {
		t.Error("fingerprint changed between identical configure runs")
	}

	writeFiles(t, root, "c.cpp")
	third, err := p.Configure(ctx)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if third[0].Unchanged {
		t.Error("adding a source must change the configuration")
	}

	if _, err := os.Stat(filepath.Join(root, "build", "pyext-state.db")); err != nil {
		t.Errorf("expected build state database: %v", err)
	}
}

func TestProjectClean(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.cpp")
	p := newTestProject(t, root)
	ctx := context.Background()

	if _, err := p.Configure(ctx); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	writeFiles(t, p.Config.BuildDir, "lib/core/core.so", "obj/core/a.cpp.o")

	if err := p.Clean(ctx); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	for _, dir := range []string{"lib/core", "obj/core"} {
		if _, err := os.Stat(filepath.Join(p.Config.BuildDir, dir)); !os.IsNotExist(err) {
			t.Errorf("%s still present", dir)
		}
	}

	targets, err := p.Configure(ctx)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if targets[0].Unchanged {
		t.Error("configure after clean must not be unchanged")
	}
}

func TestProjectBuildAndInstall(t *testing.T) {
	withGOOS(t, "linux")
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	root := t.TempDir()
	writeFiles(t, root, "a.cpp", "b.cpp")
	p := newTestProject(t, root)
	p.Generator = "cmake"

	execCommandContext = recordingCommand(new(commandLog), func(name string, args []string) string {
		switch {
		case args[0] == "-S":
			writeFiles(t, args[3], "CMakeCache.txt")
		case args[0] == "--build" && !slices.Contains(args, "clean"):
			writeFiles(t, p.Config.BuildDir, "lib/core/core.so")
		}
		return ""
	})

	ctx := context.Background()
	targets, results, err := p.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("unexpected results %+v", results)
	}

	installed, err := p.Install(ctx, targets)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if diff := cmp.Diff([]string{"lib/tidal_constituents/core.so"}, installed); diff != "" {
		t.Errorf("installed paths mismatch (-want +got):\n%s", diff)
	}

	dest := filepath.Join(p.Config.Prefix, "lib", "tidal_constituents", "core.so")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected module at %s: %v", dest, err)
	}
	if targets[0].HasDefine(MKLDefine) {
		t.Error("MKL define set without MKL")
	}
}

func TestProjectRebuildAfterBuildTypeChange(t *testing.T) {
	withGOOS(t, "linux")
	t.Setenv("CMAKE_GENERATOR", "")
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	root := t.TempDir()
	writeFiles(t, root, "a.cpp")
	p := newTestProject(t, root)
	p.Generator = "cmake"

	log := new(commandLog)
	execCommandContext = recordingCommand(log, func(name string, args []string) string {
		switch {
		case args[0] == "-S":
			writeFiles(t, args[3], "CMakeCache.txt")
		case args[0] == "--build" && !slices.Contains(args, "clean"):
			writeFiles(t, p.Config.BuildDir, "lib/core/core.so")
		}
		return ""
	})

	ctx := context.Background()
	if _, _, err := p.Build(ctx); err != nil {
		t.Fatalf("release build: %v", err)
	}
	p.Config.BuildType = BuildTypeDebug
	targets, _, err := p.Build(ctx)
	if err != nil {
		t.Fatalf("debug build: %v", err)
	}
	if !targets[0].Unchanged {
		t.Error("build type is not part of the target configuration")
	}

	var configures [][]string
	for _, call := range log.commands() {
		if call[1] == "-S" {
			configures = append(configures, call)
		}
	}
	if len(configures) != 2 {
		t.Fatalf("expected two cmake configure runs, got %d", len(configures))
	}
	if !slices.Contains(configures[1], "-DCMAKE_BUILD_TYPE=Debug") {
		t.Errorf("second configure = %q", configures[1])
	}
}

func TestProjectManifest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "core/a.cpp", "extra/b.cpp")
	manifest := `
module "core" {
  sources = ["core/*.cpp"]
}

module "extra" {
  sources = ["extra/*.cpp"]
  install {
    destination = "lib/extra"
  }
}
`
	if err := os.WriteFile(filepath.Join(root, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestProject(t, root)
	targets, err := p.Configure(context.Background())
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if diff := cmp.Diff([]string{"core/a.cpp"}, targets[0].Sources); diff != "" {
		t.Errorf("core sources mismatch (-want +got):\n%s", diff)
	}
	if targets[1].InstallDestination != "lib/extra" {
		t.Errorf("extra destination = %q", targets[1].InstallDestination)
	}
}
