package pyext

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModuleFinder(t *testing.T) {
	testCases := []struct {
		name   string
		python *PythonEnv
		files  []string
		want   []string
	}{
		{
			name:   "stale interpreter suffix",
			python: &PythonEnv{ExtSuffix: ".cpython-311-x86_64-linux-gnu.so"},
			files: []string{
				"core.cpython-310-x86_64-linux-gnu.so",
				"core.cpython-311-x86_64-linux-gnu.so",
			},
			want: []string{"core.cpython-311-x86_64-linux-gnu.so"},
		},
		{
			name:   "other target",
			python: &PythonEnv{ExtSuffix: ".so"},
			files:  []string{"core.so", "extra.so"},
			want:   []string{"core.so"},
		},
		{
			name:   "missing module",
			python: &PythonEnv{ExtSuffix: ".so"},
			files:  []string{"core.cpython-310-x86_64-linux-gnu.so"},
		},
		{
			name:  "suffix unknown",
			files: []string{"core.cpython-311-x86_64-linux-gnu.so", "extra.so", "a.o"},
			want:  []string{"core.cpython-311-x86_64-linux-gnu.so"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withGOOS(t, "linux")
			dir := t.TempDir()
			writeFiles(t, dir, tc.files...)

			target := DeclareTarget("core", dir)
			target.Python = tc.python
			got, err := moduleFinder(target)(dir)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("modules mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildIgnoresStaleModules(t *testing.T) {
	withGOOS(t, "linux")
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	root := t.TempDir()
	writeFiles(t, root, "a.cpp")
	config := &BuildConfig{
		ProjectDir: root,
		BuildDir:   filepath.Join(root, "build"),
		Prefix:     filepath.Join(t.TempDir(), "prefix"),
	}
	target := configuredTarget(t, root, "a.cpp")
	target.Python = &PythonEnv{ExtSuffix: ".so"}
	writeFiles(t, target.outputDir(config), "core.cpython-310-x86_64-linux-gnu.so")

	execCommandContext = recordingCommand(new(commandLog), fakeCMake(t, config, target))
	result, err := (&CMakeBuilder{}).Build(context.Background(), config, target)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]string{"core.so"}, result.Extensions); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}

	installed, err := InstallTarget(context.Background(), config, target)
	if err != nil {
		t.Fatalf("InstallTarget: %v", err)
	}
	if diff := cmp.Diff([]string{"lib/tidal_constituents/core.so"}, installed); diff != "" {
		t.Errorf("installed mismatch (-want +got):\n%s", diff)
	}
}
