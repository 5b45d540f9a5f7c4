package pyext

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestMatchesPattern(t *testing.T) {
	testCases := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"cmake", []string{`^cmake$`}, true},
		{"cmake3", []string{`^cmake$`}, false},
		{"direct", []string{`^compiler$`, `^direct$`}, true},
		{"anything", []string{`[invalid`}, false},
		{"", nil, false},
	}

	for _, tc := range testCases {
		if got := MatchesPattern(tc.name, tc.patterns...); got != tc.want {
			t.Errorf("MatchesPattern(%q, %v) = %v, want %v", tc.name, tc.patterns, got, tc.want)
		}
	}
}

func TestMatchesExtension(t *testing.T) {
	if !MatchesExtension("core.cpython-311-x86_64-linux-gnu.so", ".so") {
		t.Error("expected .so match")
	}
	if !MatchesExtension("CORE.PYD", ".pyd") {
		t.Error("expected case-insensitive match")
	}
	if MatchesExtension("core.cpp", ".so", ".pyd") {
		t.Error("unexpected match for core.cpp")
	}
}

func TestBuildError(t *testing.T) {
	err := BuildError("CMake", []string{"line 1", "line 2"}, errors.New("exit status 2"))
	want := "CMake build failed: exit status 2\n\nBuild output:\nline 1\nline 2"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	err = BuildError("Link", nil, errors.New("exit status 1"))
	if err.Error() != "Link build failed: exit status 1" {
		t.Errorf("unexpected error without output: %q", err.Error())
	}

	err = BuildError("Compiler", nil, nil)
	if err.Error() != "Compiler build failed" {
		t.Errorf("unexpected error without cause: %q", err.Error())
	}
}

func TestRunToolCollectsOutput(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()
	execCommandContext = helperCommandOutput(0, "first\nsecond\n")

	result := &BuildResult{}
	config := &BuildConfig{Verbose: true}
	if err := runTool(context.Background(), config, t.TempDir(), result, "c++", "-v"); err != nil {
		t.Fatalf("runTool: %v", err)
	}

	if len(result.Output) != 4 {
		t.Fatalf("expected 2 output and 2 verbose lines, got %q", result.Output)
	}
	if result.Output[0] != "first" || result.Output[1] != "second" {
		t.Errorf("unexpected output %q", result.Output[:2])
	}
	if result.Output[2] != "Running: c++ -v" {
		t.Errorf("unexpected command line %q", result.Output[2])
	}
}

func TestRunToolFailure(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()
	execCommandContext = helperCommand(2)

	result := &BuildResult{}
	err := runTool(context.Background(), &BuildConfig{}, t.TempDir(), result, "cmake")
	if err == nil {
		t.Fatal("expected error from failing tool")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
		t.Errorf("expected exit status 2, got %v", err)
	}
}

// commandLog records the command lines handed to execCommandContext.
type commandLog struct {
	mu    sync.Mutex
	calls [][]string
}

func (l *commandLog) commands() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string{}, l.calls...)
}

// recordingCommand returns an execCommandContext replacement that records
// each command and runs the helper process with exit code 0. Commands
// for which hook returns a non-empty string get that string on stdout.
func recordingCommand(log *commandLog, hook func(name string, args []string) string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		log.mu.Lock()
		log.calls = append(log.calls, append([]string{name}, args...))
		log.mu.Unlock()

		stdout := ""
		if hook != nil {
			stdout = hook(name, args)
		}
		return helperCommandOutput(0, stdout)(ctx, name, args...)
	}
}

func helperCommand(exitCode int) func(context.Context, string, ...string) *exec.Cmd {
	return helperCommandOutput(exitCode, "")
}

func helperCommandOutput(exitCode int, stdout string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		_ = name
		_ = args
		cmdArgs := []string{"-test.run=TestHelperProcess", "--", strconv.Itoa(exitCode)}
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...) // #nosec G204 - helper process for testing
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"GO_HELPER_STDOUT="+stdout,
		)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if out := os.Getenv("GO_HELPER_STDOUT"); out != "" {
		os.Stdout.WriteString(out)
	}

	for i := 0; i < len(os.Args); i++ {
		if os.Args[i] == "--" && i+1 < len(os.Args) {
			code, err := strconv.Atoi(strings.TrimSpace(os.Args[i+1]))
			if err != nil {
				os.Exit(1)
			}
			os.Exit(code)
		}
	}

	os.Exit(0)
}
