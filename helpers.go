package pyext

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// MatchesPattern checks if a name matches any of the given regex patterns.
//
// Builders use it to decide whether they answer to a generator name.
// Invalid patterns are silently skipped.
//
// # Example
//
//	if MatchesPattern(generator, `^cmake$`) {
//	    // Handle CMake generator
//	}
//
// # Thread Safety
//
// This function is thread-safe and can be called concurrently.
func MatchesPattern(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, name); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// This is a case-insensitive suffix check, with or without leading dot.
//
// # Example
//
//	if MatchesExtension(filename, ".so", ".pyd", ".dylib") {
//	    // This is a compiled module
//	}
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized build error with output context.
//
// # Format
//
// With error and output:
//
//	CMake build failed: exit status 2
//
//	Build output:
//	[ 50%] Building CXX object CMakeFiles/core.dir/a.cpp.o
//	a.cpp:3:1: error: expected ';'
//
// With error but no output:
//
//	CMake build failed: exit status 2
//
// # Thread Safety
//
// This function is thread-safe and can be called concurrently.
func BuildError(builder string, output []string, err error) error {
	outputStr := strings.Join(output, "\n")

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s build failed: %v", builder, err)
	} else {
		prefix = fmt.Sprintf("%s build failed", builder)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

// runTool runs one external command in dir and appends its combined output
// to result. The returned error is the raw command error.
func runTool(ctx context.Context, config *BuildConfig, dir string, result *BuildResult, name string, args ...string) error {
	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = dir
	applyBuildEnv(cmd, config)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		result.Output = append(result.Output, strings.Split(strings.TrimRight(string(output), "\n"), "\n")...)
	}

	if config.Verbose {
		result.Output = append(result.Output,
			fmt.Sprintf("Running: %s %s", name, strings.Join(args, " ")),
			fmt.Sprintf("Working directory: %s", dir))
	}
	return err
}
