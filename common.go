package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// runCommonBuild executes the standard 3-step build process.
//
// # Process Flow
//
//  1. Check the target is configured and create its output directory
//  2. Call ConfigureFunc to prepare the build
//  3. Call BuildFunc to compile the extension
//  4. Call FindFunc to locate compiled files in the output directory
//  5. Record the artifacts on the target and move it to the built state
//
// If any step fails, processing stops and the error is returned
// with Success=false. The BuildResult.Output field is populated by the
// step functions as they execute.
//
// # Thread Safety
//
// This function is thread-safe as long as the provided step functions
// are thread-safe and don't share mutable state.
func runCommonBuild(ctx context.Context, config *BuildConfig, target *Target, steps CommonBuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		Target:  target.Name,
		Success: false,
		Output:  []string{},
	}

	if target.State() != StateConfigured {
		err := fmt.Errorf("target %q is %s, expected %s", target.Name, target.State(), StateConfigured)
		result.Error = err
		return result, err
	}

	outputDir := target.outputDir(config)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		result.Error = err
		return result, err
	}

	// Step 1: Configure/prepare the build
	if err := steps.ConfigureFunc(ctx, config, target, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 2: Build/compile the extension
	if err := steps.BuildFunc(ctx, config, target, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 3: Find the built extension files
	extensions, err := steps.FindFunc(outputDir)
	if err != nil {
		result.Error = err
		return result, err
	}
	if len(extensions) == 0 {
		err := fmt.Errorf("target %q: no module found in %s", target.Name, outputDir)
		result.Error = err
		return result, err
	}

	target.Artifacts = target.Artifacts[:0]
	for _, ext := range extensions {
		target.Artifacts = append(target.Artifacts, filepath.Join(outputDir, ext))
	}
	if err := target.advance(StateBuilt); err != nil {
		result.Error = err
		return result, err
	}

	result.Extensions = extensions
	result.Success = true
	return result, nil
}

// findModules returns the files in outputDir that look like a loadable
// module, relative to outputDir.
func findModules(outputDir string) ([]string, error) {
	patterns := []string{
		"*.so",    // Linux/Unix and macOS Python modules
		"*.pyd",   // Windows Python modules
		"*.dylib", // macOS dynamic libraries
		"*.dll",   // Windows dynamic libraries
	}

	var modules []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(outputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %s in %s: %v", pattern, outputDir, err)
		}

		for _, match := range matches {
			relPath, err := filepath.Rel(outputDir, match)
			if err == nil {
				modules = append(modules, relPath)
			}
		}
	}
	return modules, nil
}

// moduleFinder returns a FindFunc that only reports the target's own
// module, so files left over from an earlier interpreter or target are
// never picked up. Without a probed interpreter the suffix chosen by the
// build tool is unknown and any module named after the target is taken.
func moduleFinder(target *Target) func(string) ([]string, error) {
	return func(outputDir string) ([]string, error) {
		modules, err := findModules(outputDir)
		if err != nil {
			return nil, err
		}

		name := target.FileName()
		if slices.Contains(modules, name) {
			return []string{name}, nil
		}
		if target.Python != nil && target.Python.ExtSuffix != "" {
			return nil, nil
		}

		var own []string
		for _, m := range modules {
			if strings.HasPrefix(m, target.Name+".") {
				own = append(own, m)
			}
		}
		return own, nil
	}
}
