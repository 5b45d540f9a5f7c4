package pyext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
)

// Build tool constants
const (
	cmakeProgram          = "cmake"
	visualStudioGenerator = "Visual Studio 15 2017"
	osxDeploymentTarget   = "10.14"
)

// CMakeBuilder generates a CMake project for the target and drives the
// cmake configure → build workflow.
type CMakeBuilder struct{}

// Name returns the builder name
func (b *CMakeBuilder) Name() string {
	return "CMake"
}

// RequiredTools returns the tools needed for CMake builds
func (b *CMakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: cmakeProgram, Purpose: "CMake build system"},
		{
			Name:         "c++",
			Alternatives: []string{"g++", "clang++", "cl"},
			Purpose:      "C++ compiler",
		},
	}
}

// CheckTools verifies that cmake and a compiler are available
func (b *CMakeBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder answers to the generator name
func (b *CMakeBuilder) CanBuild(generator string) bool {
	return MatchesPattern(strings.ToLower(generator), `^cmake$`)
}

// Build compiles the target using the cmake → cmake --build workflow
func (b *CMakeBuilder) Build(ctx context.Context, config *BuildConfig, target *Target) (*BuildResult, error) {
	return runCommonBuild(ctx, config, target, CommonBuildSteps{
		ConfigureFunc: b.runCmake,
		BuildFunc:     b.runBuild,
		FindFunc:      moduleFinder(target),
	})
}

// Clean removes build artifacts
func (b *CMakeBuilder) Clean(ctx context.Context, config *BuildConfig, target *Target) error {
	binDir := b.binaryDir(config, target)

	if _, err := os.Stat(filepath.Join(binDir, "CMakeCache.txt")); err == nil {
		cleanCmd := execCommandContext(ctx, cmakeProgram, "--build", ".", "--target", "clean")
		cleanCmd.Dir = binDir
		// Ignore errors - the tree is removed below anyway
		_ = cleanCmd.Run()
	}

	if err := os.RemoveAll(b.projectDir(config, target)); err != nil {
		return err
	}
	return os.RemoveAll(target.outputDir(config))
}

func (b *CMakeBuilder) projectDir(config *BuildConfig, target *Target) string {
	return filepath.Join(config.BuildDir, "cmake", target.Name)
}

func (b *CMakeBuilder) sourceDir(config *BuildConfig, target *Target) string {
	return filepath.Join(b.projectDir(config, target), "src")
}

func (b *CMakeBuilder) binaryDir(config *BuildConfig, target *Target) string {
	return filepath.Join(b.projectDir(config, target), "build")
}

// configureArgs returns the cmake command line for the configure step
func (b *CMakeBuilder) configureArgs(config *BuildConfig, target *Target) []string {
	outputDir := target.outputDir(config)
	cfg := config.buildType()

	args := []string{
		"-S", b.sourceDir(config, target),
		"-B", b.binaryDir(config, target),
		"-DCMAKE_LIBRARY_OUTPUT_DIRECTORY=" + outputDir,
	}

	if target.Python != nil && target.Python.Executable != "" {
		args = append(args, "-DPYTHON_EXECUTABLE="+target.Python.Executable)
	}
	if target.Python != nil && target.Python.Pybind11CMakeDir != "" {
		args = append(args, "-Dpybind11_DIR="+target.Python.Pybind11CMakeDir)
	}
	if compiler := b.cxxCompiler(config); compiler != "" {
		args = append(args, "-DCMAKE_CXX_COMPILER="+compiler)
	}
	if target.Eigen3Dir != "" {
		args = append(args, "-DEIGEN3_INCLUDE_DIR="+target.Eigen3Dir)
	}

	switch goos {
	case platformWindows:
		generator := b.getGenerator()
		args = append(args,
			"-G", generator,
			"-DCMAKE_GENERATOR_PLATFORM=x64",
			fmt.Sprintf("-DCMAKE_LIBRARY_OUTPUT_DIRECTORY_%s=%s", strings.ToUpper(cfg), outputDir),
		)
	case platformDarwin:
		args = append(args,
			"-DCMAKE_BUILD_TYPE="+cfg,
			"-DCMAKE_OSX_DEPLOYMENT_TARGET="+osxDeploymentTarget,
		)
	default:
		args = append(args, "-DCMAKE_BUILD_TYPE="+cfg)
		if generator := os.Getenv("CMAKE_GENERATOR"); generator != "" {
			args = append(args, "-G", generator)
		}
	}

	return append(args, config.BuildArgs...)
}

// buildArgs returns the cmake --build command line
func (b *CMakeBuilder) buildArgs(config *BuildConfig, target *Target) []string {
	args := []string{"--build", ".", "--target", target.Name}
	if config.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, "--config", config.buildType())

	if goos == platformWindows {
		args = append(args, "--", "/m")
		if config.Verbose {
			args = append(args, "/verbosity:n")
		}
		return args
	}

	return append(args, "--", fmt.Sprintf("-j%d", parallelJobs(config)))
}

// configureStamp records, in the binary directory, the digest of the last
// successful cmake configure.
const configureStamp = "pyext-configure.sha256"

// configureDigest covers everything cmake configure depends on: its command
// line and the generated CMakeLists.txt.
func configureDigest(args []string, lists []byte) string {
	h := sha256.New()
	fmt.Fprintln(h, "configure")
	for _, arg := range args {
		fmt.Fprintf(h, "%q\n", arg)
	}
	h.Write(lists)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// runCmake writes the generated project and runs cmake to configure it.
// Configure is skipped when the cache exists and the last successful
// configure used the same arguments and CMakeLists.txt.
func (b *CMakeBuilder) runCmake(ctx context.Context, config *BuildConfig, target *Target, result *BuildResult) error {
	logger := ctxlog.FromContext(ctx)

	content, err := RenderCMakeLists(target)
	if err != nil {
		return err
	}
	listsPath := filepath.Join(b.sourceDir(config, target), "CMakeLists.txt")
	if _, err := writeGenerated(ctx, listsPath, content); err != nil {
		return err
	}

	binDir := b.binaryDir(config, target)
	args := b.configureArgs(config, target)
	digest := configureDigest(args, content)
	stampPath := filepath.Join(binDir, configureStamp)

	_, cacheErr := os.Stat(filepath.Join(binDir, "CMakeCache.txt"))
	if prev, err := os.ReadFile(stampPath); err == nil && cacheErr == nil &&
		strings.TrimSpace(string(prev)) == digest {
		logger.Info("Configuration unchanged, skipping cmake configure.", "target", target.Name)
		return nil
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	if err := os.Remove(stampPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	logger.Debug("Running cmake.", "target", target.Name, "args", args)
	if err := runTool(ctx, config, binDir, result, cmakeProgram, args...); err != nil {
		return BuildError("CMake", result.Output, err)
	}
	return os.WriteFile(stampPath, []byte(digest+"\n"), 0o644)
}

// runBuild executes the build command
func (b *CMakeBuilder) runBuild(ctx context.Context, config *BuildConfig, target *Target, result *BuildResult) error {
	binDir := b.binaryDir(config, target)

	// Clean first if requested
	if config.CleanFirst {
		_ = runTool(ctx, config, binDir, result, cmakeProgram, "--build", ".", "--target", "clean")
	}

	if err := runTool(ctx, config, binDir, result, cmakeProgram, b.buildArgs(config, target)...); err != nil {
		return BuildError("CMake Build", result.Output, err)
	}
	return nil
}

// cxxCompiler returns the preferred compiler, from the config or $CXX
func (b *CMakeBuilder) cxxCompiler(config *BuildConfig) string {
	if config.CXXCompiler != "" {
		return config.CXXCompiler
	}
	return os.Getenv("CXX")
}

// getGenerator returns the CMake generator used on Windows
func (b *CMakeBuilder) getGenerator() string {
	// Check environment variable first
	if generator := os.Getenv("CMAKE_GENERATOR"); generator != "" {
		return generator
	}
	return visualStudioGenerator
}

func parallelJobs(config *BuildConfig) int {
	if config.Parallel > 0 {
		return config.Parallel
	}
	return runtime.NumCPU()
}
