package pyext

import "context"

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - Output lines captured from the build process (stdout/stderr)
//   - Extensions list of compiled extension files (.so/.pyd/.dylib)
//   - Error information if the build failed
type BuildResult struct {
	Target              string   // Name of the target that was built
	Success             bool     // True if build completed successfully
	Output              []string // Lines of output from the build process
	Extensions          []string // Paths to built extension files, relative to the output dir
	Error               error    // Error if build failed, nil otherwise
	MissingDependencies []string // Names of build-time tools that were missing
}

// Build types accepted by BuildConfig.BuildType.
const (
	BuildTypeRelease = "Release"
	BuildTypeDebug   = "Debug"
)

// BuildConfig contains configuration for the build process.
//
// Source paths define where files are located:
//   - ProjectDir: Root of the C++ source tree and of the manifest
//   - BuildDir: Scratch directory for generated files and objects
//   - Prefix: Installation prefix; the artifact lands below it
//   - DestDir: Optional staging root prepended to Prefix (like DESTDIR)
//
// Toolchain:
//   - PythonPath: Interpreter used to locate headers and EXT_SUFFIX
//   - CXXCompiler: Preferred C++ compiler
//   - Eigen3IncludeDir: Preferred Eigen3 include directory
//   - MKLRoot: Explicit MKL installation root
//   - DisableOptional: Skip optional dependency probing
//
// Build behavior:
//   - BuildType: Release (default) or Debug
//   - Parallel: Number of parallel jobs (0 = number of CPUs)
//   - Verbose: Enable detailed build output
//   - CleanFirst: Run clean target before building
//   - StopOnFailure: Stop after first failed target
type BuildConfig struct {
	// Source paths
	ProjectDir string // Root directory of the C++ sources
	BuildDir   string // Directory for generated build files
	Prefix     string // Installation prefix
	DestDir    string // Optional staging root prepended to Prefix

	// Build arguments
	BuildArgs []string          // Additional build arguments
	Env       map[string]string // Environment variables for build

	// Toolchain
	PythonPath       string // Path to the Python interpreter
	CXXCompiler      string // Preferred C++ compiler
	Eigen3IncludeDir string // Preferred Eigen3 include directory
	MKLRoot          string // Explicit MKL root, searched first
	DisableOptional  bool   // Never link optional dependencies

	// Build options
	BuildType  string // Release or Debug
	Verbose    bool   // Enable verbose output
	CleanFirst bool   // Run clean before build
	Parallel   int    // Number of parallel jobs

	// Failure handling
	StopOnFailure bool // Stop after the first failed target build
}

func (c *BuildConfig) buildType() string {
	if c.BuildType == BuildTypeDebug {
		return BuildTypeDebug
	}
	return BuildTypeRelease
}

// CommonBuildSteps defines the standard 3-step build pattern used by the builders.
//
//  1. Configure: Generate build files (CMakeLists.txt, CMake cache, object dirs)
//  2. Build: Compile and link the extension
//  3. Find: Locate the compiled extension files
//
// Example usage in a builder:
//
//	return runCommonBuild(ctx, config, target, CommonBuildSteps{
//	    ConfigureFunc: b.configure,
//	    BuildFunc:     b.compile,
//	    FindFunc:      b.locateExtensions,
//	})
type CommonBuildSteps struct {
	// ConfigureFunc prepares the build environment (e.g., run cmake)
	ConfigureFunc func(ctx context.Context, config *BuildConfig, target *Target, result *BuildResult) error

	// BuildFunc compiles the extension (e.g., cmake --build, c++ -shared)
	BuildFunc func(ctx context.Context, config *BuildConfig, target *Target, result *BuildResult) error

	// FindFunc locates the compiled extension files after build completes
	FindFunc func(outputDir string) ([]string, error)
}
