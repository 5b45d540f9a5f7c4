package pyext

import "context"

// Builder defines the interface that all extension builders must implement.
//
// Each builder drives one way of turning a configured Target into a loadable
// module: generating a CMake project, or calling the C++ compiler directly.
//
// # Builder Lifecycle
//
//  1. CanBuild() - Factory calls this to match the requested generator
//  2. Build() - Factory calls this to compile and link the target
//  3. Clean() - Optional cleanup of build artifacts
//
// # Thread Safety
//
// Builder implementations should be stateless and thread-safe.
// The same builder instance may be used to build several targets concurrently.
type Builder interface {
	// Name returns the human-readable name of this builder.
	//
	// This name is used in error messages and logs.
	// Examples: "CMake", "Compiler"
	Name() string

	// CanBuild reports whether this builder answers to the generator name
	// given on the command line (e.g. "cmake").
	CanBuild(generator string) bool

	// Build compiles the target and returns the result.
	//
	// The target must be configured. On success the result lists the
	// built files relative to the target's output directory, and the
	// target is moved to the built state.
	Build(ctx context.Context, config *BuildConfig, target *Target) (*BuildResult, error)

	// Clean removes build artifacts of the target.
	//
	// Returns nil if there is nothing to clean.
	Clean(ctx context.Context, config *BuildConfig, target *Target) error
}
