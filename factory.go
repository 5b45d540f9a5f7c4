package pyext

import (
	"context"
	"fmt"
	"strings"
)

// GeneratorAuto selects the first registered builder whose tools are present.
const GeneratorAuto = "auto"

// BuilderFactory manages the registration and selection of extension builders.
//
// # Usage
//
// Create a factory with all standard builders:
//
//	factory := pyext.NewBuilderFactory()
//
// Or create an empty factory and register custom builders:
//
//	factory := &pyext.BuilderFactory{}
//	factory.Register(&MyCustomBuilder{})
//
// Then use it to build configured targets:
//
//	results, err := factory.BuildAllTargets(ctx, config, "cmake", targets)
//
// # Builder Selection
//
// For an explicit generator name the first builder whose CanBuild()
// returns true is used. For "" or "auto" the first builder whose tools
// are all available is used; builders without a ToolChecker always
// qualify.
//
// # Thread Safety
//
// BuilderFactory is NOT thread-safe for registration.
// Register all builders before concurrent use.
type BuilderFactory struct {
	builders []Builder
}

// NewBuilderFactory creates a factory with all standard builders registered.
//
// The standard builders are registered in this order:
//  1. CMakeBuilder - generated CMake project
//  2. CompilerBuilder - direct compiler invocation
func NewBuilderFactory() *BuilderFactory {
	factory := &BuilderFactory{}

	// Register all standard builders in priority order
	factory.Register(&CMakeBuilder{})
	factory.Register(&CompilerBuilder{})

	return factory
}

// Register adds a new builder to the factory.
//
// Builders are checked in the order they are registered.
// Not thread-safe. Register all builders before concurrent use.
func (f *BuilderFactory) Register(builder Builder) {
	f.builders = append(f.builders, builder)
}

// BuilderFor returns the builder for the given generator name.
func (f *BuilderFactory) BuilderFor(generator string) (Builder, error) {
	generator = strings.TrimSpace(generator)

	if generator == "" || strings.EqualFold(generator, GeneratorAuto) {
		var reasons []string
		for _, builder := range f.builders {
			checker, ok := builder.(ToolChecker)
			if !ok {
				return builder, nil
			}
			err := checker.CheckTools()
			if err == nil {
				return builder, nil
			}
			reasons = append(reasons, fmt.Sprintf("%s: %v", builder.Name(), err))
		}
		return nil, fmt.Errorf("no usable builder: %s", strings.Join(reasons, "; "))
	}

	for _, builder := range f.builders {
		if builder.CanBuild(generator) {
			return builder, nil
		}
	}

	return nil, fmt.Errorf("no builder found for generator: %s", generator)
}

// ListBuilders returns a copy of all registered builders.
func (f *BuilderFactory) ListBuilders() []Builder {
	return append([]Builder{}, f.builders...)
}

// BuildAllTargets builds all targets in sequence with the builder selected
// for generator.
//
// # Return Values
//
// Returns a slice of BuildResult, one for each target processed, and the
// first error encountered (if any). Even if an error is returned, the
// results slice contains partial results.
//
// If config.StopOnFailure is true, processing stops after the first failed
// target. Otherwise all targets are processed.
//
// # Context Cancellation
//
// If the context is canceled during processing, processing stops, a
// BuildResult with the context error is added and that error is returned.
func (f *BuilderFactory) BuildAllTargets(ctx context.Context, config *BuildConfig, generator string, targets []*Target) ([]*BuildResult, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	builder, err := f.BuilderFor(generator)
	if err != nil {
		return []*BuildResult{{Success: false, Error: err}}, err
	}

	var results []*BuildResult
	var firstError error

	for _, target := range targets {
		// Check for context cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			if firstError == nil {
				firstError = ctxErr
			}
			results = append(results, &BuildResult{
				Target:  target.Name,
				Success: false,
				Error:   ctxErr,
			})
			break
		}

		result, err := builder.Build(ctx, config, target)
		if err != nil {
			if firstError == nil {
				firstError = err
			}
			// Ensure we have a result even if builder didn't return one
			if result == nil {
				result = &BuildResult{
					Target:  target.Name,
					Success: false,
					Error:   err,
				}
			}
		}

		results = append(results, result)

		// Stop on first failure if configured
		if !result.Success && config.StopOnFailure {
			break
		}
	}

	return results, firstError
}
