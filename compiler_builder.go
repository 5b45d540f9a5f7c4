package pyext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// CompilerBuilder builds the target by calling the C++ compiler directly,
// without a generated build system.
//
// Every source is compiled to an object file in parallel, then all objects
// are linked into one shared module:
//
//	c++ -std=c++14 -fPIC -O3 -c a.cpp -o a.o
//	c++ -shared -o core.so a.o b.o -Wl,-Bstatic libmkl_rt.a
//
// Windows is not supported; use the CMake builder there.
type CompilerBuilder struct{}

// Name returns the builder name
func (b *CompilerBuilder) Name() string {
	return "Compiler"
}

// RequiredTools returns the tools needed for direct compilation
func (b *CompilerBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:         "c++",
			Alternatives: []string{"g++", "clang++"},
			Purpose:      "C++ compiler",
		},
	}
}

// CheckTools verifies that a compiler is available
func (b *CompilerBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder answers to the generator name
func (b *CompilerBuilder) CanBuild(generator string) bool {
	return MatchesPattern(strings.ToLower(generator), `^compiler$`, `^direct$`)
}

// Build compiles the target into a shared module
func (b *CompilerBuilder) Build(ctx context.Context, config *BuildConfig, target *Target) (*BuildResult, error) {
	return runCommonBuild(ctx, config, target, CommonBuildSteps{
		ConfigureFunc: b.prepare,
		BuildFunc:     b.compileAndLink,
		FindFunc:      moduleFinder(target),
	})
}

// Clean removes objects and the built module
func (b *CompilerBuilder) Clean(_ context.Context, config *BuildConfig, target *Target) error {
	if err := os.RemoveAll(b.objectDir(config, target)); err != nil {
		return err
	}
	return os.RemoveAll(target.outputDir(config))
}

func (b *CompilerBuilder) objectDir(config *BuildConfig, target *Target) string {
	return filepath.Join(config.BuildDir, "obj", target.Name)
}

func (b *CompilerBuilder) objectPath(config *BuildConfig, target *Target, src string) string {
	return filepath.Join(b.objectDir(config, target), filepath.FromSlash(src)+".o")
}

// prepare checks the platform and creates the object tree
func (b *CompilerBuilder) prepare(_ context.Context, config *BuildConfig, target *Target, result *BuildResult) error {
	if goos == platformWindows {
		return fmt.Errorf("%s builder does not support %s, use the CMake builder", b.Name(), goos)
	}

	if config.CleanFirst {
		if err := os.RemoveAll(b.objectDir(config, target)); err != nil {
			return err
		}
	}

	for _, src := range target.Sources {
		dir := filepath.Dir(b.objectPath(config, target, src))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if config.Verbose {
		result.Output = append(result.Output, fmt.Sprintf("Compiling %d sources for %s", len(target.Sources), target.Name))
	}
	return nil
}

// compileFlags returns the flags shared by every compile job
func (b *CompilerBuilder) compileFlags(config *BuildConfig, target *Target) []string {
	flags := []string{
		fmt.Sprintf("-std=c++%d", target.CXXStandard),
		"-fPIC",
		"-fvisibility=hidden",
	}

	if config.buildType() == BuildTypeDebug {
		flags = append(flags, "-O0", "-g")
	} else {
		flags = append(flags, "-O3", "-DNDEBUG")
	}

	for _, d := range target.Defines {
		flags = append(flags, "-D"+d)
	}

	includes := append([]string{}, target.IncludeDirs...)
	if target.Eigen3Dir != "" {
		includes = append(includes, target.Eigen3Dir)
	}
	includes = append(includes, target.Python.includeDirs()...)
	for _, dir := range includes {
		flags = append(flags, "-I"+dir)
	}

	return append(flags, config.BuildArgs...)
}

// linkArgs returns the arguments of the final shared link
func (b *CompilerBuilder) linkArgs(config *BuildConfig, target *Target, objects []string) []string {
	args := []string{"-shared", "-o", filepath.Join(target.outputDir(config), target.FileName())}
	args = append(args, objects...)

	if goos == platformDarwin {
		// Python symbols are resolved by the interpreter at load time.
		args = append(args, "-undefined", "dynamic_lookup")
		return append(args, target.LinkLibraries...)
	}

	if target.LinkSearchStartStatic {
		args = append(args, "-Wl,-Bstatic")
	}
	args = append(args, target.LinkLibraries...)
	switch {
	case target.LinkSearchEndStatic && !target.LinkSearchStartStatic:
		args = append(args, "-Wl,-Bstatic")
	case !target.LinkSearchEndStatic && target.LinkSearchStartStatic:
		args = append(args, "-Wl,-Bdynamic")
	}
	return args
}

// compileAndLink compiles all sources concurrently and links the module
func (b *CompilerBuilder) compileAndLink(ctx context.Context, config *BuildConfig, target *Target, result *BuildResult) error {
	logger := ctxlog.FromContext(ctx)

	compiler, err := b.cxxCompiler(config)
	if err != nil {
		result.MissingDependencies = append(result.MissingDependencies, "c++")
		return err
	}

	flags := b.compileFlags(config, target)
	objects := make([]string, len(target.Sources))
	outputs := make([]*BuildResult, len(target.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelJobs(config))
	for i, src := range target.Sources {
		i, src := i, src
		objects[i] = b.objectPath(config, target, src)
		outputs[i] = &BuildResult{}

		g.Go(func() error {
			args := append(append([]string{}, flags...),
				"-c", filepath.Join(target.SourceDir, filepath.FromSlash(src)),
				"-o", objects[i],
			)
			logger.Debug("Compiling.", "target", target.Name, "source", src)
			if err := runTool(gctx, config, target.SourceDir, outputs[i], compiler, args...); err != nil {
				return fmt.Errorf("compile %s: %w", src, err)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	// Keep output in source order regardless of completion order.
	for _, out := range outputs {
		if out != nil {
			result.Output = append(result.Output, out.Output...)
		}
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return BuildError(b.Name(), result.Output, waitErr)
	}

	if err := runTool(ctx, config, target.SourceDir, result, compiler, b.linkArgs(config, target, objects)...); err != nil {
		return BuildError("Link", result.Output, err)
	}
	return nil
}

// cxxCompiler picks the compiler from the config, $CXX or the PATH
func (b *CompilerBuilder) cxxCompiler(config *BuildConfig) (string, error) {
	if config.CXXCompiler != "" {
		return config.CXXCompiler, nil
	}
	if cxx := os.Getenv("CXX"); cxx != "" {
		return cxx, nil
	}
	for _, name := range []string{"c++", "g++", "clang++"} {
		if path, err := execLookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no C++ compiler found in PATH")
}
