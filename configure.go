package pyext

import (
	"context"
	"path/filepath"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"shanhu.io/misc/errcode"
)

// ConfigureModule turns a module declaration into a configured target:
// sources are discovered, link mode applied, optional dependencies
// resolved and the install rule recorded.
//
// env may be nil when no interpreter is available; the platform default
// module suffix is then used.
func ConfigureModule(
	ctx context.Context, config *BuildConfig, registry *DependencyRegistry,
	spec *ModuleSpec, env *PythonEnv,
) (*Target, error) {
	logger := ctxlog.FromContext(ctx)

	projectDir, err := filepath.Abs(config.ProjectDir)
	if err != nil {
		return nil, errcode.Annotatef(err, "resolve project dir %q", config.ProjectDir)
	}

	target := DeclareTarget(spec.Name, projectDir)
	target.Python = env

	var skip []string
	if config.BuildDir != "" {
		buildDir, err := filepath.Abs(config.BuildDir)
		if err != nil {
			return nil, errcode.Annotatef(err, "resolve build dir %q", config.BuildDir)
		}
		skip = append(skip, buildDir)
	}

	sources, err := DiscoverSources(projectDir, spec.Sources, spec.Exclude, skip)
	if err != nil {
		return nil, errcode.Annotatef(err, "target %q: discover sources", spec.Name)
	}
	if len(sources) == 0 {
		return nil, errcode.InvalidArgf(
			"target %q: no source file matches %v in %s",
			spec.Name, spec.Sources, projectDir,
		)
	}
	target.Sources = sources

	static := spec.StaticLink == nil || *spec.StaticLink
	target.LinkSearchStartStatic = static
	target.LinkSearchEndStatic = static

	if spec.CXXStandard != 0 {
		target.CXXStandard = spec.CXXStandard
	}
	if spec.Install != nil && spec.Install.Destination != "" {
		target.InstallDestination = filepath.ToSlash(filepath.Clean(spec.Install.Destination))
	}

	target.Defines = append(target.Defines, spec.Defines...)
	for _, dir := range spec.IncludeDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(projectDir, dir)
		}
		target.IncludeDirs = append(target.IncludeDirs, dir)
	}

	eigen, err := ResolveEigen(config, env)
	if err != nil {
		return nil, errcode.Annotatef(err, "target %q", spec.Name)
	}
	target.Eigen3Dir = eigen

	if err := ResolveDependencies(ctx, config, registry, target, spec.Dependencies); err != nil {
		return nil, err
	}

	fp, err := makeFingerprint(target)
	if err != nil {
		return nil, errcode.Annotatef(err, "target %q: fingerprint", spec.Name)
	}
	target.Fingerprint = fp

	if err := target.advance(StateConfigured); err != nil {
		return nil, err
	}

	logger.Info("Configured target.",
		"target", target.Name,
		"sources", len(target.Sources),
		"optional", target.FoundDependencies(),
		"destination", target.InstallDestination,
	)
	return target, nil
}
