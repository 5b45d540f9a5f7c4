package pyext

import (
	"context"
	"os"
	"path/filepath"

	"github.com/contriboss/python-extension-go/internal/buildstate"
	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"shanhu.io/misc/errcode"
)

// Project ties a source tree, its manifest and the builders together.
type Project struct {
	Config       *BuildConfig
	Manifest     *Manifest
	Factory      *BuilderFactory
	Dependencies *DependencyRegistry
	Generator    string // Builder selection, see BuilderFactory.BuilderFor

	// Python, when set, is used instead of probing Config.PythonPath.
	Python *PythonEnv
}

// NewProject returns a project with the standard builders and probes. A
// nil manifest is loaded from the project directory.
func NewProject(ctx context.Context, config *BuildConfig, manifest *Manifest) (*Project, error) {
	if config.ProjectDir == "" {
		config.ProjectDir = "."
	}
	if config.BuildDir == "" {
		config.BuildDir = filepath.Join(config.ProjectDir, "build")
	}

	// Tools run inside the build tree, so both roots must be absolute.
	for _, dir := range []*string{&config.ProjectDir, &config.BuildDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, errcode.Annotatef(err, "resolve %q", *dir)
		}
		*dir = abs
	}

	if manifest == nil {
		m, err := LoadManifest(ctx, filepath.Join(config.ProjectDir, ManifestFile))
		if err != nil {
			return nil, err
		}
		manifest = m
	}

	return &Project{
		Config:       config,
		Manifest:     manifest,
		Factory:      NewBuilderFactory(),
		Dependencies: NewDependencyRegistry(),
		Generator:    GeneratorAuto,
	}, nil
}

func (p *Project) pythonEnv(ctx context.Context) *PythonEnv {
	if p.Python != nil {
		return p.Python
	}

	logger := ctxlog.FromContext(ctx)
	env, err := ProbePython(ctx, p.Config.PythonPath)
	if err != nil {
		logger.Warn("Python interpreter unavailable, using platform defaults.", "err", err)
		return nil
	}
	logger.Debug("Probed python.", "python", env.String(), "ext_suffix", env.ExtSuffix)
	p.Python = env
	return env
}

func (p *Project) openState() (*buildstate.Store, error) {
	if err := os.MkdirAll(p.Config.BuildDir, 0o755); err != nil {
		return nil, errcode.Annotatef(err, "create build dir %q", p.Config.BuildDir)
	}
	return buildstate.Open(filepath.Join(p.Config.BuildDir, buildstate.FileName))
}

// Configure configures every module of the manifest and records the
// result in the build state. Targets whose fingerprint matches the last
// run are marked Unchanged.
func (p *Project) Configure(ctx context.Context) ([]*Target, error) {
	env := p.pythonEnv(ctx)

	store, err := p.openState()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var targets []*Target
	for _, spec := range p.Manifest.Modules {
		target, err := ConfigureModule(ctx, p.Config, p.Dependencies, spec, env)
		if err != nil {
			return nil, err
		}

		prev, err := store.Lookup(ctx, target.Name)
		switch {
		case err == nil:
			target.Unchanged = prev.Fingerprint == target.Fingerprint
		case !errcode.IsNotFound(err):
			return nil, err
		}

		if !target.Unchanged {
			rec := &buildstate.Record{
				Target:      target.Name,
				Fingerprint: target.Fingerprint,
				Sources:     len(target.Sources),
				Optional:    target.FoundDependencies(),
			}
			if err := store.Put(ctx, rec); err != nil {
				return nil, err
			}
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// Build configures and builds every module.
func (p *Project) Build(ctx context.Context) ([]*Target, []*BuildResult, error) {
	targets, err := p.Configure(ctx)
	if err != nil {
		return nil, nil, err
	}

	results, err := p.Factory.BuildAllTargets(ctx, p.Config, p.Generator, targets)
	return targets, results, err
}

// Install installs every built target. Targets that were not built are
// reported as errors.
func (p *Project) Install(ctx context.Context, targets []*Target) ([]string, error) {
	var installed []string
	for _, target := range targets {
		paths, err := InstallTarget(ctx, p.Config, target)
		if err != nil {
			return installed, err
		}
		installed = append(installed, paths...)
	}
	return installed, nil
}

// Clean removes the build artifacts of every module using every
// registered builder, and forgets their configure records.
func (p *Project) Clean(ctx context.Context) error {
	store, err := p.openState()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, spec := range p.Manifest.Modules {
		target := DeclareTarget(spec.Name, p.Config.ProjectDir)
		for _, builder := range p.Factory.ListBuilders() {
			if err := builder.Clean(ctx, p.Config, target); err != nil {
				return errcode.Annotatef(err, "%s clean %q", builder.Name(), spec.Name)
			}
		}
		if err := store.Delete(ctx, spec.Name); err != nil {
			return err
		}
	}
	return nil
}
