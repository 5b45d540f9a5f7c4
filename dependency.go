package pyext

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

// MKLDefine switches Eigen to the MKL backend for every supported routine.
const MKLDefine = "EIGEN_USE_MKL_ALL"

// DependencyResult is the outcome of probing for one optional dependency.
type DependencyResult struct {
	Name        string
	Found       bool
	Root        string
	Defines     []string
	IncludeDirs []string
	Libraries   []string // Full paths, in link order
}

// DependencyProbe looks for an optional library on the host.
//
// Probe returns a result with Found=false when the library is absent.
// An error is reserved for a broken environment (unreadable paths, etc.)
// and is not expected in normal operation.
type DependencyProbe interface {
	Name() string
	Probe(ctx context.Context, config *BuildConfig, env *PythonEnv) (*DependencyResult, error)
}

// DependencyRegistry maps optional dependency names to their probes.
type DependencyRegistry struct {
	probes map[string]DependencyProbe
}

// NewDependencyRegistry returns a registry with the MKL probe registered.
func NewDependencyRegistry() *DependencyRegistry {
	r := &DependencyRegistry{probes: make(map[string]DependencyProbe)}
	r.Register(&MKLProbe{})
	return r
}

// Register adds or replaces a probe. Not thread-safe.
func (r *DependencyRegistry) Register(p DependencyProbe) {
	r.probes[p.Name()] = p
}

// Lookup returns the probe registered under name.
func (r *DependencyRegistry) Lookup(name string) (DependencyProbe, bool) {
	p, ok := r.probes[name]
	return p, ok
}

// Names lists the registered probes, sorted.
func (r *DependencyRegistry) Names() []string {
	var names []string
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveDependencies probes every requested dependency and folds the found
// ones into the target. Absent dependencies leave the target untouched.
func ResolveDependencies(
	ctx context.Context, config *BuildConfig, registry *DependencyRegistry,
	target *Target, specs []*DependencySpec,
) error {
	logger := ctxlog.FromContext(ctx)

	for _, spec := range specs {
		probe, ok := registry.Lookup(spec.Name)
		if !ok {
			return errcode.InvalidArgf(
				"target %q: unknown optional dependency %q", target.Name, spec.Name,
			)
		}

		res := &DependencyResult{Name: spec.Name}
		if !config.DisableOptional {
			r, err := probe.Probe(ctx, config, target.Python)
			if err != nil {
				return errcode.Annotatef(err, "probe %q", spec.Name)
			}
			res = r
		}

		if res.Found && spec.Define != "" {
			res.Defines = []string{spec.Define}
		}
		target.Dependencies = append(target.Dependencies, res)

		if !res.Found {
			logger.Debug("Optional dependency not found, using reference implementation.",
				"target", target.Name, "dependency", spec.Name)
			continue
		}

		logger.Info("Optional dependency found.",
			"target", target.Name, "dependency", spec.Name, "root", res.Root)
		target.Defines = append(target.Defines, res.Defines...)
		target.IncludeDirs = append(target.IncludeDirs, res.IncludeDirs...)
		target.LinkLibraries = append(target.LinkLibraries, res.Libraries...)
	}
	return nil
}

// MKLProbe finds an Intel MKL installation.
type MKLProbe struct {
	// Roots overrides the default search list when non-empty.
	Roots []string
}

// Name returns the dependency name used in manifests.
func (p *MKLProbe) Name() string { return "mkl" }

func (p *MKLProbe) searchRoots(config *BuildConfig, env *PythonEnv) []string {
	if len(p.Roots) > 0 {
		return p.Roots
	}

	var roots []string
	if config.MKLRoot != "" {
		roots = append(roots, config.MKLRoot)
	}
	if root := os.Getenv("MKLROOT"); root != "" {
		roots = append(roots, root)
	}
	if env != nil && env.Prefix != "" {
		roots = append(roots, env.Prefix)
		if goos == platformWindows {
			roots = append(roots, filepath.Join(env.Prefix, "Library"))
		}
	}
	if goos != platformWindows {
		roots = append(roots, "/opt/intel/oneapi/mkl/latest", "/opt/intel/mkl")
	}
	return roots
}

// Probe checks each candidate root in order and returns the first usable one.
func (p *MKLProbe) Probe(ctx context.Context, config *BuildConfig, env *PythonEnv) (*DependencyResult, error) {
	logger := ctxlog.FromContext(ctx)

	for _, root := range p.searchRoots(config, env) {
		res, err := probeMKLRoot(root)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		logger.Debug("No MKL installation.", "root", root)
	}
	return &DependencyResult{Name: p.Name()}, nil
}

// MKL library names without platform prefix/suffix.
var (
	mklRuntime = "mkl_rt"
	mklTrio    = []string{"mkl_intel_lp64", "mkl_sequential", "mkl_core"}
)

func probeMKLRoot(root string) (*DependencyResult, error) {
	include := filepath.Join(root, "include")
	header := filepath.Join(include, "mkl.h")
	ok, err := osutil.IsRegular(header)
	if err != nil && !os.IsNotExist(err) {
		return nil, errcode.Annotatef(err, "stat %q", header)
	}
	if !ok {
		return nil, nil
	}

	for _, libDir := range mklLibDirs(root) {
		if lib := findLibrary(libDir, mklRuntime); lib != "" {
			return &DependencyResult{
				Name:        "mkl",
				Found:       true,
				Root:        root,
				IncludeDirs: []string{include},
				Libraries:   []string{lib},
			}, nil
		}

		var libs []string
		for _, name := range mklTrio {
			lib := findLibrary(libDir, name)
			if lib == "" {
				break
			}
			libs = append(libs, lib)
		}
		if len(libs) == len(mklTrio) {
			return &DependencyResult{
				Name:        "mkl",
				Found:       true,
				Root:        root,
				IncludeDirs: []string{include},
				Libraries:   libs,
			}, nil
		}
	}
	return nil, nil
}

func mklLibDirs(root string) []string {
	return []string{
		filepath.Join(root, "lib", "intel64"),
		filepath.Join(root, "lib"),
	}
}

// findLibrary returns the path of the named library in dir. Static archives
// are preferred since the target links in static search mode.
func findLibrary(dir, name string) string {
	var candidates []string
	switch goos {
	case platformWindows:
		candidates = []string{name + ".lib"}
	case platformDarwin:
		candidates = []string{"lib" + name + ".a", "lib" + name + ".dylib"}
	default:
		candidates = []string{"lib" + name + ".a", "lib" + name + ".so"}
	}

	for _, c := range candidates {
		p := filepath.Join(dir, c)
		if ok, err := osutil.IsRegular(p); err == nil && ok {
			return p
		}
	}
	return ""
}
