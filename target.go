package pyext

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Defaults applied to targets declared without explicit settings.
const (
	DefaultTargetName         = "core"
	DefaultInstallDestination = "lib/tidal_constituents"
	DefaultCXXStandard        = 14
)

// TargetState is the lifecycle position of a Target.
type TargetState int

// Target lifecycle. A target only ever moves one step forward.
const (
	StateDeclared TargetState = iota
	StateConfigured
	StateBuilt
	StateInstalled
)

func (s TargetState) String() string {
	switch s {
	case StateDeclared:
		return "declared"
	case StateConfigured:
		return "configured"
	case StateBuilt:
		return "built"
	case StateInstalled:
		return "installed"
	default:
		return fmt.Sprintf("TargetState(%d)", int(s))
	}
}

// Target is a single loadable native extension module and everything the
// builders need to compile, link and install it.
type Target struct {
	Name      string
	SourceDir string   // Absolute root of the sources
	Sources   []string // Slash-separated, relative to SourceDir, sorted

	Defines       []string // Preprocessor definitions, NAME or NAME=VALUE
	IncludeDirs   []string
	LinkLibraries []string // Library names or full paths

	// Static link-search mode at the start and the end of the link line.
	LinkSearchStartStatic bool
	LinkSearchEndStatic   bool

	CXXStandard        int
	InstallDestination string // Relative to the installation prefix

	Python       *PythonEnv
	Eigen3Dir    string
	Dependencies []*DependencyResult

	Fingerprint string
	Unchanged   bool // Fingerprint matched the previous configure run

	Artifacts []string // Absolute paths of built files
	Installed []string // Installed files, relative to the prefix

	state TargetState
}

// DeclareTarget returns a target in the declared state.
func DeclareTarget(name, sourceDir string) *Target {
	if name == "" {
		name = DefaultTargetName
	}
	return &Target{
		Name:               name,
		SourceDir:          sourceDir,
		CXXStandard:        DefaultCXXStandard,
		InstallDestination: DefaultInstallDestination,
		state:              StateDeclared,
	}
}

// State returns the current lifecycle state.
func (t *Target) State() TargetState { return t.state }

func (t *Target) advance(next TargetState) error {
	if next != t.state+1 {
		return fmt.Errorf(
			"target %q: cannot move from %s to %s", t.Name, t.state, next,
		)
	}
	t.state = next
	return nil
}

// ExtSuffix returns the platform file suffix of the built module.
func (t *Target) ExtSuffix() string {
	if t.Python != nil && t.Python.ExtSuffix != "" {
		return t.Python.ExtSuffix
	}
	return defaultExtSuffix(goos)
}

// FileName is the name of the built module file, e.g. core.cpython-311-x86_64-linux-gnu.so.
func (t *Target) FileName() string {
	return t.Name + t.ExtSuffix()
}

// SourcePaths returns the absolute path of every compilation unit.
func (t *Target) SourcePaths() []string {
	paths := make([]string, 0, len(t.Sources))
	for _, src := range t.Sources {
		paths = append(paths, filepath.Join(t.SourceDir, filepath.FromSlash(src)))
	}
	return paths
}

// HasDefine reports whether the exact definition is set on the target.
func (t *Target) HasDefine(define string) bool {
	for _, d := range t.Defines {
		if d == define {
			return true
		}
	}
	return false
}

// FoundDependencies lists the names of optional dependencies that were
// linked, sorted.
func (t *Target) FoundDependencies() []string {
	var names []string
	for _, dep := range t.Dependencies {
		if dep.Found {
			names = append(names, dep.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (t *Target) outputDir(config *BuildConfig) string {
	return filepath.Join(config.BuildDir, "lib", t.Name)
}
