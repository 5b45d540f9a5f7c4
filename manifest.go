package pyext

import (
	"context"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"shanhu.io/misc/errcode"
)

// ManifestFile is the manifest name looked up at the project root.
const ManifestFile = "extension.hcl"

// Manifest is the decoded form of an extension.hcl file.
type Manifest struct {
	Modules []*ModuleSpec `hcl:"module,block"`
}

// ModuleSpec declares one native extension module.
type ModuleSpec struct {
	Name         string            `hcl:"name,label"`
	Sources      []string          `hcl:"sources,optional"`
	Exclude      []string          `hcl:"exclude,optional"`
	StaticLink   *bool             `hcl:"static_link,optional"`
	CXXStandard  int               `hcl:"cxx_standard,optional"`
	Defines      []string          `hcl:"defines,optional"`
	IncludeDirs  []string          `hcl:"include_dirs,optional"`
	Dependencies []*DependencySpec `hcl:"optional_dependency,block"`
	Install      *InstallSpec      `hcl:"install,block"`
}

// DependencySpec requests an optional dependency for a module.
type DependencySpec struct {
	Name   string `hcl:"name,label"`
	Define string `hcl:"define,optional"`
}

// InstallSpec is the install rule of a module.
type InstallSpec struct {
	Destination string `hcl:"destination,optional"`
}

// DefaultManifest is used when the project carries no extension.hcl: a
// single "core" module built from every .cpp file, linked statically, with
// MKL as optional accelerator, installed to lib/tidal_constituents.
func DefaultManifest() *Manifest {
	static := true
	return &Manifest{
		Modules: []*ModuleSpec{{
			Name:        DefaultTargetName,
			Sources:     DefaultSourcePatterns,
			StaticLink:  &static,
			CXXStandard: DefaultCXXStandard,
			Dependencies: []*DependencySpec{{
				Name:   "mkl",
				Define: MKLDefine,
			}},
			Install: &InstallSpec{Destination: DefaultInstallDestination},
		}},
	}
}

// evalContext exposes os, arch and env to manifest expressions.
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"os":   cty.StringVal(runtime.GOOS),
			"arch": cty.StringVal(runtime.GOARCH),
			"env":  cty.ObjectVal(env),
		},
	}
}

// ParseManifest parses and decodes manifest source. filename is used in
// diagnostics only.
func ParseManifest(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errcode.InvalidArgf("parse %s: %s", filename, diags.Error())
	}

	m := new(Manifest)
	if diags := gohcl.DecodeBody(file.Body, evalContext(), m); diags.HasErrors() {
		return nil, errcode.InvalidArgf("decode %s: %s", filename, diags.Error())
	}
	if err := m.normalize(); err != nil {
		return nil, errcode.Annotate(err, filename)
	}
	return m, nil
}

// LoadManifest reads the manifest at path. A missing file yields the
// default manifest.
func LoadManifest(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No manifest, using defaults.", "path", path)
			return DefaultManifest(), nil
		}
		return nil, errcode.Annotatef(err, "read manifest %q", path)
	}

	m, err := ParseManifest(src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Decoded manifest.", "path", path, "modules", len(m.Modules))
	return m, nil
}

func (m *Manifest) normalize() error {
	if len(m.Modules) == 0 {
		return errcode.InvalidArgf("no module declared")
	}

	seen := make(map[string]bool)
	for _, mod := range m.Modules {
		if mod.Name == "" {
			return errcode.InvalidArgf("module with empty name")
		}
		if seen[mod.Name] {
			return errcode.InvalidArgf("module %q declared twice", mod.Name)
		}
		seen[mod.Name] = true

		if len(mod.Sources) == 0 {
			mod.Sources = DefaultSourcePatterns
		}
		if mod.StaticLink == nil {
			static := true
			mod.StaticLink = &static
		}
		if mod.CXXStandard == 0 {
			mod.CXXStandard = DefaultCXXStandard
		}
		if mod.Install == nil {
			mod.Install = &InstallSpec{}
		}
		if mod.Install.Destination == "" {
			mod.Install.Destination = DefaultInstallDestination
		}

		deps := make(map[string]bool)
		for _, dep := range mod.Dependencies {
			if deps[dep.Name] {
				return errcode.InvalidArgf(
					"module %q: optional dependency %q declared twice",
					mod.Name, dep.Name,
				)
			}
			deps[dep.Name] = true
			if dep.Name == "mkl" && dep.Define == "" {
				dep.Define = MKLDefine
			}
		}
	}
	return nil
}

// ModuleNames returns the declared module names, sorted.
func (m *Manifest) ModuleNames() []string {
	var names []string
	for _, mod := range m.Modules {
		names = append(names, mod.Name)
	}
	sort.Strings(names)
	return names
}
