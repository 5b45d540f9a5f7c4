// Package pyext configures, builds and installs Python-loadable native
// extension modules from a tree of C++ sources.
//
// A project is described by an extension.hcl manifest at its root. When the
// manifest is missing, a single module named "core" is built from every
// .cpp file of the tree, linked statically, and installed under
// lib/tidal_constituents of the prefix.
//
// # Basic Usage
//
//	config := &pyext.BuildConfig{
//	    ProjectDir: "/path/to/project",
//	    BuildDir:   "/path/to/project/build",
//	    Prefix:     "/usr/local",
//	}
//
//	project, err := pyext.NewProject(ctx, config, nil)
//	if err != nil {
//	    return err
//	}
//	targets, results, err := project.Build(ctx)
//	if err != nil {
//	    return err
//	}
//	installed, err := project.Install(ctx, targets)
//
// # Architecture
//
// Every module goes through the same lifecycle:
//
//	Declared → Configured → Built → Installed
//
// Configure discovers sources, probes the Python interpreter and the
// optional dependencies (Intel MKL), and computes a fingerprint of the
// result. Building is done by one of the registered builders:
//
//	BuilderFactory
//	├── CMakeBuilder (generated CMakeLists.txt, pybind11)
//	└── CompilerBuilder (direct compiler invocation)
//
// A missing optional dependency is not an error: the module is built
// without it.
//
// # Platform Support
//
// Linux, macOS and Windows with CMake. The direct compiler builder does not
// support Windows.
package pyext
