package main

import (
	"shanhu.io/misc/flagutil"

	"github.com/contriboss/python-extension-go"
)

var cmdFlags = flagutil.NewFactory("pyext")

type logFlags struct {
	level  string
	format string
}

func declareLogFlags(flags *flagutil.FlagSet, f *logFlags) {
	flags.StringVar(&f.level, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&f.format, "log-format", "text", "log format: text or json")
}

type projectFlags struct {
	config    pyext.BuildConfig
	manifest  string
	generator string
	debug     bool
	log       logFlags
}

func declareProjectFlags(flags *flagutil.FlagSet, f *projectFlags) {
	c := &f.config
	flags.StringVar(&c.ProjectDir, "project", ".", "project source directory")
	flags.StringVar(&f.manifest, "manifest", "", "manifest file, defaults to <project>/extension.hcl")
	flags.StringVar(&c.BuildDir, "build", "", "build directory, defaults to <project>/build")
	flags.StringVar(&c.Prefix, "prefix", "", "installation prefix")
	flags.StringVar(&c.DestDir, "destdir", "", "staging root prepended to the prefix")
	flags.BoolVar(&f.debug, "debug", false, "build with debug information")
	flags.StringVar(&c.CXXCompiler, "cxx", "", "C++ compiler")
	flags.StringVar(&c.Eigen3IncludeDir, "eigen-root", "", "Eigen3 include directory")
	flags.StringVar(&c.MKLRoot, "mkl-root", "", "Intel MKL installation root")
	flags.BoolVar(&c.DisableOptional, "no-optional", false, "never link optional dependencies")
	flags.StringVar(&c.PythonPath, "python", "", "python interpreter")
	flags.StringVar(&f.generator, "generator", pyext.GeneratorAuto, "builder: auto, cmake or compiler")
	flags.IntVar(&c.Parallel, "j", 0, "parallel jobs, 0 for the number of CPUs")
	flags.BoolVar(&c.Verbose, "verbose", false, "print build commands and output")
	flags.BoolVar(&c.StopOnFailure, "stop", true, "stop after the first failed module")
	declareLogFlags(flags, &f.log)
}

func (f *projectFlags) buildConfig() *pyext.BuildConfig {
	c := f.config
	c.BuildType = pyext.BuildTypeRelease
	if f.debug {
		c.BuildType = pyext.BuildTypeDebug
	}
	return &c
}
