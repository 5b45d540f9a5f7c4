package pyext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

const (
	platformWindows = "windows"
	platformDarwin  = "darwin"
	pythonCommand   = "python3"
)

// Indirections for tests.
var (
	goos               = runtime.GOOS
	execLookPath       = exec.LookPath
	execCommandContext = exec.CommandContext
)

// PythonEnv describes the interpreter the extension is built for.
type PythonEnv struct {
	Executable       string `json:"executable"`
	Version          string `json:"version"`
	Prefix           string `json:"prefix"`
	IncludeDir       string `json:"include"`
	ExtSuffix        string `json:"ext_suffix"`
	Pybind11Include  string `json:"pybind11_include"`
	Pybind11CMakeDir string `json:"pybind11_cmake_dir"`
}

const probeScript = `import json, sys, sysconfig
info = {
    "executable": sys.executable,
    "version": "%d.%d.%d" % sys.version_info[:3],
    "prefix": sys.prefix,
    "include": sysconfig.get_paths()["include"],
    "ext_suffix": sysconfig.get_config_var("EXT_SUFFIX") or "",
}
try:
    import pybind11
    info["pybind11_include"] = pybind11.get_include()
    info["pybind11_cmake_dir"] = pybind11.get_cmake_dir()
except Exception:
    pass
print(json.dumps(info))
`

// ProbePython queries the interpreter at python (or python3 on PATH when
// empty) for its prefix, headers and extension suffix.
func ProbePython(ctx context.Context, python string) (*PythonEnv, error) {
	if python == "" {
		path, err := execLookPath(pythonCommand)
		if err != nil {
			return nil, errcode.NotFoundf("%s not found in PATH", pythonCommand)
		}
		python = path
	}

	cmd := execCommandContext(ctx, python, "-c", probeScript)
	out, err := cmd.Output()
	if err != nil {
		return nil, errcode.Annotatef(err, "probe python %q", python)
	}

	env := new(PythonEnv)
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(out))), env); err != nil {
		return nil, errcode.Annotate(err, "decode python probe output")
	}
	if env.Executable == "" {
		env.Executable = python
	}
	return env, nil
}

// defaultExtSuffix is used when no interpreter could be queried.
func defaultExtSuffix(platform string) string {
	if platform == platformWindows {
		return ".pyd"
	}
	return ".so"
}

// IsConda reports whether prefix is the root of a conda environment.
func IsConda(prefix string) bool {
	if prefix == "" {
		return false
	}
	ok, err := osutil.IsDir(filepath.Join(prefix, "conda-meta"))
	return err == nil && ok
}

// ResolveEigen picks the Eigen3 include directory. An explicit setting
// wins. Inside a conda environment the environment's copy is required;
// elsewhere an empty result leaves the compiler's default search path.
func ResolveEigen(config *BuildConfig, env *PythonEnv) (string, error) {
	if config.Eigen3IncludeDir != "" {
		return config.Eigen3IncludeDir, nil
	}
	if env == nil || !IsConda(env.Prefix) {
		return "", nil
	}

	candidates := []string{
		filepath.Join(env.Prefix, "include", "eigen3"),
		filepath.Join(env.Prefix, "Library", "include", "eigen3"),
		filepath.Join(env.Prefix, "Library", "include"),
	}
	for _, dir := range candidates {
		if ok, err := osutil.IsDir(dir); err == nil && ok {
			return dir, nil
		}
	}
	return "", errcode.NotFoundf(
		"unable to find the Eigen3 library in the conda environment %s",
		env.Prefix,
	)
}

// includeDirs returns the Python and pybind11 header directories.
func (e *PythonEnv) includeDirs() []string {
	var dirs []string
	if e == nil {
		return dirs
	}
	if e.Pybind11Include != "" {
		dirs = append(dirs, e.Pybind11Include)
	}
	if e.IncludeDir != "" {
		dirs = append(dirs, e.IncludeDir)
	}
	return dirs
}

func (e *PythonEnv) String() string {
	if e == nil {
		return "<no python>"
	}
	return fmt.Sprintf("python %s (%s)", e.Version, e.Executable)
}

// applyBuildEnv adds config.Env on top of the environment of cmd.
func applyBuildEnv(cmd *exec.Cmd, config *BuildConfig) {
	if len(config.Env) == 0 {
		return
	}
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	for key, value := range config.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Env = env
}
