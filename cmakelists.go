package pyext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"shanhu.io/misc/errcode"
)

var cmakeListsTemplate = template.Must(template.New("CMakeLists.txt").Funcs(template.FuncMap{
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"quote": cmakeQuote,
}).Parse(`# Generated by pyext; edits are overwritten on the next configure.
cmake_minimum_required(VERSION 3.12)
project({{.Name}} LANGUAGES CXX)

set(CMAKE_CXX_STANDARD {{.CXXStandard}})
set(CMAKE_CXX_STANDARD_REQUIRED ON)

find_package(pybind11 CONFIG REQUIRED)

set(SOURCES
{{- range .Sources}}
  {{quote .}}
{{- end}}
)

pybind11_add_module({{.Name}} ${SOURCES})
set_target_properties({{.Name}} PROPERTIES
  LINK_SEARCH_START_STATIC {{onoff .StartStatic}}
  LINK_SEARCH_END_STATIC {{onoff .EndStatic}})

if(EIGEN3_INCLUDE_DIR)
  target_include_directories({{.Name}} PRIVATE "${EIGEN3_INCLUDE_DIR}")
endif()
{{- if .IncludeDirs}}
target_include_directories({{.Name}} PRIVATE
{{- range .IncludeDirs}}
  {{quote .}}
{{- end}})
{{- end}}
{{- if .Defines}}
target_compile_definitions({{.Name}} PRIVATE
{{- range .Defines}}
  {{quote .}}
{{- end}})
{{- end}}
{{- if .LinkLibraries}}
target_link_libraries({{.Name}} PRIVATE
{{- range .LinkLibraries}}
  {{quote .}}
{{- end}})
{{- end}}

install(TARGETS {{.Name}} DESTINATION {{.Destination}})
`))

type cmakeListsData struct {
	Name          string
	CXXStandard   int
	Sources       []string
	StartStatic   bool
	EndStatic     bool
	IncludeDirs   []string
	Defines       []string
	LinkLibraries []string
	Destination   string
}

var cmakeQuoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

// cmakeQuote renders s as a CMake quoted argument, so values holding
// spaces or quotes stay one argument.
func cmakeQuote(s string) string {
	return `"` + cmakeQuoteReplacer.Replace(s) + `"`
}

func cmakePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

// RenderCMakeLists returns the CMake project for a configured target. The
// output depends only on the target, so repeated configure runs over the
// same tree produce identical bytes.
func RenderCMakeLists(t *Target) ([]byte, error) {
	data := &cmakeListsData{
		Name:          t.Name,
		CXXStandard:   t.CXXStandard,
		Sources:       cmakePaths(t.SourcePaths()),
		StartStatic:   t.LinkSearchStartStatic,
		EndStatic:     t.LinkSearchEndStatic,
		IncludeDirs:   cmakePaths(t.IncludeDirs),
		Defines:       t.Defines,
		LinkLibraries: cmakePaths(t.LinkLibraries),
		Destination:   t.InstallDestination,
	}

	buf := new(bytes.Buffer)
	if err := cmakeListsTemplate.Execute(buf, data); err != nil {
		return nil, errcode.Annotate(err, "render CMakeLists.txt")
	}
	return buf.Bytes(), nil
}

// writeGenerated writes content to path unless the file already holds
// exactly that content, so that the modification time only moves when the
// configuration does. It reports whether the file was written.
func writeGenerated(ctx context.Context, path string, content []byte) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	old, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(old, content):
		return false, nil
	case err == nil:
		logger.Debug("Generated file changed.", "path", path, "diff", unifiedDiff(path, string(old), string(content)))
	case !os.IsNotExist(err):
		return false, errcode.Annotatef(err, "read %q", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errcode.Annotatef(err, "create dir for %q", path)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, errcode.Annotatef(err, "write %q", path)
	}
	return true, nil
}

func unifiedDiff(path, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	return fmt.Sprint(gotextdiff.ToUnified(path+" (previous)", path, before, edits))
}
