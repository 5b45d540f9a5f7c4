package pyext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"shanhu.io/misc/errcode"
)

// fallbackVersion is reported when the repository has no tag yet.
const fallbackVersion = "0.1"

var (
	describeTagged   = regexp.MustCompile(`([\w\d\.]+)-(\d+)-g([\w\d]+)(?:-(dirty))?`)
	describeUntagged = regexp.MustCompile(`([\w\d]+)(?:-(dirty))?`)
	versionModuleRE  = regexp.MustCompile(`\s+result = "(.*)"`)
	condaVersionRE   = regexp.MustCompile(`\{% set version = ".*" %\}`)
	sphinxAssignRE   = regexp.MustCompile(`^(\w+)\s+=\s+(.*)`)
)

// DefaultCopyrightHolder is stamped into the Sphinx copyright line.
const DefaultCopyrightHolder = "CNES/CLS"

// Version is the release information derived from git.
type Version struct {
	Version string    // Last tag, or 0.1 without tags
	Commits int       // Commits since the tag
	SHA1    string    // Abbreviated commit id from git describe
	Dirty   bool      // Work tree has local modifications
	Date    time.Time // Commit time, zero when unknown
}

// ParseDescribe parses the output of
// `git describe --tags --dirty --long --always`.
func ParseDescribe(out string) (*Version, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, errcode.InvalidArgf("empty git describe output")
	}

	if m := describeTagged.FindStringSubmatch(out); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, errcode.Annotatef(err, "commit count %q", m[2])
		}
		return &Version{
			Version: m[1],
			Commits: n,
			SHA1:    m[3],
			Dirty:   m[4] != "",
		}, nil
	}

	m := describeUntagged.FindStringSubmatch(out)
	if m == nil {
		return nil, errcode.InvalidArgf("unrecognized git describe output %q", out)
	}
	return &Version{
		Version: fallbackVersion,
		SHA1:    m[1],
		Dirty:   m[2] != "",
	}, nil
}

// GitVersion describes the repository at dir, including the commit date.
func GitVersion(ctx context.Context, dir string) (*Version, error) {
	describe := execCommandContext(ctx, "git", "describe", "--tags", "--dirty", "--long", "--always")
	describe.Dir = dir
	out, err := describe.Output()
	if err != nil {
		return nil, errcode.Annotate(err, "git describe")
	}

	v, err := ParseDescribe(string(out))
	if err != nil {
		return nil, err
	}

	log := execCommandContext(ctx, "git", "log", v.SHA1, "-1", "--format=%H %at")
	log.Dir = dir
	out, err = log.Output()
	if err != nil {
		return nil, errcode.Annotate(err, "git log")
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return nil, errcode.InvalidArgf("unexpected git log output %q", out)
	}
	sec, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, errcode.Annotatef(err, "commit time %q", fields[1])
	}
	v.Date = time.Unix(sec, 0).UTC()
	return v, nil
}

var versionModuleTemplate = template.Must(template.New("version.py").Parse(`"""
Get software version information
================================
"""


def release(full: bool = False) -> str:
    """Returns the software version number"""
    result = "{{.Version}}"
    if full:
        result += " ({{.Date.Format "02 January 2006"}})"
    return result
`))

// RenderVersionModule returns the Python module exposing release().
func RenderVersionModule(v *Version) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := versionModuleTemplate.Execute(buf, v); err != nil {
		return nil, errcode.Annotate(err, "render version module")
	}
	return buf.Bytes(), nil
}

// ReadVersionModule extracts the version from a previously rendered
// module. It serves builds from a source distribution without git history.
func ReadVersionModule(src []byte) (string, error) {
	m := versionModuleRE.FindSubmatch(src)
	if m == nil {
		return "", errcode.NotFoundf("no version in module")
	}
	return string(m[1]), nil
}

// rewriteLines replaces every line for which f returns a non-empty string.
// Line endings are kept.
func rewriteLines(src []byte, f func(line string) string) []byte {
	buf := new(bytes.Buffer)
	for _, line := range bytes.SplitAfter(src, []byte("\n")) {
		body := bytes.TrimRight(line, "\r\n")
		repl := f(string(body))
		if repl == "" {
			buf.Write(line)
			continue
		}
		buf.WriteString(repl)
		buf.Write(line[len(body):])
	}
	return buf.Bytes()
}

// UpdateCondaMeta sets the version of a conda recipe. Lines holding
// `{% set version = "..." %}` are replaced; the rest of the recipe is
// kept as is.
func UpdateCondaMeta(src []byte, version string) []byte {
	return rewriteLines(src, func(line string) string {
		if !condaVersionRE.MatchString(line) {
			return ""
		}
		return fmt.Sprintf(`{%% set version = "%s" %%}`, version)
	})
}

// UpdateSphinxConf sets version, release and copyright of a Sphinx
// conf.py. The copyright year is the commit year; it is left untouched
// when the commit date is unknown.
func UpdateSphinxConf(src []byte, v *Version, holder string) []byte {
	return rewriteLines(src, func(line string) string {
		m := sphinxAssignRE.FindStringSubmatch(line)
		if m == nil {
			return ""
		}
		switch m[1] {
		case "version", "release":
			return m[1] + " = " + pythonString(v.Version)
		case "copyright":
			if v.Date.IsZero() {
				return ""
			}
			return "copyright = " + pythonString(fmt.Sprintf("(%d, %s)", v.Date.Year(), holder))
		}
		return ""
	})
}

// pythonString quotes s the way Python's repr does for str.
func pythonString(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = `"`
	}
	r := strings.NewReplacer(`\`, `\\`, quote, `\`+quote, "\n", `\n`, "\t", `\t`)
	return quote + r.Replace(s) + quote
}

// StampFile rewrites the file at path with update and reports whether its
// content changed.
func StampFile(ctx context.Context, path string, update func([]byte) []byte) (bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return false, errcode.Annotatef(err, "read %q", path)
	}
	return writeGenerated(ctx, path, update(src))
}
