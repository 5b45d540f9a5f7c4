package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/contriboss/python-extension-go"
	"github.com/contriboss/python-extension-go/internal/ctxlog"
)

func TestVersionFlags(t *testing.T) {
	f := new(versionFlags)
	flags := cmdFlags.New()
	declareVersionFlags(flags, f)
	declareLogFlags(flags, &f.log)
	flags.ParseArgs([]string{"-dir", "/src/tides", "-log-level", "debug", "-log-format", "json"})

	if f.dir != "/src/tides" || f.copyright != pyext.DefaultCopyrightHolder {
		t.Errorf("unexpected flags %+v", f)
	}
	if f.log.level != "debug" || f.log.format != "json" {
		t.Errorf("log flags = %+v", f.log)
	}

	buf := new(bytes.Buffer)
	ctx := loggingContext(&f.log, buf)
	ctxlog.FromContext(ctx).Debug("stamping", "dir", f.dir)
	if !strings.Contains(buf.String(), `"msg":"stamping"`) {
		t.Errorf("expected a JSON debug record, got %q", buf.String())
	}
}

func TestStampVersion(t *testing.T) {
	dir := t.TempDir()
	for path, content := range map[string]string{
		"conda/meta.yaml":     "{% set version = \"0.1\" %}\n",
		"docs/source/conf.py": "version = '0.1'\nrelease = '0.1'\ncopyright = '(2019, CNES/CLS)'\n",
	} {
		p := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	buf := new(bytes.Buffer)
	f := &versionFlags{
		dir:       dir,
		write:     filepath.Join(dir, "version.py"),
		copyright: pyext.DefaultCopyrightHolder,
		log:       logFlags{level: "debug", format: "text"},
	}
	v := &pyext.Version{Version: "2024.2.0", Date: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)}
	if err := stampVersion(loggingContext(&f.log, buf), f, v); err != nil {
		t.Fatalf("stampVersion: %v", err)
	}

	for path, want := range map[string]string{
		"conda/meta.yaml":     "{% set version = \"2024.2.0\" %}\n",
		"docs/source/conf.py": "version = '2024.2.0'\nrelease = '2024.2.0'\ncopyright = '(2024, CNES/CLS)'\n",
	} {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(path)))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s holds %q, want %q", path, got, want)
		}
	}

	module, err := os.ReadFile(f.write)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(module), `result = "2024.2.0"`) {
		t.Errorf("unexpected version module:\n%s", module)
	}
	if !strings.Contains(buf.String(), "Stamped conda recipe.") {
		t.Errorf("expected debug log of the stamped recipe, got:\n%s", buf.String())
	}
}

func TestStampVersionWithoutPackaging(t *testing.T) {
	f := &versionFlags{dir: t.TempDir()}
	v := &pyext.Version{Version: "0.1"}
	if err := stampVersion(loggingContext(&f.log, new(bytes.Buffer)), f, v); err != nil {
		t.Fatalf("stampVersion: %v", err)
	}

	f.condaMeta = filepath.Join(f.dir, "missing.yaml")
	if err := stampVersion(loggingContext(&f.log, new(bytes.Buffer)), f, v); err == nil {
		t.Error("expected error for an explicit recipe that does not exist")
	}
}
