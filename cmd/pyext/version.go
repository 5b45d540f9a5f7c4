package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/flagutil"

	"github.com/contriboss/python-extension-go"
	"github.com/contriboss/python-extension-go/internal/ctxlog"
)

type versionFlags struct {
	dir        string
	write      string
	full       bool
	condaMeta  string
	sphinxConf string
	copyright  string
	log        logFlags
}

func declareVersionFlags(flags *flagutil.FlagSet, f *versionFlags) {
	flags.StringVar(&f.dir, "dir", ".", "git repository")
	flags.StringVar(&f.write, "write", "", "write the version module to this file")
	flags.BoolVar(&f.full, "full", false, "print the commit date too")
	flags.StringVar(&f.condaMeta, "conda-meta", "", "conda recipe to stamp, defaults to <dir>/conda/meta.yaml when present")
	flags.StringVar(&f.sphinxConf, "sphinx-conf", "", "Sphinx conf.py to stamp, defaults to <dir>/docs/source/conf.py when present")
	flags.StringVar(&f.copyright, "copyright", pyext.DefaultCopyrightHolder, "copyright holder stamped into conf.py")
}

// stampTarget resolves a file to stamp. An explicit path must exist; the
// default path is skipped when absent.
func stampTarget(explicit, dir string, def ...string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errcode.Annotatef(err, "stat %q", explicit)
		}
		return explicit, nil
	}
	p := filepath.Join(append([]string{dir}, def...)...)
	if _, err := os.Stat(p); err != nil {
		return "", nil
	}
	return p, nil
}

func stampVersion(ctx context.Context, f *versionFlags, v *pyext.Version) error {
	logger := ctxlog.FromContext(ctx)

	meta, err := stampTarget(f.condaMeta, f.dir, "conda", "meta.yaml")
	if err != nil {
		return err
	}
	if meta != "" {
		changed, err := pyext.StampFile(ctx, meta, func(src []byte) []byte {
			return pyext.UpdateCondaMeta(src, v.Version)
		})
		if err != nil {
			return err
		}
		logger.Debug("Stamped conda recipe.", "path", meta, "changed", changed)
	}

	conf, err := stampTarget(f.sphinxConf, f.dir, "docs", "source", "conf.py")
	if err != nil {
		return err
	}
	if conf != "" {
		changed, err := pyext.StampFile(ctx, conf, func(src []byte) []byte {
			return pyext.UpdateSphinxConf(src, v, f.copyright)
		})
		if err != nil {
			return err
		}
		logger.Debug("Stamped Sphinx configuration.", "path", conf, "changed", changed)
	}

	if f.write == "" {
		return nil
	}
	out, err := pyext.RenderVersionModule(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.write, out, 0o644); err != nil {
		return errcode.Annotatef(err, "write %q", f.write)
	}
	logger.Info("Wrote version module.", "path", f.write, "version", v.Version)
	return nil
}

func cmdVersion(args []string) error {
	f := new(versionFlags)
	flags := cmdFlags.New()
	declareVersionFlags(flags, f)
	declareLogFlags(flags, &f.log)
	flags.ParseArgs(args)

	ctx := loggingContext(&f.log, os.Stderr)
	logger := ctxlog.FromContext(ctx)

	v, err := pyext.GitVersion(ctx, f.dir)
	if err != nil {
		// Source distributions carry the module but no git history.
		if f.write == "" {
			return err
		}
		logger.Warn("No git history, reading the version module.", "err", err, "path", f.write)
		src, readErr := os.ReadFile(f.write)
		if readErr != nil {
			return errcode.Annotate(err, "git version")
		}
		version, readErr := pyext.ReadVersionModule(src)
		if readErr != nil {
			return errcode.Annotatef(readErr, "read %q", f.write)
		}
		fmt.Println(version)
		return nil
	}

	if f.full && !v.Date.IsZero() {
		fmt.Printf("%s (%s)\n", v.Version, v.Date.Format("02 January 2006"))
	} else {
		fmt.Println(v.Version)
	}
	return stampVersion(ctx, f, v)
}
