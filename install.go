package pyext

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
	"shanhu.io/misc/errcode"
)

var nativeLibraryExtensions = []string{".so", ".pyd", ".dll", ".dylib"}

func isNativeLibrary(path string) bool {
	return MatchesExtension(path, nativeLibraryExtensions...)
}

// installRoot returns the directory the prefix maps to on disk, honouring
// a DESTDIR-style staging root.
func installRoot(config *BuildConfig) string {
	if config.DestDir == "" {
		return config.Prefix
	}
	prefix := strings.TrimPrefix(config.Prefix, filepath.VolumeName(config.Prefix))
	return filepath.Join(config.DestDir, prefix)
}

// InstallTarget copies the built module of target to
// <prefix>/<destination>/ and records the installed paths, relative to the
// prefix, on the target. The destination does not depend on which
// optional dependencies were linked.
func InstallTarget(ctx context.Context, config *BuildConfig, target *Target) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	if target.State() != StateBuilt {
		return nil, errcode.InvalidArgf(
			"target %q is %s, expected %s", target.Name, target.State(), StateBuilt,
		)
	}
	if config.Prefix == "" {
		return nil, errcode.InvalidArgf("target %q: no installation prefix", target.Name)
	}

	destination, err := safeRelativePath(target.InstallDestination)
	if err != nil {
		return nil, errcode.Annotatef(err, "target %q", target.Name)
	}
	destDir := filepath.Join(installRoot(config), destination)

	var installed []string
	for _, artifact := range target.Artifacts {
		if !isNativeLibrary(artifact) {
			continue
		}
		if info, err := os.Stat(artifact); err != nil || !info.Mode().IsRegular() {
			continue
		}

		name := filepath.Base(artifact)
		if err := copyFile(artifact, filepath.Join(destDir, name)); err != nil {
			return nil, errcode.Annotatef(err, "install %q", name)
		}
		rel := filepath.ToSlash(filepath.Join(destination, name))
		installed = append(installed, rel)
		logger.Info("Installed.", "target", target.Name, "path", rel, "prefix", config.Prefix)
	}

	if len(installed) == 0 {
		return nil, errcode.NotFoundf("target %q: no built module to install", target.Name)
	}

	target.Installed = installed
	if err := target.advance(StateInstalled); err != nil {
		return nil, err
	}
	return installed, nil
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// safeRelativePath cleans a destination and rejects ones that leave the
// prefix.
func safeRelativePath(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errcode.InvalidArgf("install destination %q leaves the prefix", path)
	}
	return clean, nil
}
