// Package patch rewrites the esptool upload branch of the espressif32
// platform builder so uploads run esptool as a python module.
package patch

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"
)

var ErrBuilderNotFound = errors.New("could not find the main.py file")
var ErrNoEsptoolBranch = errors.New("no esptool upload branch in builder script")

// DefaultPlatforms are tried in order under the platforms directory
var DefaultPlatforms = []string{"espressif32@3.5.0", "espressif32"}

var esptoolBranchRe = regexp.MustCompile(`elif upload_protocol\s*==\s*["']esptool["']:\s*(?:\n[ \t]+.*)+`)

// CoreDir returns the PlatformIO core directory, honouring
// PLATFORMIO_CORE_DIR
func CoreDir() (string, error) {
	if dir := os.Getenv("PLATFORMIO_CORE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find home directory")
	}
	return filepath.Join(home, ".platformio"), nil
}

// Locate returns the path of the first builder script found for platforms
// under coreDir
func Locate(coreDir string, platforms []string) (string, error) {
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}

	for _, p := range platforms {
		path := filepath.Join(coreDir, "platforms", p, "builder", "main.py")
		fi, err := os.Stat(path)
		if err == nil && !fi.IsDir() {
			return path, nil
		}
		logrus.Debugf("no builder at %s", path)
	}

	return "", errors.Wrapf(ErrBuilderNotFound, "looked in %s", filepath.Join(coreDir, "platforms"))
}

// Apply replaces the esptool upload branch of a builder script. It reports
// false with the content untouched when the script is already patched.
func Apply(content string) (string, bool, error) {
	if strings.Contains(content, marker) {
		return content, false, nil
	}
	if !esptoolBranchRe.MatchString(content) {
		return "", false, ErrNoEsptoolBranch
	}

	updated := esptoolBranchRe.ReplaceAllLiteralString(content, esptoolBranchHead+"\n"+esptoolBranch)
	return updated, updated != content, nil
}

// Options controls how File writes the patched script
type Options struct {
	// Backup keeps the original next to the script as main.py.orig
	Backup bool
	// DryRun computes the result without writing anything
	DryRun bool
}

// Result describes the outcome of patching one builder script
type Result struct {
	Path    string
	Changed bool
	Diff    string
}

// File patches the builder script at path
func File(path string, opts Options) (*Result, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat builder")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read builder")
	}

	original := string(data)
	updated, changed, err := Apply(original)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	res := &Result{Path: path, Changed: changed}
	if !changed {
		logrus.Infof("%s is already patched", path)
		return res, nil
	}

	res.Diff, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(updated),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not diff builder")
	}

	if opts.DryRun {
		return res, nil
	}

	if opts.Backup {
		if err := os.WriteFile(path+".orig", data, fi.Mode().Perm()); err != nil {
			return nil, errors.Wrap(err, "could not write backup")
		}
	}

	if err := writeAtomic(path, []byte(updated), fi.Mode().Perm()); err != nil {
		return nil, err
	}

	logrus.Infof("Updated %s successfully.", path)
	return res, nil
}

// writeAtomic replaces path through a temp file in the same directory so an
// interrupted write never leaves a truncated builder behind
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "could not create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not write temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close temp file")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "could not replace builder")
}
