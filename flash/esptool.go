package flash

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"
)

var ErrEsptoolNotFound = errors.New("could not find esptool")

// Executor runs an external command to completion
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) error
}

// ExecExecutor runs commands with os/exec and streams their output
type ExecExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (e ExecExecutor) Execute(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// Esptool wraps the invocation of the esptool flashing utility
type Esptool struct {
	Path   string
	Python string
	Home   string

	LookPath func(file string) (string, error)
	Exec     Executor

	name   string
	prefix []string
}

// NewEsptool returns a wrapper that prefers the executable at path and
// otherwise searches for esptool on the host
func NewEsptool(path, python string) *Esptool {
	home, _ := os.UserHomeDir()
	return &Esptool{
		Path:     path,
		Python:   python,
		Home:     home,
		LookPath: exec.LookPath,
		Exec:     ExecExecutor{},
	}
}

// Locate will find the esptool executable, returning the program to run and
// the arguments that must precede the esptool arguments
func (e *Esptool) Locate() (string, []string, error) {
	if e.name != "" {
		return e.name, e.prefix, nil
	}

	if e.Path != "" {
		if _, err := os.Stat(e.Path); err != nil {
			return "", nil, errors.Wrapf(ErrEsptoolNotFound, "configured path %s", e.Path)
		}
		e.name = e.Path
		return e.name, nil, nil
	}

	if p := e.arduinoEsptool(); p != "" {
		e.name = p
		return e.name, nil, nil
	}

	for _, bin := range []string{"esptool", "esptool.py"} {
		if p, err := e.LookPath(bin); err == nil {
			e.name = p
			return e.name, nil, nil
		}
	}

	py, err := e.LookPath(e.Python)
	if err != nil {
		return "", nil, errors.Wrapf(ErrEsptoolNotFound, "no esptool on PATH and no %s interpreter", e.Python)
	}
	e.name = py
	e.prefix = []string{"-m", "esptool"}
	return e.name, e.prefix, nil
}

// IsModule reports whether esptool runs as a python module rather than as a
// standalone executable
func (e *Esptool) IsModule() bool {
	return len(e.prefix) > 0
}

// arduinoEsptool returns the newest esptool shipped with the Arduino ESP32
// core, or "" when the core is not installed
func (e *Esptool) arduinoEsptool() string {
	if e.Home == "" {
		return ""
	}

	roots := []string{
		filepath.Join(e.Home, "Library", "Arduino15"),
		filepath.Join(e.Home, ".arduino15"),
		filepath.Join(e.Home, "AppData", "Local", "Arduino15"),
	}

	var best, bestVer string
	for _, root := range roots {
		dirs, _ := filepath.Glob(filepath.Join(root, "packages", "esp32", "tools", "esptool_py", "*"))
		for _, dir := range dirs {
			ver := "v" + strings.TrimPrefix(filepath.Base(dir), "v")
			for _, bin := range []string{"esptool", "esptool.exe", "esptool.py"} {
				p := filepath.Join(dir, bin)
				fi, err := os.Stat(p)
				if err != nil || fi.IsDir() {
					continue
				}
				if best == "" || semver.Compare(ver, bestVer) > 0 {
					best, bestVer = p, ver
				}
				break
			}
		}
	}

	if best != "" {
		logrus.Debugf("esptool from arduino15 %s: %s", bestVer, best)
	}
	return best
}

// EnsureInstalled will install esptool with pip when it only resolves to a
// python module that cannot be imported
func (e *Esptool) EnsureInstalled(ctx context.Context) error {
	if _, _, err := e.Locate(); err != nil {
		return err
	}
	if !e.IsModule() {
		return nil
	}

	if err := e.Exec.Execute(ctx, e.name, "-m", "esptool", "version"); err == nil {
		return nil
	}

	logrus.Info("esptool not found. Installing...")
	if err := e.Exec.Execute(ctx, e.name, "-m", "pip", "install", "--upgrade", "esptool"); err != nil {
		return errors.Wrap(err, "failed to install esptool")
	}
	logrus.Info("esptool installed successfully.")

	return nil
}

// Run will execute esptool with the provided arguments
func (e *Esptool) Run(ctx context.Context, args ...string) error {
	name, prefix, err := e.Locate()
	if err != nil {
		return err
	}

	full := append(append([]string(nil), prefix...), args...)
	logrus.Infof("Executing: %s", quoteArgs(name, full))

	if err := e.Exec.Execute(ctx, name, full...); err != nil {
		return errors.Wrap(err, "esptool failed")
	}
	return nil
}
