package flash

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
	"golang.org/x/exp/slices"
)

var ErrNoPort = errors.New("no suitable upload port found, ensure the device is connected")

// PortLister enumerates the serial ports present on the host
type PortLister interface {
	ListPorts() ([]*enumerator.PortDetails, error)
}

type systemPorts struct{}

func (systemPorts) ListPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// Detector picks the upload port out of the ports present on the host
type Detector struct {
	Lister   PortLister
	Patterns []string
	VID      string
	PID      string
	DevDir   string
}

func NewDetector(patterns []string, vid, pid, devDir string) *Detector {
	return &Detector{
		Lister:   systemPorts{},
		Patterns: patterns,
		VID:      vid,
		PID:      pid,
		DevDir:   devDir,
	}
}

// Matches reports whether the port looks like the board's USB-UART bridge
func (d *Detector) Matches(p *enumerator.PortDetails) bool {
	base := filepath.Base(p.Name)
	if !slices.ContainsFunc(d.Patterns, func(pat string) bool {
		return strings.Contains(base, pat)
	}) {
		return false
	}

	if d.VID != "" && !strings.EqualFold(p.VID, d.VID) {
		return false
	}
	if d.PID != "" && !strings.EqualFold(p.PID, d.PID) {
		return false
	}
	return true
}

// Detect returns the device path of the first matching port in enumeration
// order
func (d *Detector) Detect() (string, error) {
	ports, err := d.Lister.ListPorts()
	if err != nil {
		return "", errors.Wrap(err, "could not list serial ports")
	}

	for _, p := range ports {
		logrus.Debugf("port %s usb=%v vid=%s pid=%s", p.Name, p.IsUSB, p.VID, p.PID)
		if d.Matches(p) {
			return d.devicePath(p.Name), nil
		}
	}

	return "", ErrNoPort
}

// devicePath turns a bare port name into a path under the device directory
func (d *Detector) devicePath(name string) string {
	if runtime.GOOS == "windows" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.DevDir, name)
}

// Wait will detect the port, watching the device directory for new nodes
// until one matches, the timeout expires or ctx is done
func (d *Detector) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	if port, err := d.Detect(); err == nil || !errors.Is(err, ErrNoPort) {
		return port, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", errors.Wrap(err, "could not watch for ports")
	}
	defer watcher.Close()

	if err := watcher.Add(d.DevDir); err != nil {
		return "", errors.Wrapf(err, "could not watch %s", d.DevDir)
	}

	// a node may have appeared between the first scan and the watch
	if port, err := d.Detect(); err == nil || !errors.Is(err, ErrNoPort) {
		return port, err
	}

	logrus.Infof("Waiting up to %s for the board to be connected", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", errors.Wrapf(ErrNoPort, "timed out after %s", timeout)
		case ev, ok := <-watcher.Events:
			if !ok {
				return "", ErrNoPort
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			logrus.Debugf("device node created: %s", ev.Name)
			port, err := d.Detect()
			if err == nil {
				return port, nil
			}
			if !errors.Is(err, ErrNoPort) {
				return "", err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", ErrNoPort
			}
			logrus.Warn("port watch err: ", err.Error())
		}
	}
}
