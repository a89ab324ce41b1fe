package flash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestEsptoolLocate(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "esptool")
		writeExecutable(t, p)

		e := &Esptool{Path: p, LookPath: noLookPath}
		name, prefix, err := e.Locate()
		require.NoError(t, err)
		assert.Equal(t, p, name)
		assert.Empty(t, prefix)
		assert.False(t, e.IsModule())
	})

	t.Run("explicit path missing", func(t *testing.T) {
		e := &Esptool{Path: "/nonexistent/esptool", LookPath: noLookPath}
		_, _, err := e.Locate()
		assert.ErrorIs(t, err, ErrEsptoolNotFound)
	})

	t.Run("newest arduino15 package", func(t *testing.T) {
		home := t.TempDir()
		tools := filepath.Join(home, "Library", "Arduino15", "packages", "esp32", "tools", "esptool_py")
		writeExecutable(t, filepath.Join(tools, "4.5.1", "esptool"))
		writeExecutable(t, filepath.Join(tools, "4.10.0", "esptool"))
		writeExecutable(t, filepath.Join(tools, "3.0.0", "esptool"))

		e := &Esptool{Home: home, LookPath: noLookPath}
		name, _, err := e.Locate()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tools, "4.10.0", "esptool"), name)
	})

	t.Run("on PATH", func(t *testing.T) {
		e := &Esptool{Home: t.TempDir(), LookPath: func(f string) (string, error) {
			if f == "esptool.py" {
				return "/usr/bin/esptool.py", nil
			}
			return "", os.ErrNotExist
		}}
		name, prefix, err := e.Locate()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/esptool.py", name)
		assert.Empty(t, prefix)
	})

	t.Run("python module", func(t *testing.T) {
		e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: func(f string) (string, error) {
			if f == "python3" {
				return "/usr/bin/python3", nil
			}
			return "", os.ErrNotExist
		}}
		name, prefix, err := e.Locate()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/python3", name)
		assert.Equal(t, []string{"-m", "esptool"}, prefix)
		assert.True(t, e.IsModule())
	})

	t.Run("nothing", func(t *testing.T) {
		e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: noLookPath}
		_, _, err := e.Locate()
		assert.ErrorIs(t, err, ErrEsptoolNotFound)
	})
}

func pythonOnly(f string) (string, error) {
	if f == "python3" {
		return "/usr/bin/python3", nil
	}
	return "", os.ErrNotExist
}

func TestEsptoolEnsureInstalled(t *testing.T) {
	t.Run("installs when module is missing", func(t *testing.T) {
		ex := &fakeExec{fail: map[string]error{
			"/usr/bin/python3 -m esptool version": errors.New("No module named esptool"),
		}}
		e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: pythonOnly, Exec: ex}

		require.NoError(t, e.EnsureInstalled(context.Background()))
		require.Len(t, ex.calls, 2)
		assert.Equal(t, []string{"/usr/bin/python3", "-m", "pip", "install", "--upgrade", "esptool"}, ex.calls[1])
	})

	t.Run("already installed", func(t *testing.T) {
		ex := &fakeExec{}
		e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: pythonOnly, Exec: ex}

		require.NoError(t, e.EnsureInstalled(context.Background()))
		assert.Len(t, ex.calls, 1)
	})

	t.Run("install failure", func(t *testing.T) {
		ex := &fakeExec{fail: map[string]error{
			"/usr/bin/python3 -m esptool version":               errors.New("missing"),
			"/usr/bin/python3 -m pip install --upgrade esptool": errors.New("no network"),
		}}
		e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: pythonOnly, Exec: ex}

		assert.Error(t, e.EnsureInstalled(context.Background()))
	})

	t.Run("standalone executable needs nothing", func(t *testing.T) {
		ex := &fakeExec{}
		e := &Esptool{Home: t.TempDir(), LookPath: func(f string) (string, error) {
			if f == "esptool" {
				return "/opt/esptool", nil
			}
			return "", os.ErrNotExist
		}, Exec: ex}

		require.NoError(t, e.EnsureInstalled(context.Background()))
		assert.Empty(t, ex.calls)
	})
}

func TestEsptoolRunPrefixesModule(t *testing.T) {
	ex := &fakeExec{}
	e := &Esptool{Home: t.TempDir(), Python: "python3", LookPath: pythonOnly, Exec: ex}

	require.NoError(t, e.Run(context.Background(), "chip_id"))
	assert.Equal(t, [][]string{{"/usr/bin/python3", "-m", "esptool", "chip_id"}}, ex.calls)
}

func TestEsptoolRunWrapsFailure(t *testing.T) {
	ex := &fakeExec{fail: map[string]error{"/opt/esptool chip_id": errors.New("exit status 2")}}
	e := &Esptool{Home: t.TempDir(), LookPath: func(f string) (string, error) {
		if f == "esptool" {
			return "/opt/esptool", nil
		}
		return "", os.ErrNotExist
	}, Exec: ex}

	err := e.Run(context.Background(), "chip_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "esptool failed")
}
