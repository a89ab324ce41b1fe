package flash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestDetectorMatches(t *testing.T) {
	d := NewDetector([]string{"cu.usbserial"}, "", "", "/dev")

	assert.True(t, d.Matches(&enumerator.PortDetails{Name: "/dev/cu.usbserial-0001"}))
	assert.True(t, d.Matches(&enumerator.PortDetails{Name: "cu.usbserial-A50285BI"}))
	assert.False(t, d.Matches(&enumerator.PortDetails{Name: "/dev/tty.usbserial-0001"}))
	assert.False(t, d.Matches(&enumerator.PortDetails{Name: "/dev/cu.Bluetooth-Incoming-Port"}))
}

func TestDetectorMatchesUSBIDs(t *testing.T) {
	d := NewDetector([]string{"ttyUSB"}, "10c4", "EA60", "/dev")

	assert.True(t, d.Matches(&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "ea60"}))
	assert.False(t, d.Matches(&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"}))
}

func TestDetectFirstMatchInOrder(t *testing.T) {
	d := NewDetector([]string{"cu.usbserial", "ttyUSB"}, "", "", "/dev")
	d.Lister = fakePorts{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB1"},
		{Name: "/dev/cu.usbserial-0001"},
	}

	port, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", port)
}

func TestDetectNoPort(t *testing.T) {
	d := NewDetector([]string{"cu.usbserial"}, "", "", "/dev")
	d.Lister = fakePorts{{Name: "/dev/ttyS0"}}

	_, err := d.Detect()
	assert.ErrorIs(t, err, ErrNoPort)
}

func TestWaitForPort(t *testing.T) {
	dir := t.TempDir()
	d := NewDetector([]string{"cu.usbserial"}, "", "", dir)
	d.Lister = dirPorts{dir: dir}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "cu.usbserial-0001"), nil, 0o644)
	}()

	port, err := d.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cu.usbserial-0001"), port)
}

func TestWaitForPortAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttyUSB0"), nil, 0o644))

	d := NewDetector([]string{"ttyUSB"}, "", "", dir)
	d.Lister = dirPorts{dir: dir}

	port, err := d.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ttyUSB0"), port)
}

func TestWaitForPortTimeout(t *testing.T) {
	dir := t.TempDir()
	d := NewDetector([]string{"cu.usbserial"}, "", "", dir)
	d.Lister = dirPorts{dir: dir}

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "ttyS9"), nil, 0o644)
	}()

	_, err := d.Wait(context.Background(), 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoPort)
}

func TestWaitForPortCancelled(t *testing.T) {
	dir := t.TempDir()
	d := NewDetector([]string{"cu.usbserial"}, "", "", dir)
	d.Lister = dirPorts{dir: dir}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
