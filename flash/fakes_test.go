package flash

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial/enumerator"
)

type fakeExec struct {
	calls [][]string
	fail  map[string]error
}

func (f *fakeExec) Execute(_ context.Context, name string, args ...string) error {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	return f.fail[strings.Join(call, " ")]
}

type fakePorts []*enumerator.PortDetails

func (f fakePorts) ListPorts() ([]*enumerator.PortDetails, error) {
	return f, nil
}

// dirPorts lists the entries of a directory as ports
type dirPorts struct {
	dir string
}

func (d dirPorts) ListPorts() ([]*enumerator.PortDetails, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var ports []*enumerator.PortDetails
	for _, e := range entries {
		ports = append(ports, &enumerator.PortDetails{Name: e.Name()})
	}
	return ports, nil
}

func noLookPath(string) (string, error) {
	return "", os.ErrNotExist
}

// fakeUART answers writes with whatever respond returns for them
type fakeUART struct {
	mu      sync.Mutex
	in      []byte
	writes  [][]byte
	closed  bool
	respond func(w []byte) []byte
}

func (f *fakeUART) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}
	if len(f.in) > 0 {
		n := copy(p, f.in)
		f.in = f.in[n:]
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (f *fakeUART) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := append([]byte(nil), p...)
	f.writes = append(f.writes, w)
	if f.respond != nil {
		f.in = append(f.in, f.respond(w)...)
	}
	return len(p), nil
}

func (f *fakeUART) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeUART) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeUART) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

type lineCall struct {
	name  string
	value bool
}

// fakeLines records DTR/RTS and GPIO transitions in order
type fakeLines struct {
	calls []lineCall
}

func (f *fakeLines) SetDTR(v bool) error { f.calls = append(f.calls, lineCall{"dtr", v}); return nil }
func (f *fakeLines) SetRTS(v bool) error { f.calls = append(f.calls, lineCall{"rts", v}); return nil }
func (f *fakeLines) Close() error        { return nil }

func (f *fakeLines) line(name string) line {
	return pinLine{
		high: func() error { f.calls = append(f.calls, lineCall{name, true}); return nil },
		low:  func() error { f.calls = append(f.calls, lineCall{name, false}); return nil },
	}
}
