package flash

import (
	"github.com/alessio/shellescape"
	"golang.org/x/exp/constraints"
)

// checksum will create a STM-compatible XOR-based checksum of the provided data
func checksum(bs []byte) byte {
	var s byte
	for _, b := range bs {
		s ^= b
	}
	return s
}

// positiveOr will return v when it is positive and def otherwise
func positiveOr[T constraints.Signed](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// quoteArgs renders a command line the way it would be typed into a shell so
// it can be logged and pasted back when an upload goes wrong
func quoteArgs(name string, args []string) string {
	return shellescape.QuoteCommand(append([]string{name}, args...))
}
