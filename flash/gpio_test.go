package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrapESP32(t *testing.T) {
	shortDelays(t)
	l := &fakeLines{}
	s := &Strap{boot: l.line("boot"), reset: l.line("reset")}

	require.NoError(t, s.EnterBootloader())
	assert.Equal(t, []lineCall{{"reset", false}, {"boot", false}, {"reset", true}}, l.calls)

	l.calls = nil
	cleaned := false
	s.cleanup = []func(){func() { cleaned = true }}

	require.NoError(t, s.Release())
	assert.Equal(t, []lineCall{{"reset", false}, {"boot", true}, {"reset", true}}, l.calls)
	assert.True(t, cleaned)
}

func TestStrapSTM32BootActiveHigh(t *testing.T) {
	shortDelays(t)
	l := &fakeLines{}
	s := &Strap{boot: l.line("boot0"), reset: l.line("nrst"), bootActiveHigh: true}

	require.NoError(t, s.EnterBootloader())
	assert.Equal(t, []lineCall{{"nrst", false}, {"boot0", true}, {"nrst", true}}, l.calls)
}
