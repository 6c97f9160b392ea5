package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/spawnmaster/internal/debugtext"
)

func TestConsole_RunsLinesThroughPost(t *testing.T) {
	w, p, _, _ := standalone(t)
	var out bytes.Buffer
	ex := NewExecutor(DefaultRegistry(), w, &out)

	posted := 0
	quit := false
	c := NewConsole(ex, strings.NewReader("next\n\nwiggle\nquit\n"), func(fn func()) {
		posted++
		w.Post(fn)
	}, func() { quit = true })

	require.NoError(t, c.Start())
	assert.Equal(t, 4, posted)
	assert.False(t, quit, "nothing runs before the next tick")

	run(w, 20)
	assert.True(t, quit)
	assert.Equal(t, "pistol", current(p))
	assert.Contains(t, debugtext.StripANSI(out.String()), `unknown command "wiggle"`)
}

func TestConsole_StopEndsReading(t *testing.T) {
	_, _, ex, _ := standalone(t)
	posted := 0
	c := NewConsole(ex, strings.NewReader("inv\ninv\ninv\n"), func(fn func()) { posted++ }, func() {})
	c.Stop()
	c.Stop()
	require.NoError(t, c.Start())
	assert.Zero(t, posted)
}
