package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cory-johannsen/spawnmaster/internal/debugtext"
)

// Console feeds lines from a reader to an Executor on the world's tick goroutine.
type Console struct {
	ex   *Executor
	in   io.Reader
	post func(func())
	quit func()

	stop chan struct{}
	once sync.Once
}

// NewConsole returns a console reading in. Each line runs through post, normally
// World.Post; quit is called when the quit command runs.
//
// Precondition: every argument must be non-nil.
func NewConsole(ex *Executor, in io.Reader, post func(func()), quit func()) *Console {
	return &Console{ex: ex, in: in, post: post, quit: quit, stop: make(chan struct{})}
}

// Start reads until the input ends or Stop is called.
func (c *Console) Start() error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case <-c.stop:
			return nil
		default:
		}
		line := scanner.Text()
		c.post(func() { c.runLine(line) })
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("command: reading console: %w", err)
	}
	return nil
}

func (c *Console) runLine(line string) {
	err := c.ex.Run(line)
	switch {
	case err == nil:
	case errors.Is(err, ErrQuit):
		c.quit()
	default:
		debugtext.Line(c.ex.out, debugtext.Red, "%v", err)
	}
}

// Stop makes Start return after the line it is reading.
func (c *Console) Stop() {
	c.once.Do(func() { close(c.stop) })
}
