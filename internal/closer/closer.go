// Package closer aggregates shutdown hooks and runs them on signal or on an
// explicit Close call, whichever comes first.
package closer

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
)

// Closer collects cleanup functions and runs them once, last added first,
// mirroring defer ordering.
type Closer struct {
	mu        sync.Mutex
	once      sync.Once
	done      chan struct{}
	functions []func() error
}

// NewCloser returns a Closer. When signals are given, any of them triggers
// Close in the background.
func NewCloser(sig ...os.Signal) *Closer {
	c := &Closer{done: make(chan struct{})}
	if len(sig) > 0 {
		go func() {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, sig...)
			<-ch
			signal.Stop(ch)
			if err := c.Close(); err != nil {
				log.Print(err)
			}
		}()
	}
	return c
}

// Add registers cleanup functions.
func (c *Closer) Add(f ...func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.functions = append(c.functions, f...)
}

// Wait blocks until Close has finished.
func (c *Closer) Wait() {
	<-c.done
}

// Close runs all registered functions in reverse registration order and
// joins their errors. Subsequent calls are no-ops returning nil.
func (c *Closer) Close() error {
	c.mu.Lock()
	functions := c.functions
	c.mu.Unlock()

	var errs []error
	c.once.Do(func() {
		defer close(c.done)

		for i := len(functions) - 1; i >= 0; i-- {
			if err := functions[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}
