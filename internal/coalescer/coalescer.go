// Package coalescer batches high-frequency position writes. The latest
// value per key is buffered in memory; the first buffered write arms one
// timer, and when it fires everything buffered is flushed in a single
// batch. Intermediate values inside the window are never persisted; a
// crash inside the window loses at most one window of updates.
package coalescer

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"

	"github.com/vrwarp/versicle/internal/entities"
)

var Error = errs.Class("coalescer")

// Window bounds. Configured values outside the range are clamped.
const (
	MinWindow     = 500 * time.Millisecond
	MaxWindow     = time.Second
	DefaultWindow = 750 * time.Millisecond
)

type state int

const (
	stateIdle state = iota
	statePending
	stateFlushing
)

// FlushFunc persists one batch of buffered progress values. It runs on the
// timer goroutine (or the caller of Flush/Close) and receives the latest
// value per key.
type FlushFunc func(batch map[string]entities.DeviceProgress) error

// Coalescer is the debounced write path for reading and playback progress.
type Coalescer struct {
	window time.Duration
	clock  Clock
	flush  FlushFunc

	mu     sync.Mutex
	state  state
	buffer map[string]entities.DeviceProgress
	timer  Timer
	closed bool
}

func New(window time.Duration, clock Clock, flush FlushFunc) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	if window < MinWindow {
		window = MinWindow
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	return &Coalescer{
		window: window,
		clock:  clock,
		flush:  flush,
		buffer: make(map[string]entities.DeviceProgress),
	}
}

// Put buffers the latest value for key. Repeated writes to the same key
// within the window collapse to the newest one.
func (c *Coalescer) Put(key string, value entities.DeviceProgress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Error.New("coalescer is closed")
	}
	c.buffer[key] = value
	if c.state == stateIdle {
		c.state = statePending
		c.timer = c.clock.AfterFunc(c.window, c.onTimer)
	}
	// While flushing, the write lands in the fresh buffer and the flush
	// epilogue re-arms for it.
	return nil
}

// Pending returns the keys currently buffered, for status reporting.
func (c *Coalescer) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.buffer))
	for k := range c.buffer {
		keys = append(keys, k)
	}
	return keys
}

func (c *Coalescer) onTimer() {
	if err := c.drain(); err != nil {
		log.WithField("error", err).Error("coalesced flush failed; buffered values retried on next window")
	}
}

// drain swaps the buffer out, flushes it, and re-arms if writes landed
// while the flush ran. A failed flush puts the batch back so the values
// are not lost, newer writes winning over the restored ones.
func (c *Coalescer) drain() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.buffer) == 0 {
		c.state = stateIdle
		c.mu.Unlock()
		return nil
	}
	batch := c.buffer
	c.buffer = make(map[string]entities.DeviceProgress)
	c.state = stateFlushing
	c.mu.Unlock()

	err := c.flush(batch)

	c.mu.Lock()
	if err != nil {
		for k, v := range batch {
			if _, newer := c.buffer[k]; !newer {
				c.buffer[k] = v
			}
		}
	}
	if len(c.buffer) > 0 && !c.closed {
		c.state = statePending
		c.timer = c.clock.AfterFunc(c.window, c.onTimer)
	} else {
		c.state = stateIdle
	}
	c.mu.Unlock()
	return err
}

// Flush drains the buffer synchronously, for explicit barriers like a
// migration boundary or tests.
func (c *Coalescer) Flush() error {
	return c.drain()
}

// Close performs the flush-on-teardown: no further Puts are accepted and
// anything buffered is written out before Close returns.
func (c *Coalescer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.drain()
}
