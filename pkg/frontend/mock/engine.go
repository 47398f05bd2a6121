// Package mock provides a scripted frontend.Engine for tests.
package mock

import (
	"errors"
	"sync"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
)

// Engine is a scripted front end. Fed blocks are recorded; Fetch serves
// results scripted per feed count, so tests can pin a detection or a
// processed-audio payload to a specific tick.
type Engine struct {
	mu sync.Mutex

	blockSize int
	channels  int

	// Fed holds a copy of every block passed to Feed, in order.
	Fed [][]int16

	// results are keyed by the 1-based feed count at which they surface.
	results map[int]frontend.Result

	feedErr  error
	fetchErr error
	closed   bool
}

var _ frontend.Engine = (*Engine)(nil)

// NewEngine creates a mock engine with the given feed block size and channel
// count.
func NewEngine(blockSize, channels int) *Engine {
	return &Engine{
		blockSize: blockSize,
		channels:  channels,
		results:   make(map[int]frontend.Result),
	}
}

// ScriptResult arranges for res to be returned by the first Fetch at or after
// the nth Feed (1-based).
func (e *Engine) ScriptResult(n int, res frontend.Result) {
	e.mu.Lock()
	e.results[n] = res
	e.mu.Unlock()
}

// FailFeed makes every subsequent Feed return err (nil clears).
func (e *Engine) FailFeed(err error) {
	e.mu.Lock()
	e.feedErr = err
	e.mu.Unlock()
}

// FailFetch makes every subsequent Fetch return err (nil clears).
func (e *Engine) FailFetch(err error) {
	e.mu.Lock()
	e.fetchErr = err
	e.mu.Unlock()
}

func (e *Engine) FeedBlockSize() int { return e.blockSize }

func (e *Engine) Channels() int { return e.channels }

func (e *Engine) Feed(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("mock: engine is closed")
	}
	if e.feedErr != nil {
		return e.feedErr
	}
	if len(block) != e.blockSize {
		return errors.New("mock: feed block has wrong size")
	}
	cp := make([]int16, len(block))
	copy(cp, block)
	e.Fed = append(e.Fed, cp)
	return nil
}

func (e *Engine) Fetch() (frontend.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return frontend.Result{}, errors.New("mock: engine is closed")
	}
	if e.fetchErr != nil {
		return frontend.Result{}, e.fetchErr
	}
	res, ok := e.results[len(e.Fed)]
	if !ok {
		return frontend.Result{}, nil
	}
	delete(e.results, len(e.Fed))
	return res, nil
}

// FeedCount returns how many blocks have been fed so far.
func (e *Engine) FeedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Fed)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
