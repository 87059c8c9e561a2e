package device

import (
	"context"
	"sync"
)

// Fake is an Output for tests and headless use. Its failure can be set to
// simulate an unavailable device.
type Fake struct {
	mu      sync.Mutex
	fail    error
	running bool
	resumes int
}

// Fail makes the next Resume calls fail with err. A nil err clears it.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fail = err
}

// Resume implements Output.
func (f *Fake) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &Error{Op: "wait ready", Err: err}
	}

	if f.fail != nil {
		return &Error{Op: "resume", Err: f.fail}
	}

	f.running = true
	f.resumes++

	return nil
}

// Suspend implements Output.
func (f *Fake) Suspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.running = false

	return nil
}

// Close implements Output.
func (f *Fake) Close() error { return f.Suspend() }

// Running reports whether the fake is resumed.
func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.running
}

// Resumes counts successful Resume calls.
func (f *Fake) Resumes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.resumes
}
