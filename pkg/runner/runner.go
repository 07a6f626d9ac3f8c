package runner

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateStopped
)

type Hooks struct {
	OnStart func()
	OnStop  func()
}

const Version = "dev"

func PrintBanner() {
	tpl := "{{ .Title \"AGRIVAANI\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// Runner drives a start/wait/stop lifecycle around a long-lived
// component, firing hooks on the edges.
type Runner struct {
	mu    sync.Mutex
	state State
	hooks Hooks
	done  chan struct{}
}

func New(hooks Hooks) *Runner {
	return &Runner{hooks: hooks, done: make(chan struct{})}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run blocks until the context is cancelled or Stop is called.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateNew {
		r.mu.Unlock()
		return nil
	}
	r.state = StateStarting
	r.mu.Unlock()

	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.mu.Lock()
	r.state = StateRunning
	r.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-r.done:
	}

	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
	if r.hooks.OnStop != nil {
		r.hooks.OnStop()
	}
	return nil
}

func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	return nil
}
