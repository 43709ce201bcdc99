package zmqcore

import (
	"sync"

	"github.com/rs/zerolog"
)

// Priority is a best-effort thread priority hint. Applying it must never
// fail Worker.Start.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityLow
	PriorityLowest
	PriorityHigh
	PriorityHighest
)

type workerState int

const (
	workerIdle workerState = iota
	workerStarting
	workerRunning
	workerStopping
)

// Worker owns exactly one goroutine that runs a user-supplied loop. Start
// launches the goroutine and blocks until it has published a start
// outcome; Stop signals the goroutine to exit and blocks until it has
// published its stop outcome. A Worker may be restarted after Stop; the
// two one-shot channels are reconstructed on each Start.
//
// State machine: idle -> starting -> (running -> stopping -> idle) |
// (idle, on start failure). work() implementations must check Stopped()
// on every loop iteration and must not touch shared mutable state except
// via message passing.
type Worker struct {
	mu       sync.Mutex
	state    workerState
	priority Priority
	work     func(w *Worker) error
	log      zerolog.Logger

	stopCh   chan struct{}
	started  chan bool
	finished chan bool
}

// NewWorker constructs a Worker with the given priority hint and work
// function. work is invoked on the owned goroutine after Start; it must
// call w.PublishStarted(true) (or false, on setup failure) before
// entering its loop, and must return promptly after w.Stopped() becomes
// true.
func NewWorker(priority Priority, work func(w *Worker) error) *Worker {
	return &Worker{priority: priority, work: work, log: zerolog.Nop()}
}

// SetLogger attaches a structured logger used for start/stop transition
// events.
func (w *Worker) SetLogger(log zerolog.Logger) { w.log = log }

// Start launches the worker's goroutine and blocks until it reports its
// start outcome. Returns ErrInProgress if the worker is already running.
func (w *Worker) Start() Error {
	w.mu.Lock()
	if w.state != workerIdle {
		w.mu.Unlock()
		return ErrInProgress
	}
	w.state = workerStarting
	w.stopCh = make(chan struct{})
	w.started = make(chan bool, 1)
	w.finished = make(chan bool, 1)
	w.mu.Unlock()

	go w.run()

	ok := <-w.started
	w.mu.Lock()
	defer w.mu.Unlock()
	if !ok {
		w.state = workerIdle
		w.log.Debug().Msg("worker start failed")
		return ErrUnknown
	}
	w.state = workerRunning
	w.log.Debug().Msg("worker running")
	return 0
}

func (w *Worker) run() {
	applyPriority(w.priority)
	err := w.work(w)
	_ = err
}

// PublishStarted is called by the work function, exactly once, before
// entering its event loop.
func (w *Worker) PublishStarted(ok bool) {
	w.started <- ok
}

// PublishFinished is called by the work function exactly once, after its
// loop has exited cleanly.
func (w *Worker) PublishFinished(ok bool) {
	w.finished <- ok
}

// Stopped reports whether Stop has been requested. work() must poll this
// on every loop iteration.
func (w *Worker) Stopped() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// StopChannel returns the channel closed when Stop is requested, for
// work() implementations that block in a select.
func (w *Worker) StopChannel() <-chan struct{} {
	return w.stopCh
}

// Stop signals the worker's goroutine to exit and blocks until it
// publishes its finished outcome. Idempotent: stopping an idle worker
// returns success.
func (w *Worker) Stop() Error {
	w.mu.Lock()
	if w.state == workerIdle {
		w.mu.Unlock()
		return 0
	}
	w.state = workerStopping
	stopCh := w.stopCh
	finished := w.finished
	w.mu.Unlock()

	close(stopCh)
	<-finished

	w.mu.Lock()
	w.state = workerIdle
	w.mu.Unlock()
	w.log.Debug().Msg("worker stopped")
	return 0
}

// applyPriority is a best-effort hook point: Go exposes no portable OS
// thread scheduling priority without pinning the goroutine to an OS thread
// via runtime.LockOSThread, so this is a no-op placeholder that never
// fails Start.
func applyPriority(Priority) {}
